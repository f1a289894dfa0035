package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

func normalizeAvailabilityError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return err
	}

	return errors.Wrap(err, errors.CategoryOperation, "Service availability check failed").
		WithTextCode(TextCodeServiceUnavailable)
}

// requireServiceAvailable fails fast with a ServiceUnavailable error when
// the named dependency is not configured. A nil gate means gating is not
// configured and every service is treated as available.
func requireServiceAvailable(ctx context.Context, featureGate gate.FeatureGate, service string) error {
	if featureGate == nil {
		return nil
	}
	return guard.Require(ctx, featureGate, service,
		guard.WithDisabledError(ServiceUnavailableError(service)),
		guard.WithErrorMapper(normalizeAvailabilityError),
	)
}
