package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
)

// Stable success messages. Clients branch on these (and on failure
// messages) so they must not drift.
const (
	MsgLoginSuccessful    = "Login successful"
	MsgTokenRefreshed     = "Token refreshed successfully"
	MsgLoggedOut          = "Logged out successfully"
	MsgAllSessionsRevoked = "All sessions have been revoked"
	MsgClaimsRefreshed    = "Claims refreshed successfully"
)

// RefreshRotator is the rotation surface the orchestrator composes.
type RefreshRotator interface {
	Issue(ctx context.Context, principal *Principal, device DeviceInfo) (*RefreshToken, error)
	Rotate(ctx context.Context, value string, device DeviceInfo) (*RotationResult, error)
	Revoke(ctx context.Context, value string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// Orchestrator composes the auth use cases: login, refresh, logout, and
// claims refresh. Every use case first consults the availability gate for
// its required dependency and fails fast when it is down; business
// failures come back inside the AuthResult, and only infrastructure
// faults are returned as errors.
type Orchestrator struct {
	lookup      PrincipalLookup
	credentials CredentialVerifier
	rotator     RefreshRotator
	tokens      TokenService
	featureGate gate.FeatureGate
	clock       Clock
	logger      Logger
	activity    ActivitySink
}

// NewOrchestrator wires the auth use cases over their collaborators.
func NewOrchestrator(lookup PrincipalLookup, credentials CredentialVerifier, rotator RefreshRotator, tokens TokenService) *Orchestrator {
	return &Orchestrator{
		lookup:      lookup,
		credentials: credentials,
		rotator:     rotator,
		tokens:      tokens,
		clock:       systemClock{},
		logger:      defLogger{},
		activity:    noopActivitySink{},
	}
}

// WithFeatureGate installs the availability gate consulted before every
// use case.
func (o *Orchestrator) WithFeatureGate(featureGate gate.FeatureGate) *Orchestrator {
	o.featureGate = featureGate
	return o
}

// WithClock overrides the time source used for audit timestamps.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	if clock != nil {
		o.clock = clock
	}
	return o
}

func (o *Orchestrator) WithLogger(logger Logger) *Orchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (o *Orchestrator) WithActivitySink(sink ActivitySink) *Orchestrator {
	o.activity = normalizeActivitySink(sink)
	return o
}

// Login verifies credentials, requires a confirmed email address, and
// issues a fresh token pair.
func (o *Orchestrator) Login(ctx context.Context, email, password string, device DeviceInfo) (AuthResult, error) {
	if err := requireServiceAvailable(ctx, o.featureGate, ServiceIdentity); err != nil {
		return o.failure(ctx, "Login", err)
	}

	email = NormalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return o.failure(ctx, "Login", ValidationError("A valid email address is required"))
	}
	if strings.TrimSpace(password) == "" {
		return o.failure(ctx, "Login", ValidationError("Password is required"))
	}

	principal, err := o.lookup.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			o.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{"email": email})
			return o.failure(ctx, "Login", ErrMismatchedHashAndPassword)
		}
		return o.failure(ctx, "Login", err)
	}
	if principal == nil {
		o.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{"email": email})
		return o.failure(ctx, "Login", ErrMismatchedHashAndPassword)
	}

	ok, err := o.credentials.CheckPassword(ctx, principal.ID, password)
	if err != nil {
		return o.failure(ctx, "Login", err)
	}
	if !ok {
		o.emitAuthEvent(ctx, ActivityEventLoginFailure, principal.ID.String(), map[string]any{"email": email})
		return o.failure(ctx, "Login", ErrMismatchedHashAndPassword)
	}

	if !principal.EmailVerified {
		o.emitAuthEvent(ctx, ActivityEventLoginFailure, principal.ID.String(), map[string]any{
			"email":  email,
			"reason": "email_not_verified",
		})
		return o.failure(ctx, "Login", ErrEmailNotVerified)
	}

	return o.issuePair(ctx, principal, device, ActivityEventLoginSuccess, MsgLoginSuccessful)
}

// Refresh rotates the presented refresh token and returns the new pair.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string, device DeviceInfo) (AuthResult, error) {
	if err := requireServiceAvailable(ctx, o.featureGate, ServiceIdentity); err != nil {
		return o.failure(ctx, "Refresh", err)
	}

	result, err := o.rotator.Rotate(ctx, refreshToken, device)
	if err != nil {
		return o.failure(ctx, "Refresh", err)
	}

	return AuthResult{
		Success:      true,
		Message:      MsgTokenRefreshed,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken.Token,
		Email:        result.Principal.Email,
	}, nil
}

// Logout revokes a single refresh token. Revocation is idempotent; only a
// missing record reads as a failure.
func (o *Orchestrator) Logout(ctx context.Context, refreshToken string) (AuthResult, error) {
	if err := requireServiceAvailable(ctx, o.featureGate, ServiceIdentity); err != nil {
		return o.failure(ctx, "Logout", err)
	}

	if err := o.rotator.Revoke(ctx, refreshToken); err != nil {
		return o.failure(ctx, "Logout", err)
	}

	return AuthResult{Success: true, Message: MsgLoggedOut}, nil
}

// LogoutEverywhere revokes every live refresh token the principal owns.
func (o *Orchestrator) LogoutEverywhere(ctx context.Context, principalID uuid.UUID) (AuthResult, error) {
	if err := requireServiceAvailable(ctx, o.featureGate, ServiceIdentity); err != nil {
		return o.failure(ctx, "LogoutEverywhere", err)
	}

	if principalID == uuid.Nil {
		return o.failure(ctx, "LogoutEverywhere", ValidationError("principal id is required"))
	}

	if _, err := o.rotator.RevokeAllForUser(ctx, principalID); err != nil {
		return o.failure(ctx, "LogoutEverywhere", err)
	}

	return AuthResult{Success: true, Message: MsgAllSessionsRevoked}, nil
}

// ClaimsRefresh re-mints both tokens from the principal's current state
// without consuming a prior refresh token. Used after role or claim
// changes so clients pick up the new claims immediately.
func (o *Orchestrator) ClaimsRefresh(ctx context.Context, principalID uuid.UUID, device DeviceInfo) (AuthResult, error) {
	if err := requireServiceAvailable(ctx, o.featureGate, ServiceIdentity); err != nil {
		return o.failure(ctx, "ClaimsRefresh", err)
	}

	if principalID == uuid.Nil {
		return o.failure(ctx, "ClaimsRefresh", ValidationError("principal id is required"))
	}

	principal, err := o.lookup.FindByID(ctx, principalID)
	if err != nil {
		return o.failure(ctx, "ClaimsRefresh", err)
	}
	if principal == nil {
		return o.failure(ctx, "ClaimsRefresh", ErrIdentityNotFound)
	}

	return o.issuePair(ctx, principal, device, ActivityEventClaimsRefreshed, MsgClaimsRefreshed)
}

func (o *Orchestrator) issuePair(ctx context.Context, principal *Principal, device DeviceInfo, eventType ActivityEventType, message string) (AuthResult, error) {
	// Sign before persisting so a signing failure cannot strand an
	// active refresh token whose value nobody holds.
	access, _, err := o.tokens.Generate(principal)
	if err != nil {
		return o.failure(ctx, "IssueTokens", err)
	}

	refresh, err := o.rotator.Issue(ctx, principal, device)
	if err != nil {
		return o.failure(ctx, "IssueTokens", err)
	}

	o.emitAuthEvent(ctx, eventType, principal.ID.String(), map[string]any{
		"email": principal.Email,
	})

	return AuthResult{
		Success:      true,
		Message:      message,
		AccessToken:  access,
		RefreshToken: refresh.Token,
		Email:        principal.Email,
	}, nil
}

// failure folds expected business failures into an AuthResult and lets
// infrastructure faults propagate as errors, logged with operation
// context first.
func (o *Orchestrator) failure(ctx context.Context, operation string, err error) (AuthResult, error) {
	if IsExpectedAuthFailure(err) {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return AuthResult{Success: false, Message: richErr.Message}, nil
		}
		return AuthResult{Success: false, Message: err.Error()}, nil
	}

	o.logger.Error("%s infrastructure fault: %v", operation, err)

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return AuthResult{}, richErr
	}
	return AuthResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, operation+" failed")
}

func (o *Orchestrator) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	actor := ActorRef{Type: "unknown"}
	if userID != "" {
		actor = ActorRef{ID: userID, Type: "user"}
	}

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: o.clock.Now(),
	}

	if err := normalizeActivitySink(o.activity).Record(ctx, event); err != nil {
		o.logger.Warn("activity sink record error: %v", err)
	}
}
