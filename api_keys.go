package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// maxApiKeyNameLength keeps key names presentable in listings.
const maxApiKeyNameLength = 100

// ApiKeyManager owns the long-lived API key credential type: creation,
// validation, revocation, and owner-scoped reads. Keys are independent of
// the refresh token lifecycle.
type ApiKeyManager struct {
	store    ApiKeyStore
	lookup   PrincipalLookup
	clock    Clock
	logger   Logger
	activity ActivitySink
}

// NewApiKeyManager creates a manager with sane defaults.
func NewApiKeyManager(store ApiKeyStore, lookup PrincipalLookup) *ApiKeyManager {
	return &ApiKeyManager{
		store:    store,
		lookup:   lookup,
		clock:    systemClock{},
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (m *ApiKeyManager) WithClock(clock Clock) *ApiKeyManager {
	if clock != nil {
		m.clock = clock
	}
	return m
}

func (m *ApiKeyManager) WithLogger(logger Logger) *ApiKeyManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithActivitySink configures an ActivitySink for emitting key events.
func (m *ApiKeyManager) WithActivitySink(sink ActivitySink) *ApiKeyManager {
	m.activity = normalizeActivitySink(sink)
	return m
}

// Create generates a unique secret and persists an active key for the
// owner. The returned record is the only place the raw secret ever
// appears; subsequent reads are redacted.
func (m *ApiKeyManager) Create(ctx context.Context, ownerID uuid.UUID, name, description string, expiresAt *time.Time) (*ApiKey, error) {
	if ownerID == uuid.Nil {
		return nil, ValidationError("API key owner is required")
	}

	name = strings.TrimSpace(name)
	if err := validation.Validate(name,
		validation.Required,
		validation.Length(1, maxApiKeyNameLength),
	); err != nil {
		return nil, ValidationError("API key name is required")
	}

	secret, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	record := &ApiKey{
		ID:          uuid.New(),
		UserID:      ownerID,
		KeyValue:    secret,
		Name:        name,
		Description: strings.TrimSpace(description),
		Active:      true,
		ExpiresAt:   expiresAt,
		CreatedAt:   &now,
	}

	saved, err := m.store.SaveKey(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist API key")
	}

	m.emitKeyEvent(ctx, ActivityEventApiKeyCreated, saved)

	return saved, nil
}

// Validate resolves a raw key value to its owning principal. A key is
// valid iff it is active and not past its optional expiry.
func (m *ApiKeyManager) Validate(ctx context.Context, keyValue string) (*Principal, error) {
	if strings.TrimSpace(keyValue) == "" {
		return nil, ValidationError("API key is required")
	}

	key, err := m.store.GetKeyByValue(ctx, keyValue)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	if key.ExpiresAt != nil && !now.Before(*key.ExpiresAt) {
		return nil, ErrApiKeyExpired
	}
	if !key.Active {
		return nil, ErrApiKeyRevoked
	}

	principal, err := m.lookup.FindByID(ctx, key.UserID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrIdentityNotFound
	}

	return principal, nil
}

// Revoke deactivates the key, but only when it exists and belongs to
// requesterID. The bool result is false for both "not found" and "not
// owned" so callers can tell authorization failure apart from a system
// error without learning whose key it was.
func (m *ApiKeyManager) Revoke(ctx context.Context, keyID, requesterID uuid.UUID) (bool, error) {
	key, err := m.store.GetKeyByID(ctx, keyID)
	if err != nil {
		if goerrors.Is(err, ErrApiKeyNotFound) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load API key")
	}

	if key.UserID != requesterID {
		return false, nil
	}

	if err := m.store.DeactivateKey(ctx, keyID); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to deactivate API key")
	}

	m.emitKeyEvent(ctx, ActivityEventApiKeyRevoked, key)

	return true, nil
}

// GetByID returns the redacted key record, or nil both when the key does
// not exist and when it belongs to someone else. The two cases are
// deliberately indistinguishable.
func (m *ApiKeyManager) GetByID(ctx context.Context, keyID, requesterID uuid.UUID) (*ApiKey, error) {
	key, err := m.store.GetKeyByID(ctx, keyID)
	if err != nil {
		if goerrors.Is(err, ErrApiKeyNotFound) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load API key")
	}

	if key.UserID != requesterID {
		return nil, nil
	}

	return key.Redacted(), nil
}

// ListByOwner returns the owner's key records with secrets redacted.
func (m *ApiKeyManager) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*ApiKey, error) {
	records, err := m.store.ListKeysByOwner(ctx, ownerID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list API keys")
	}

	redacted := make([]*ApiKey, 0, len(records))
	for _, record := range records {
		redacted = append(redacted, record.Redacted())
	}
	return redacted, nil
}

func (m *ApiKeyManager) emitKeyEvent(ctx context.Context, eventType ActivityEventType, key *ApiKey) {
	if key == nil {
		return
	}

	event := ActivityEvent{
		EventType: eventType,
		Actor:     ActorRef{ID: key.UserID.String(), Type: "user"},
		UserID:    key.UserID.String(),
		Metadata: map[string]any{
			"api_key_id": key.ID.String(),
			"name":       key.Name,
		},
		OccurredAt: m.clock.Now(),
	}

	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
