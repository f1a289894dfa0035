package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultRefreshTokenLifetime applies when no duration is configured.
var DefaultRefreshTokenLifetime = 14 * 24 * time.Hour

// refreshTokenBytes is the entropy of an opaque token value.
const refreshTokenBytes = 32

// RotationResult carries the outcome of a successful rotation: a fresh
// access token and the replacement refresh token.
type RotationResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    *RefreshToken
	Principal       *Principal
}

// TokenRotator owns the refresh token lifecycle: issuing, validating,
// rotating, and revoking. Rotation is the one correctness-critical
// concurrency point in the package; the heavy lifting is delegated to the
// store's atomic Consume transition so no lock is held here.
type TokenRotator struct {
	store    RefreshTokenStore
	tokens   TokenService
	lookup   PrincipalLookup
	lifetime time.Duration
	clock    Clock
	logger   Logger
	activity ActivitySink
}

// NewTokenRotator returns a rotator with default lifetime, clock, and logger.
func NewTokenRotator(store RefreshTokenStore, tokens TokenService, lookup PrincipalLookup) *TokenRotator {
	return &TokenRotator{
		store:    store,
		tokens:   tokens,
		lookup:   lookup,
		lifetime: DefaultRefreshTokenLifetime,
		clock:    systemClock{},
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

// WithLifetime overrides the refresh token lifetime.
func (r *TokenRotator) WithLifetime(lifetime time.Duration) *TokenRotator {
	if lifetime > 0 {
		r.lifetime = lifetime
	}
	return r
}

// WithClock overrides the time source.
func (r *TokenRotator) WithClock(clock Clock) *TokenRotator {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *TokenRotator) WithLogger(logger Logger) *TokenRotator {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithActivitySink configures an ActivitySink for emitting token events.
func (r *TokenRotator) WithActivitySink(sink ActivitySink) *TokenRotator {
	r.activity = normalizeActivitySink(sink)
	return r
}

// Issue generates a cryptographically random opaque token for the
// principal and persists it as Active.
func (r *TokenRotator) Issue(ctx context.Context, principal *Principal, device DeviceInfo) (*RefreshToken, error) {
	if principal == nil {
		return nil, goerrors.New("principal is required", goerrors.CategoryBadInput)
	}

	secret, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    principal.ID,
		Token:     secret,
		ExpiresAt: now.Add(r.lifetime),
		CreatedAt: &now,
	}
	record.SetDevice(device)

	saved, err := r.store.SaveToken(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return saved, nil
}

// Validate looks a token up by value and checks its lifecycle state.
// Failure order is fixed: not found, then expired, then used, then
// revoked. Expiry wins over the terminal flags so callers cannot probe
// the rotation history of a dead token.
func (r *TokenRotator) Validate(ctx context.Context, value string) (*RefreshToken, error) {
	if strings.TrimSpace(value) == "" {
		return nil, ValidationError("refresh token is required")
	}

	record, err := r.store.GetByValue(ctx, value)
	if err != nil {
		return nil, err
	}

	switch record.StateAt(r.clock.Now()) {
	case TokenStateExpired:
		return nil, ErrRefreshTokenExpired
	case TokenStateUsed:
		return nil, ErrRefreshTokenUsed
	case TokenStateRevoked:
		return nil, ErrRefreshTokenRevoked
	}

	return record, nil
}

// Rotate validates the presented token and, in one atomic step, marks it
// used and persists a replacement carrying forward the device metadata.
// When two callers race on the same value at most one rotation succeeds;
// the loser observes ErrRefreshTokenUsed.
func (r *TokenRotator) Rotate(ctx context.Context, value string, device DeviceInfo) (*RotationResult, error) {
	old, err := r.Validate(ctx, value)
	if err != nil {
		return nil, err
	}

	principal, err := r.lookup.FindByID(ctx, old.UserID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrIdentityNotFound
	}

	// Mint the access token before touching the store. Signing is local
	// and stateless, so a signing failure must not burn the presented
	// token.
	accessToken, accessExpiry, err := r.tokens.Generate(principal)
	if err != nil {
		r.logger.Error("Rotate failed to mint access token: %v", err)
		return nil, err
	}

	secret, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	replacement := &RefreshToken{
		ID:        uuid.New(),
		UserID:    old.UserID,
		Token:     secret,
		ExpiresAt: now.Add(r.lifetime),
		CreatedAt: &now,
	}
	replacement.SetDevice(device.merge(old.Device()))

	fresh, err := r.store.Consume(ctx, value, now, replacement)
	if err != nil {
		if goerrors.Is(err, ErrRefreshTokenUsed) {
			// Lost the race: another caller rotated this token between our
			// validate and consume.
			r.emitTokenEvent(ctx, ActivityEventTokenReplay, old, map[string]any{})
		}
		return nil, err
	}

	r.emitTokenEvent(ctx, ActivityEventTokenRotated, fresh, map[string]any{
		"parent_token_id": old.ID.String(),
	})

	return &RotationResult{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiry,
		RefreshToken:    fresh,
		Principal:       principal,
	}, nil
}

// Revoke idempotently flips the revoked flag. Revoking an already-used,
// already-expired, or already-revoked token still succeeds; only a
// missing record is a failure.
func (r *TokenRotator) Revoke(ctx context.Context, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError("refresh token is required")
	}

	record, err := r.store.Revoke(ctx, value)
	if err != nil {
		return err
	}

	r.emitTokenEvent(ctx, ActivityEventTokenRevoked, record, nil)

	return nil
}

// RevokeAllForUser revokes every live token the user owns and reports how
// many were touched.
func (r *TokenRotator) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := r.store.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user sessions")
	}

	if err := normalizeActivitySink(r.activity).Record(ctx, ActivityEvent{
		EventType:  ActivityEventSessionsRevoked,
		Actor:      ActorRef{ID: userID.String(), Type: "user"},
		UserID:     userID.String(),
		Metadata:   map[string]any{"revoked": count},
		OccurredAt: r.clock.Now(),
	}); err != nil {
		r.logger.Warn("activity sink record error: %v", err)
	}

	return count, nil
}

// Sessions lists the user's refresh token records with secrets redacted,
// newest first.
func (r *TokenRotator) Sessions(ctx context.Context, userID uuid.UUID) ([]*RefreshToken, error) {
	records, err := r.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list user sessions")
	}

	redacted := make([]*RefreshToken, 0, len(records))
	for _, record := range records {
		redacted = append(redacted, record.Redacted())
	}
	return redacted, nil
}

func (r *TokenRotator) emitTokenEvent(ctx context.Context, eventType ActivityEventType, record *RefreshToken, metadata map[string]any) {
	if record == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["token_id"] = record.ID.String()

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: record.UserID.String(), Type: "user"},
		UserID:     record.UserID.String(),
		Metadata:   metadata,
		OccurredAt: r.clock.Now(),
	}

	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink record error: %v", err)
	}
}

// newOpaqueToken returns a url-safe random secret with no embedded
// structure; it is only ever looked up by value.
func newOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token entropy")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
