package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore persists refresh token records. Implementations must
// make Consume an atomic compare-and-transition: under concurrent calls
// with the same value, at most one may succeed.
type RefreshTokenStore interface {
	// SaveToken persists a new Active token record.
	SaveToken(ctx context.Context, token *RefreshToken) (*RefreshToken, error)

	// GetByValue looks a record up by its opaque value. Returns
	// ErrRefreshTokenNotFound when no record matches.
	GetByValue(ctx context.Context, value string) (*RefreshToken, error)

	// Consume marks the record identified by value as used (stamping
	// LastUsedAt with at) and persists replacement in the same atomic
	// unit. The transition only applies while the record is neither used
	// nor revoked; a caller that loses the race gets ErrRefreshTokenUsed.
	Consume(ctx context.Context, value string, at time.Time, replacement *RefreshToken) (*RefreshToken, error)

	// Revoke flips the revoked flag. It succeeds on already-used,
	// already-expired, and already-revoked records; only a missing record
	// is an error.
	Revoke(ctx context.Context, value string) (*RefreshToken, error)

	// RevokeAllForUser revokes every non-revoked token owned by the user
	// and returns how many records it touched.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error)

	// ListForUser returns the user's token records, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*RefreshToken, error)
}

// ApiKeyStore persists API key records.
type ApiKeyStore interface {
	SaveKey(ctx context.Context, key *ApiKey) (*ApiKey, error)

	// GetKeyByValue returns ErrApiKeyNotFound when no record matches.
	GetKeyByValue(ctx context.Context, value string) (*ApiKey, error)

	// GetKeyByID returns ErrApiKeyNotFound when no record matches.
	GetKeyByID(ctx context.Context, id uuid.UUID) (*ApiKey, error)

	ListKeysByOwner(ctx context.Context, userID uuid.UUID) ([]*ApiKey, error)

	// DeactivateKey clears the active flag. Deactivating an
	// already-inactive key is a no-op, not an error; only a missing
	// record fails.
	DeactivateKey(ctx context.Context, id uuid.UUID) error
}
