package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenState is the lifecycle state of a refresh token. Expired is
// derived from the expiry timestamp, never stored; Used and Revoked are
// terminal and permanent.
type TokenState = string

const (
	// TokenStateActive means the token can still be rotated
	TokenStateActive TokenState = "active"
	// TokenStateExpired means the token is past its absolute expiry
	TokenStateExpired TokenState = "expired"
	// TokenStateUsed means the token was consumed by a rotation
	TokenStateUsed TokenState = "used"
	// TokenStateRevoked means the token was explicitly revoked
	TokenStateRevoked TokenState = "revoked"
)

// RefreshToken is a persisted opaque refresh token record. The token
// value is immutable once issued; only the status flags and LastUsedAt
// mutate. Records are never physically deleted so replay attempts remain
// detectable.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	DeviceName    string     `bun:"device_name" json:"device_name,omitempty"`
	DeviceIP      string     `bun:"device_ip" json:"device_ip,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used,omitempty"`
	Revoked       bool       `bun:"revoked,notnull,default:false" json:"revoked,omitempty"`
	LastUsedAt    *time.Time `bun:"last_used_at,nullzero" json:"last_used_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// StateAt derives the lifecycle state at the given instant. Expiry wins
// over the used/revoked flags so an expired-and-used token reads as
// expired, hiding its rotation history from the caller.
func (t *RefreshToken) StateAt(now time.Time) TokenState {
	switch {
	case !now.Before(t.ExpiresAt):
		return TokenStateExpired
	case t.Used:
		return TokenStateUsed
	case t.Revoked:
		return TokenStateRevoked
	default:
		return TokenStateActive
	}
}

// IsValidAt reports whether the token can be rotated at the given instant.
func (t *RefreshToken) IsValidAt(now time.Time) bool {
	return t.StateAt(now) == TokenStateActive
}

// Device returns the device metadata recorded with the token.
func (t *RefreshToken) Device() DeviceInfo {
	return DeviceInfo{
		Name:      t.DeviceName,
		IPAddress: t.DeviceIP,
		UserAgent: t.UserAgent,
	}
}

// SetDevice stores device metadata on the record.
func (t *RefreshToken) SetDevice(info DeviceInfo) *RefreshToken {
	t.DeviceName = info.Name
	t.DeviceIP = info.IPAddress
	t.UserAgent = info.UserAgent
	return t
}

// Redacted returns a copy safe to hand to callers listing sessions: the
// secret value is cleared.
func (t *RefreshToken) Redacted() *RefreshToken {
	clone := *t
	clone.Token = ""
	return &clone
}

// ApiKey is a long-lived credential scoped to a user. Keys are
// deactivated by revoke and never reactivated.
type ApiKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	KeyValue      string     `bun:"key_value,notnull,unique" json:"key_value,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	Active        bool       `bun:"active,notnull,default:true" json:"active"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsValidAt reports whether the key authenticates at the given instant.
func (k *ApiKey) IsValidAt(now time.Time) bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return false
	}
	return true
}

// Redacted returns a copy with the secret value cleared. The raw secret
// is only ever present in the Create response.
func (k *ApiKey) Redacted() *ApiKey {
	clone := *k
	clone.KeyValue = ""
	return &clone
}
