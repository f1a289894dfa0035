package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock abstracts time so expiry logic is deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Principal is the authenticated identity as seen by this package. The
// record is owned by the identity store; we only read it to mint tokens.
type Principal struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Roles         []string  `json:"roles,omitempty"`
}

// HasRole reports whether the principal carries the given role name.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email address. Email comparisons
// are case-insensitive everywhere in this package.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PrincipalLookup is the read side of the identity store.
type PrincipalLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
}

// CredentialVerifier checks a raw password against the identity store.
type CredentialVerifier interface {
	CheckPassword(ctx context.Context, principalID uuid.UUID, password string) (bool, error)
}

// ConfigurationSource supplies raw configuration values by key. Values are
// opaque strings; the availability registry decides what counts as missing.
type ConfigurationSource interface {
	GetString(key string) string
}

// ConfigurationMap is a ConfigurationSource backed by a plain map.
type ConfigurationMap map[string]string

func (m ConfigurationMap) GetString(key string) string { return m[key] }

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetRefreshTokenDuration() int
	GetIssuer() string
	GetAudience() []string
}

// DeviceInfo is optional metadata recorded with a refresh token and
// carried forward when the token is rotated.
type DeviceInfo struct {
	Name      string `json:"name,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// merge fills empty fields from a previous device record so rotation keeps
// whatever the caller did not re-send.
func (d DeviceInfo) merge(prev DeviceInfo) DeviceInfo {
	if d.Name == "" {
		d.Name = prev.Name
	}
	if d.IPAddress == "" {
		d.IPAddress = prev.IPAddress
	}
	if d.UserAgent == "" {
		d.UserAgent = prev.UserAgent
	}
	return d
}

// AuthResult is the uniform outcome shape returned by orchestrator use
// cases. Business failures land here with Success=false; only
// infrastructure faults surface as errors.
type AuthResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Email        string `json:"email,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
