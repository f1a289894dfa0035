package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced to clients so they can branch without parsing
// human-readable messages.
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeRefreshNotFound    = "REFRESH_TOKEN_NOT_FOUND"
	TextCodeRefreshExpired     = "REFRESH_TOKEN_EXPIRED"
	TextCodeRefreshUsed        = "REFRESH_TOKEN_USED"
	TextCodeRefreshRevoked     = "REFRESH_TOKEN_REVOKED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeApiKeyNotFound     = "API_KEY_NOT_FOUND"
	TextCodeApiKeyExpired      = "API_KEY_EXPIRED"
	TextCodeApiKeyRevoked      = "API_KEY_REVOKED"
	TextCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	TextCodeSigningKeyMissing  = "SIGNING_KEY_MISSING"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeValidationFailed   = "VALIDATION_FAILED"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when a password does not match
// the stored hash. The message deliberately does not say which part failed.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCreds)

// ErrEmailNotVerified blocks login until the address is confirmed.
var ErrEmailNotVerified = errors.New("Please verify your email address before logging in", errors.CategoryAuth).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeEmailNotVerified)

// ErrRefreshTokenNotFound means no record matched the presented value.
var ErrRefreshTokenNotFound = errors.New("Refresh token not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeRefreshNotFound)

// ErrRefreshTokenExpired reports a token past its absolute expiry. Expiry
// is checked before the used/revoked flags so an expired-and-used token
// still reads as expired.
var ErrRefreshTokenExpired = errors.New("Refresh token has expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeRefreshExpired)

// ErrRefreshTokenUsed reports an attempted replay of a consumed token.
var ErrRefreshTokenUsed = errors.New("Refresh token has been used", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeRefreshUsed)

// ErrRefreshTokenRevoked reports a token that was explicitly revoked.
var ErrRefreshTokenRevoked = errors.New("Refresh token has been revoked", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeRefreshRevoked)

// ErrTokenExpired is the access token (JWT) expiry error.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is the access token (JWT) parse/shape error.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

var ErrApiKeyNotFound = errors.New("API key not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeApiKeyNotFound)

var ErrApiKeyExpired = errors.New("API key has expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeApiKeyExpired)

var ErrApiKeyRevoked = errors.New("API key has been revoked", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeApiKeyRevoked)

// ErrMissingSigningKey is a configuration fault, not a request failure.
// Callers must treat it as fatal rather than retryable.
var ErrMissingSigningKey = errors.New("JWT signing key is not configured", errors.CategoryInternal).
	WithCode(errors.CodeInternal).
	WithTextCode(TextCodeSigningKeyMissing)

// ErrNoEmptyString rejects empty password input before hashing.
var ErrNoEmptyString = errors.New("value cannot be an empty string", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// ServiceUnavailableError builds the failure returned when the
// availability gate rejects an operation for the named service.
func ServiceUnavailableError(service string) *errors.Error {
	return errors.New("Service "+service+" is currently unavailable", errors.CategoryOperation).
		WithTextCode(TextCodeServiceUnavailable)
}

// ValidationError builds a bad-input failure for a named field. These are
// raised before any store access happens.
func ValidationError(msg string) *errors.Error {
	return errors.New(msg, errors.CategoryValidation).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeValidationFailed)
}

// IsServiceUnavailableError checks for availability gate rejections.
func IsServiceUnavailableError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeServiceUnavailable
}

// IsExpectedAuthFailure reports whether err is a business-rule failure
// that should be folded into an AuthResult instead of propagating. Only
// infrastructure faults (CategoryInternal and unclassified errors) fall
// outside this set.
func IsExpectedAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	if IsServiceUnavailableError(err) {
		return true
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	switch richErr.Category {
	case errors.CategoryValidation,
		errors.CategoryBadInput,
		errors.CategoryNotFound,
		errors.CategoryAuth,
		errors.CategoryAuthz,
		errors.CategoryConflict,
		errors.CategoryRateLimit:
		return true
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrRefreshTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
