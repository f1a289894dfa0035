package auth

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// PasswordHashLookup is the slice of the identity store that exposes
// stored password hashes, and nothing else.
type PasswordHashLookup interface {
	FindPasswordHash(ctx context.Context, principalID uuid.UUID) (string, error)
}

// BcryptVerifier is the canonical CredentialVerifier implementation,
// comparing raw passwords against bcrypt hashes from the identity store.
type BcryptVerifier struct {
	hashes PasswordHashLookup
}

var _ CredentialVerifier = (*BcryptVerifier)(nil)

// NewBcryptVerifier creates a verifier over the given hash lookup.
func NewBcryptVerifier(hashes PasswordHashLookup) *BcryptVerifier {
	return &BcryptVerifier{hashes: hashes}
}

// CheckPassword reports whether the raw password matches the stored hash.
// A missing principal or mismatched password both come back as false, not
// as an error; only infrastructure faults error.
func (v *BcryptVerifier) CheckPassword(ctx context.Context, principalID uuid.UUID, password string) (bool, error) {
	if password == "" {
		return false, nil
	}

	hash, err := v.hashes.FindPasswordHash(ctx, principalID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load password hash")
	}

	if err := ComparePasswordAndHash(password, hash); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
