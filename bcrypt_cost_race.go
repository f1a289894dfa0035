//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// Race-enabled builds run slow enough that the production cost would
// blow past test timeouts, so fall back to the bcrypt default.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
