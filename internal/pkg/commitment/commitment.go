// Package commitment turns login secrets into the stored commitment that the
// record ledgers compare against.
package commitment

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Commit returns the bcrypt commitment of secret.
func Commit(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether secret matches commitment. A malformed commitment is
// an error; a mismatch is not.
func Verify(commitment, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(commitment), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
