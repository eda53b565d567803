package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PINLength is the number of digits in a transaction PIN.
const PINLength = 4

// ErrInvalidPIN is returned when a PIN is not exactly PINLength digits.
var ErrInvalidPIN = errors.New("PIN must be 4 digits")

// PINHasher salts and hashes PINs with bcrypt. The zero value uses bcrypt.DefaultCost.
type PINHasher struct {
	Cost int
}

// ValidPIN reports whether pin is exactly four ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Hash returns the bcrypt digest of pin.
func (h PINHasher) Hash(pin string) ([]byte, error) {
	if !ValidPIN(pin) {
		return nil, ErrInvalidPIN
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(pin), cost)
}

// Verify reports whether pin matches digest.
func (PINHasher) Verify(pin string, digest []byte) bool {
	if len(digest) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(digest, []byte(pin)) == nil
}
