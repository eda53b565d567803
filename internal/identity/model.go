package identity

import (
	"errors"
	"time"
)

// RoleFarmer is the role given to identities registered over USSD.
const RoleFarmer = "farmer"

var (
	// ErrNotFound is returned when no identity matches the lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrExists is returned when the phone number is already registered.
	ErrExists = errors.New("identity already exists")
)

// User is a registered account holder.
type User struct {
	ID        string
	Phone     string
	Name      string
	Email     string
	Role      string
	PINHash   []byte
	CreatedAt time.Time
}

// NewUser carries the data collected during registration. The PIN is
// already hashed by the time it reaches the directory.
type NewUser struct {
	Phone   string
	Name    string
	Email   string
	PINHash []byte
}
