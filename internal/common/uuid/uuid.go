// Package uuid wraps github.com/google/uuid with time-ordered (version 7) identifiers,
// used for login attempt IDs and for the opaque tokens minted by the fake API.
package uuid

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// New returns a new UUIDv7. Panics if UUID generation fails.
func New() UUID {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return uuidv7
}

// Hex returns a new UUIDv7 as 32 lowercase hex characters without dashes.
func Hex() string {
	u := New()
	return hex.EncodeToString(u[:])
}
