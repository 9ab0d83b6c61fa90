package store

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewMessageID returns a UUIDv7 string. Message IDs sort by creation time,
// which keeps the flat message log naturally ordered.
func NewMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// newID returns a random UUIDv4 string for rows with no ordering needs.
func newID() string {
	return uuid.NewString()
}

// newNonce returns a 128-bit random hex token. Nonces guard alias reclaim
// and must be unguessable, so they come from crypto/rand rather than the
// UUID generator.
func newNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; a UUID is
		// still random enough to keep the server running.
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
