package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DMConversation pairs two aliases for direct messaging. AliasA sorts before
// AliasB so the pair has a single identity regardless of who spoke first.
type DMConversation struct {
	ConvoID   string `json:"convoId"`
	AliasA    string `json:"aliasA"`
	AliasB    string `json:"aliasB"`
	CreatedAt int64  `json:"createdAt"`
}

// Involves reports whether alias is one of the two participants.
func (c *DMConversation) Involves(alias string) bool {
	return c.AliasA == alias || c.AliasB == alias
}

// DMPair returns the two aliases in canonical order.
func DMPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// DMConvoID derives the deterministic conversation ID from a pair of
// aliases. The digest is over length-prefixed sorted parts, so aliases
// containing any separator character cannot collide.
func DMConvoID(a, b string) string {
	a, b = DMPair(a, b)
	h := sha256.New()
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(a)))
	h.Write(n[:])
	h.Write([]byte(a))
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
