package domain

import "sort"

// Channel mode flags. Modes are stored and broadcast verbatim; this version
// attaches no behavioral semantics to them.
var validModes = map[string]bool{
	"+i": true,
	"+m": true,
	"+n": true,
	"+t": true,
	"+k": true,
	"+l": true,
}

// ValidMode reports whether flag is one of the recognised channel modes.
func ValidMode(flag string) bool {
	return validModes[flag]
}

// Channel is a named broadcast scope. Names are stored lowercased with the
// leading '#'.
type Channel struct {
	ChannelID  string   `json:"channelId"`
	Name       string   `json:"name"`
	Topic      string   `json:"topic,omitempty"`
	Modes      []string `json:"modes"`
	OwnerAlias string   `json:"ownerAlias"`
	CreatedAt  int64    `json:"createdAt"`
}

// HasMode reports whether the channel currently carries the given flag.
func (c *Channel) HasMode(flag string) bool {
	for _, m := range c.Modes {
		if m == flag {
			return true
		}
	}
	return false
}

// SetMode adds or removes a mode flag, keeping the set sorted. Setting an
// already-present flag or clearing an absent one is a no-op.
func (c *Channel) SetMode(flag string, enabled bool) {
	if enabled {
		if c.HasMode(flag) {
			return
		}
		c.Modes = append(c.Modes, flag)
		sort.Strings(c.Modes)
		return
	}
	for i, m := range c.Modes {
		if m == flag {
			c.Modes = append(c.Modes[:i], c.Modes[i+1:]...)
			return
		}
	}
}

// Membership is one alias's standing in one channel. Rows are keyed by
// (channel, alias) in the state document, so neither appears here. A banned
// membership is retained for audit but filtered from presence, fan-out, and
// name listings.
type Membership struct {
	Role       Role  `json:"role"`
	JoinedAt   int64 `json:"joinedAt"`
	MutedUntil int64 `json:"mutedUntil,omitempty"`
	IsBanned   bool  `json:"isBanned,omitempty"`
}

// MutedAt reports whether the membership is muted at the given instant.
// A zero MutedUntil means never muted; an elapsed one has expired.
func (m *Membership) MutedAt(nowMillis int64) bool {
	return m.MutedUntil > nowMillis
}
