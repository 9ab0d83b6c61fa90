package domain

import "encoding/json"

// ScopeKind distinguishes the three message scopes.
type ScopeKind string

const (
	ScopeChannel ScopeKind = "channel"
	ScopeDM      ScopeKind = "dm"
	ScopeThread  ScopeKind = "thread"
)

// Scope identifies where a message lives: a channel, a DM conversation, or a
// thread hanging off a channel message.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	Channel  string    `json:"channel,omitempty"`
	ConvoID  string    `json:"convoId,omitempty"`
	ThreadID string    `json:"threadId,omitempty"`
}

// Key returns the canonical identity used for history matching. Thread
// scopes match on the thread ID alone so fetches need not repeat the parent
// channel.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeDM:
		return "dm:" + s.ConvoID
	case ScopeThread:
		return "thread:" + s.ThreadID
	default:
		return "channel:" + s.Channel
	}
}

// MessageKind is the rendering class of a message.
type MessageKind string

const (
	KindText   MessageKind = "TEXT"
	KindAction MessageKind = "ACTION"
	KindNotice MessageKind = "NOTICE"
)

// Reaction groups the aliases that attached one emoji to a message.
type Reaction struct {
	Emoji   string   `json:"emoji"`
	Aliases []string `json:"aliases"`
}

// Message is a stored chat message. Exactly one of Body and EncryptedPayload
// is set: encrypted direct messages carry the opaque envelope, everything
// else carries plaintext. DeletedAt is a tombstone; deleted rows keep their
// identity but drop out of history, search, and replay.
type Message struct {
	MessageID        string          `json:"messageId"`
	Scope            Scope           `json:"scope"`
	SenderAlias      string          `json:"senderAlias"`
	SenderDeviceID   string          `json:"senderDeviceId,omitempty"`
	Kind             MessageKind     `json:"kind"`
	Body             string          `json:"body,omitempty"`
	EncryptedPayload json.RawMessage `json:"encryptedPayload,omitempty"`
	Timestamp        int64           `json:"timestamp"`
	ReplyTo          string          `json:"replyTo,omitempty"`
	ThreadID         string          `json:"threadId,omitempty"`
	Reactions        []Reaction      `json:"reactions,omitempty"`
	DeletedAt        int64           `json:"deletedAt,omitempty"`
}

// Deleted reports whether the message has been tombstoned.
func (m *Message) Deleted() bool {
	return m.DeletedAt != 0
}

// ToggleReaction flips alias's reaction with the given emoji and reports
// whether it was added. A reaction group is removed once its last alias
// leaves, keeping (emoji, alias) pairs unique.
func (m *Message) ToggleReaction(emoji, alias string) bool {
	for i := range m.Reactions {
		r := &m.Reactions[i]
		if r.Emoji != emoji {
			continue
		}
		for j, a := range r.Aliases {
			if a == alias {
				r.Aliases = append(r.Aliases[:j], r.Aliases[j+1:]...)
				if len(r.Aliases) == 0 {
					m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				}
				return false
			}
		}
		r.Aliases = append(r.Aliases, alias)
		return true
	}
	m.Reactions = append(m.Reactions, Reaction{Emoji: emoji, Aliases: []string{alias}})
	return true
}
