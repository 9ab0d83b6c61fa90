package protocol

import "github.com/irc-ultra/ircultra/internal/domain"

// SessionReadyData acknowledges hello_device. Alias is set when the device
// already owns one.
type SessionReadyData struct {
	DeviceID    string `json:"deviceId"`
	Alias       string `json:"alias,omitempty"`
	ResumeToken string `json:"resumeToken"`
	MOTD        string `json:"motd"`
}

// AliasResultData reports the outcome of claim_alias. ReclaimNonce is the
// freshly rotated nonce the client must store to reclaim the alias later.
type AliasResultData struct {
	OK           bool      `json:"ok"`
	Alias        string    `json:"alias,omitempty"`
	ReclaimNonce string    `json:"reclaimNonce,omitempty"`
	ErrorKey     ErrorCode `json:"errorKey,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// ChannelOverview is one channel's row in the network snapshot.
type ChannelOverview struct {
	Name        string   `json:"name"`
	Topic       string   `json:"topic,omitempty"`
	Modes       []string `json:"modes"`
	MemberCount int      `json:"memberCount"`
}

// MembershipView is one membership row in the network snapshot.
type MembershipView struct {
	Channel    string      `json:"channel"`
	Alias      string      `json:"alias"`
	Role       domain.Role `json:"role"`
	JoinedAt   int64       `json:"joinedAt"`
	MutedUntil int64       `json:"mutedUntil,omitempty"`
	IsBanned   bool        `json:"isBanned,omitempty"`
}

// NetworkSnapshotData gives a newly attached alias the lay of the land.
type NetworkSnapshotData struct {
	Channels       []ChannelOverview       `json:"channels"`
	DMs            []domain.DMConversation `json:"dms"`
	Memberships    []MembershipView        `json:"memberships"`
	UnreadCounters map[string]int          `json:"unreadCounters"`
}

// ChannelEventPayload carries the subtype-specific fields of a
// channel_event. Alias names the subject member where one exists.
type ChannelEventPayload struct {
	Alias   string      `json:"alias,omitempty"`
	Topic   string      `json:"topic,omitempty"`
	Modes   []string    `json:"modes,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
	Typing  *bool       `json:"typing,omitempty"`
	Members []string    `json:"members,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// ChannelEventData announces channel lifecycle and membership changes to the
// channel room. Actor is the member whose action caused the event.
type ChannelEventData struct {
	Type      ChannelEventType    `json:"type"`
	Channel   string              `json:"channel"`
	Actor     string              `json:"actor,omitempty"`
	Payload   ChannelEventPayload `json:"payload"`
	Timestamp int64               `json:"timestamp"`
}

// MessageEventData carries the full message record for every subtype: the
// created or edited record, the tombstone for DELETED, and the updated
// reaction state for reaction toggles.
type MessageEventData struct {
	Type    MessageEventType `json:"type"`
	Scope   domain.Scope     `json:"scope"`
	Message domain.Message   `json:"message"`
}

// PresenceEventData announces an alias's presence change to the network.
type PresenceEventData struct {
	Alias     string   `json:"alias"`
	Status    Status   `json:"status"`
	Channels  []string `json:"channels"`
	PublicKey string   `json:"publicKey,omitempty"`
	Color     string   `json:"color,omitempty"`
}

// ModerationEventData mirrors a stored moderation action to the channel.
type ModerationEventData struct {
	Action    domain.ModerationType `json:"action"`
	Actor     string                `json:"actor"`
	Target    string                `json:"target"`
	Channel   string                `json:"channel"`
	Reason    string                `json:"reason,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// BotEventData reports a bot invocation's output to the channel.
type BotEventData struct {
	BotID     string `json:"botId"`
	Channel   string `json:"channel"`
	Output    string `json:"output,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HistorySnapshotData returns history_fetch results, oldest first.
type HistorySnapshotData struct {
	Scope    domain.Scope     `json:"scope"`
	Messages []domain.Message `json:"messages"`
}

// ServerErrorData is sent only to the session whose event failed.
type ServerErrorData struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
