package protocol

import (
	"encoding/json"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// HelloDeviceData registers or refreshes a device identity. DeviceID is
// empty on a device's very first connection.
type HelloDeviceData struct {
	DeviceID        string `json:"deviceId,omitempty"`
	DevicePublicKey string `json:"devicePublicKey"`
}

// ClaimAliasData requests an alias for the current session. ReclaimNonce is
// required when taking an idle alias owned by a different device.
type ClaimAliasData struct {
	Alias        string `json:"alias"`
	ReclaimNonce string `json:"reclaimNonce,omitempty"`
}

// CommandExecData carries a raw input line. Lines starting with '/' run as
// commands; anything else is sent as channel text to the context channel.
type CommandExecData struct {
	Raw            string `json:"raw"`
	ContextChannel string `json:"contextChannel,omitempty"`
}

// JoinChannelData enters (and creates, if missing) a channel.
type JoinChannelData struct {
	Channel string `json:"channel"`
}

// PartChannelData leaves a channel.
type PartChannelData struct {
	Channel string `json:"channel"`
}

// SendChannelMessageData posts plaintext to a channel, optionally as a reply
// or into a thread. Kind defaults to TEXT.
type SendChannelMessageData struct {
	Channel  string `json:"channel"`
	Body     string `json:"body"`
	Kind     string `json:"kind,omitempty"`
	ReplyTo  string `json:"replyTo,omitempty"`
	ThreadID string `json:"threadId,omitempty"`
}

// SendDMMessageData relays an opaque encrypted envelope to another alias.
// The server never inspects the payload.
type SendDMMessageData struct {
	TargetAlias      string          `json:"targetAlias"`
	EncryptedPayload json.RawMessage `json:"encryptedPayload"`
}

// ReactToggleData flips the sender's emoji reaction on a message.
type ReactToggleData struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// MessageEditData replaces the body of the sender's own message.
type MessageEditData struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

// MessageDeleteData tombstones the sender's own message.
type MessageDeleteData struct {
	MessageID string `json:"messageId"`
}

// HistoryFetchData requests persisted history for a scope. Before defaults
// to now. A nil Limit means 50; explicit values clamp to [1, 200].
type HistoryFetchData struct {
	Scope  domain.Scope `json:"scope"`
	Before int64        `json:"before,omitempty"`
	Limit  *int         `json:"limit,omitempty"`
}

// TypingStateData toggles the typing indicator in a channel scope.
type TypingStateData struct {
	Scope  domain.Scope `json:"scope"`
	Active bool         `json:"active"`
}

// BotInvokeData asks a registered bot to run a command in a channel.
type BotInvokeData struct {
	BotID   string   `json:"botId"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Channel string   `json:"channel"`
}
