// Package protocol defines the JSON envelope and payload shapes exchanged
// over the gateway WebSocket. Inbound frames are {event, payload}; outbound
// frames additionally carry a process-wide monotonic sequence number.
package protocol

import "encoding/json"

// Inbound event names.
const (
	EventHelloDevice        = "hello_device"
	EventClaimAlias         = "claim_alias"
	EventCommandExec        = "command_exec"
	EventJoinChannel        = "join_channel"
	EventPartChannel        = "part_channel"
	EventSendChannelMessage = "send_channel_message"
	EventSendDMMessage      = "send_dm_message"
	EventReactToggle        = "react_toggle"
	EventMessageEdit        = "message_edit"
	EventMessageDelete      = "message_delete"
	EventHistoryFetch       = "history_fetch"
	EventTypingState        = "typing_state"
	EventBotInvoke          = "bot_invoke"
)

// Outbound event names.
const (
	EventSessionReady    = "session_ready"
	EventAliasResult     = "alias_result"
	EventNetworkSnapshot = "network_snapshot"
	EventChannelEvent    = "channel_event"
	EventMessageEvent    = "message_event"
	EventPresenceEvent   = "presence_event"
	EventModerationEvent = "moderation_event"
	EventBotEvent        = "bot_event"
	EventHistorySnapshot = "history_snapshot"
	EventServerError     = "server_error"
)

// Envelope is the frame shell for both directions. Payload stays raw on the
// inbound path so each handler can decode its own shape; Seq is stamped on
// outbound frames only.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`
}

// Outbound pairs an event name with its not-yet-marshalled payload. The
// gateway stamps the sequence number and serialises it at fan-out time.
type Outbound struct {
	Event   string
	Payload any
}
