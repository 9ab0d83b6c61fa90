package domain

// ModerationType classifies a moderation action.
type ModerationType string

const (
	ModKick    ModerationType = "KICK"
	ModBan     ModerationType = "BAN"
	ModUnban   ModerationType = "UNBAN"
	ModMute    ModerationType = "MUTE"
	ModUnmute  ModerationType = "UNMUTE"
	ModRoleSet ModerationType = "ROLE_SET"
)

// ModerationAction is the audit row written for every moderation command.
type ModerationAction struct {
	ActionID    string         `json:"actionId"`
	ActorAlias  string         `json:"actorAlias"`
	TargetAlias string         `json:"targetAlias"`
	Channel     string         `json:"channel,omitempty"`
	ActionType  ModerationType `json:"actionType"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   int64          `json:"createdAt"`
}

// AuditEvent is a generic audit trail row.
type AuditEvent struct {
	EventID   string         `json:"eventId"`
	Category  string         `json:"category"`
	Actor     string         `json:"actor"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt int64          `json:"createdAt"`
}
