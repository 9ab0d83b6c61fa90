package protocol

// ErrorCode is the closed set of server_error codes.
type ErrorCode string

const (
	CodeBadRequest      ErrorCode = "BAD_REQUEST"
	CodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	CodeAliasInUse      ErrorCode = "ALIAS_IN_USE"
	CodeAliasInvalid    ErrorCode = "ALIAS_INVALID"
	CodeChannelNotFound ErrorCode = "CHANNEL_NOT_FOUND"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"
	CodeInternal        ErrorCode = "INTERNAL"
)

// Status is a session's presence state as seen by other sessions.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// ChannelEventType enumerates channel_event subtypes.
type ChannelEventType string

const (
	ChannelCreated      ChannelEventType = "CREATED"
	ChannelJoined       ChannelEventType = "JOINED"
	ChannelParted       ChannelEventType = "PARTED"
	ChannelTopicChanged ChannelEventType = "TOPIC_CHANGED"
	ChannelModeChanged  ChannelEventType = "MODE_CHANGED"
	ChannelInvited      ChannelEventType = "INVITED"
	ChannelKicked       ChannelEventType = "KICKED"
	ChannelMemberUpdate ChannelEventType = "MEMBER_UPDATED"
)

// MessageEventType enumerates message_event subtypes.
type MessageEventType string

const (
	MessageCreated         MessageEventType = "CREATED"
	MessageEdited          MessageEventType = "EDITED"
	MessageDeleted         MessageEventType = "DELETED"
	MessageReactionAdded   MessageEventType = "REACTION_ADDED"
	MessageReactionRemoved MessageEventType = "REACTION_REMOVED"
)
