package store

import "errors"

// Sentinel errors for the store package. The dispatch layer maps these onto
// wire error codes.
var (
	ErrAliasInUse      = errors.New("alias is held by another live session")
	ErrReclaimRequired = errors.New("alias reclaim requires the owning device or its nonce")
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotMember       = errors.New("alias is not a member of the channel")
	ErrBanned          = errors.New("alias is banned from the channel")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("message belongs to another alias")
	ErrNotEditable     = errors.New("encrypted messages cannot be edited")
	ErrMessagePayload  = errors.New("message must carry exactly one of body or encrypted payload")
	ErrInvalidMode     = errors.New("unknown channel mode flag")
	ErrBotNotFound     = errors.New("bot not found")
)
