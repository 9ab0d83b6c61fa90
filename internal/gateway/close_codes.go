package gateway

import "errors"

// Custom WebSocket close codes. Standard codes (1000, 1001) are defined by
// RFC 6455; the 4000 range is reserved for application use.
const (
	CloseNormal          = 1000
	CloseInternalError   = 4000
	CloseDecodeError     = 4002
	CloseHelloTimeout    = 4003
	CloseSessionReplaced = 4009
	CloseMaxConnections  = 4010
)

// Sentinel errors for gateway failure modes.
var (
	ErrMaxConnections  = errors.New("maximum connections reached")
	ErrSessionReplaced = errors.New("session replaced by a newer connection")
)
