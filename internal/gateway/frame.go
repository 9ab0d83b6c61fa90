package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/irc-ultra/ircultra/internal/protocol"
)

// EncodeFunc serialises one outbound event for a particular transport. The
// JSON transport wraps it in an envelope; the wire adaptor renders classic
// lines and may return nil to drop events it cannot express.
type EncodeFunc func(event string, payload any, seq uint64) ([]byte, error)

// EncodeJSON is the native transport encoding: a JSON envelope carrying the
// event name, payload, and the process-wide sequence number.
func EncodeJSON(event string, payload any, seq uint64) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(protocol.Envelope{
		Event:   event,
		Payload: data,
		Seq:     seq,
	})
}
