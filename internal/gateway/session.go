package gateway

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/ratelimit"
)

const (
	// maxMessageSize is the maximum size in bytes of a single inbound frame.
	maxMessageSize = 4096

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// helloTimeout is how long a native client has to send hello_device
	// after connecting.
	helloTimeout = 30 * time.Second

	// sendBuffer is the per-session outbound queue depth. Overflow
	// disconnects the session rather than stalling the fan-out path.
	sendBuffer = 256
)

// Session is a single connected client on either transport. Each session
// runs a write pump goroutine; the native transport also runs readPump,
// while the wire adaptor drives its own read loop.
type Session struct {
	ID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	encode EncodeFunc
	log    zerolog.Logger
	ip     string

	// limiter is only touched under the dispatcher's serialization.
	limiter *ratelimit.Limiter

	closeOnce sync.Once

	mu              sync.RWMutex
	deviceID        string
	devicePublicKey string
	alias           string
	reclaimNonce    string
	status          protocol.Status
	channels        map[string]struct{}
	ignored         map[string]struct{}
	color           string
	helloed         bool
	sendClosed      bool
}

func newSession(hub *Hub, conn *websocket.Conn, ip string, encode EncodeFunc, limiter *ratelimit.Limiter, logger zerolog.Logger) *Session {
	id := NewSessionID()
	return &Session{
		ID:       id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		encode:   encode,
		log:      logger.With().Str("session_id", id).Logger(),
		ip:       ip,
		limiter:  limiter,
		status:   protocol.StatusOnline,
		channels: make(map[string]struct{}),
		ignored:  make(map[string]struct{}),
	}
}

// NewSessionID generates a unique session identifier.
func NewSessionID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + uuid.NewString()[:8]
}

// IP returns the client address derived at accept time.
func (s *Session) IP() string { return s.ip }

// Limiter returns the session's inbound rate limiter. It must only be used
// from the dispatcher's serialized path.
func (s *Session) Limiter() *ratelimit.Limiter { return s.limiter }

// DeviceID returns the device bound by hello_device, or empty.
func (s *Session) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

// DevicePublicKey returns the opaque key presented at hello.
func (s *Session) DevicePublicKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devicePublicKey
}

// SetIdentity records the device handshake and marks the session helloed.
func (s *Session) SetIdentity(deviceID, publicKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = deviceID
	s.devicePublicKey = publicKey
	s.helloed = true
}

// Helloed reports whether hello_device completed.
func (s *Session) Helloed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.helloed
}

// Alias returns the alias held by this session, or empty.
func (s *Session) Alias() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alias
}

// SetAlias records the claimed alias and its reclaim nonce.
func (s *Session) SetAlias(alias, nonce string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alias = alias
	s.reclaimNonce = nonce
}

// ReclaimNonce returns the nonce issued with the current alias claim.
func (s *Session) ReclaimNonce() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reclaimNonce
}

// Status returns the session's presence status.
func (s *Session) Status() protocol.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus updates the presence status.
func (s *Session) SetStatus(status protocol.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Color returns the palette color assigned to the session's alias.
func (s *Session) Color() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.color
}

// SetColor records the palette color for presence events.
func (s *Session) SetColor(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = color
}

// AddChannel records a joined channel on the session.
func (s *Session) AddChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[name] = struct{}{}
}

// RemoveChannel forgets a parted channel.
func (s *Session) RemoveChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, name)
}

// InChannel reports whether the session has joined the channel.
func (s *Session) InChannel(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[name]
	return ok
}

// Channels returns the session's joined channels in arbitrary order.
func (s *Session) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.channels))
	for name := range s.channels {
		out = append(out, name)
	}
	return out
}

// Ignore adds an alias to the session-local mute list.
func (s *Session) Ignore(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[alias] = struct{}{}
}

// Unignore removes an alias from the mute list.
func (s *Session) Unignore(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ignored, alias)
}

// Ignores reports whether the session filters messages from alias.
func (s *Session) Ignores(alias string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ignored[alias]
	return ok
}

// SendEvent serialises an outbound event with a fresh sequence number and
// queues it for delivery. Encoders may return nil bytes to drop an event
// the transport cannot express.
func (s *Session) SendEvent(event string, payload any) {
	data, err := s.encode(event, payload, s.hub.nextSeq())
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("Failed to encode outbound event")
		return
	}
	if data == nil {
		return
	}
	s.enqueue(data)
}

// SendError reports a refused event back to this session only.
func (s *Session) SendError(code protocol.ErrorCode, message string) {
	s.SendEvent(protocol.EventServerError, protocol.ServerErrorData{Code: code, Message: message})
}

// SendRaw queues pre-encoded bytes, bypassing the encoder. The wire adaptor
// uses it for numeric replies that exist only on its transport.
func (s *Session) SendRaw(data []byte) {
	s.enqueue(data)
}

// enqueue hands a frame to the write pump. A full buffer means the client
// stopped draining; the session is cut rather than letting back-pressure
// stall the hub. The read lock is held across the channel send so closeSend
// cannot close the channel mid-send; the select never blocks, so holding it
// is safe.
func (s *Session) enqueue(msg []byte) {
	s.mu.RLock()
	if s.sendClosed {
		s.mu.RUnlock()
		return
	}
	select {
	case s.send <- msg:
		s.mu.RUnlock()
		return
	default:
	}
	s.mu.RUnlock()

	s.log.Warn().Msg("Session send buffer full, closing connection")
	s.closeWithCode(CloseInternalError, "write buffer overflow")
	s.hub.unregister(s)
}

// closeSend closes the send channel exactly once, stopping the write pump.
// Closing under the write lock excludes in-flight enqueues.
func (s *Session) closeSend() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.sendClosed = true
		close(s.send)
		s.mu.Unlock()
	})
}

// closeWithCode writes a close frame with the given code and reason, then
// closes the underlying connection.
func (s *Session) closeWithCode(code int, reason string) {
	if s.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.conn.Close()
}

// readPump decodes native-transport envelopes and hands them to the event
// handler synchronously, preserving per-session arrival order. It owns the
// connection teardown for its session. The session is closed when the
// handshake has not completed within helloDeadline.
func (s *Session) readPump(helloDeadline time.Duration) {
	defer func() {
		s.hub.unregister(s)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	helloTimer := time.AfterFunc(helloDeadline, func() {
		if !s.Helloed() {
			s.log.Debug().Msg("Session did not send hello in time")
			s.closeWithCode(CloseHelloTimeout, "hello timeout")
		}
	})
	defer helloTimer.Stop()

	helloDone := false
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.closeWithCode(CloseDecodeError, "invalid JSON")
			return
		}

		s.hub.dispatch(s, env)

		// A refused hello leaves the deadline armed; only a handshake the
		// dispatcher accepted lifts it.
		if !helloDone && s.Helloed() {
			helloTimer.Stop()
			helloDone = true
		}
	}
}

// writePump writes queued frames to the connection and keeps it alive with
// periodic pings. It exits when the send channel closes or a write fails.
// A session without a connection only drains its queue.
func (s *Session) writePump() {
	if s.conn == nil {
		for range s.send {
		}
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
