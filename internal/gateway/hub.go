// Package gateway owns WebSocket connections and the room-based fan-out
// model. Sessions join logical rooms (one per live alias, one per channel);
// broadcasts walk a room's members and queue frames on each session.
package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/irc-ultra/ircultra/internal/config"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/ratelimit"
)

// EventHandler consumes decoded inbound events and disconnects. The
// dispatcher implements it; the hub never interprets event payloads itself.
type EventHandler interface {
	HandleEvent(s *Session, env protocol.Envelope)
	HandleDisconnect(s *Session)
}

// AliasRoom names the fan-out room for one live alias.
func AliasRoom(alias string) string { return "alias:" + alias }

// ChannelRoom names the fan-out room for one channel.
func ChannelRoom(channel string) string { return "channel:" + channel }

// Hub is the connection registry and event distributor for both transports.
type Hub struct {
	cfg     *config.Config
	log     zerolog.Logger
	handler EventHandler

	// seq is the process-wide outbound sequence counter. Stamped per
	// frame, strictly monotonic, never reused.
	seq atomic.Uint64

	mu           sync.RWMutex
	sessions     map[string]*Session
	rooms        map[string]map[*Session]struct{}
	shuttingDown bool
}

// NewHub creates the hub. SetHandler must be called before serving traffic.
func NewHub(cfg *config.Config, logger zerolog.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		log:      logger.With().Str("component", "gateway").Logger(),
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

// SetHandler wires the event handler. It exists because the hub and the
// dispatcher reference each other; the composition root breaks the cycle.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

func (h *Hub) nextSeq() uint64 {
	return h.seq.Add(1)
}

// Attach admits a connection as a new session with the given transport
// encoder and rate limiter, and starts its write pump. It returns nil when
// the server is full or shutting down, in which case the connection has
// already been closed with an explanatory code.
func (h *Hub) Attach(conn *websocket.Conn, ip string, encode EncodeFunc, limiter *ratelimit.Limiter) *Session {
	h.mu.Lock()
	if h.shuttingDown || len(h.sessions) >= h.cfg.MaxConnections {
		h.mu.Unlock()
		h.log.Warn().Str("ip", ip).Int("max", h.cfg.MaxConnections).Msg("Connection refused")
		if conn != nil {
			msg := websocket.FormatCloseMessage(CloseMaxConnections, ErrMaxConnections.Error())
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = conn.Close()
		}
		return nil
	}

	s := newSession(h, conn, ip, encode, limiter, h.log)
	h.sessions[s.ID] = s
	total := len(h.sessions)
	h.mu.Unlock()

	h.log.Debug().Str("session_id", s.ID).Str("ip", ip).Int("total", total).Msg("Session attached")
	go s.writePump()
	return s
}

// ServeChat runs a native-transport connection to completion: attach,
// read pump, teardown. It blocks until the connection drops.
func (h *Hub) ServeChat(conn *websocket.Conn, ip string) {
	limiter := ratelimit.New(h.cfg.RateLimitCount, h.cfg.RateLimitWindow())
	s := h.Attach(conn, ip, EncodeJSON, limiter)
	if s == nil {
		return
	}
	s.readPump(helloTimeout)
}

// Detach tears a session down. The wire adaptor calls this when its read
// loop exits; the native transport does the equivalent inside readPump.
func (h *Hub) Detach(s *Session) {
	h.unregister(s)
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// dispatch forwards one decoded inbound event to the handler.
func (h *Hub) dispatch(s *Session, env protocol.Envelope) {
	if h.handler == nil {
		h.log.Error().Str("event", env.Event).Msg("No event handler wired")
		return
	}
	h.handler.HandleEvent(s, env)
}

// unregister removes the session from the registry and every room, stops
// its write pump, and notifies the handler exactly once.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	current, ok := h.sessions[s.ID]
	if !ok || current != s {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.ID)
	for room, members := range h.rooms {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	total := len(h.sessions)
	h.mu.Unlock()

	s.closeSend()
	if h.handler != nil {
		h.handler.HandleDisconnect(s)
	}
	h.log.Debug().Str("session_id", s.ID).Int("total", total).Msg("Session detached")
}

// JoinRoom subscribes the session to a room.
func (h *Hub) JoinRoom(room string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
}

// LeaveRoom unsubscribes the session from a room.
func (h *Hub) LeaveRoom(room string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// roomSnapshot copies a room's members so sends happen outside the lock.
func (h *Hub) roomSnapshot(room string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	if len(members) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	return out
}

// Broadcast fans an event out to every session in the room. A non-nil skip
// filter suppresses delivery per session; senders and banned members are
// filtered this way.
func (h *Hub) Broadcast(room, event string, payload any, skip func(*Session) bool) {
	for _, s := range h.roomSnapshot(room) {
		if skip != nil && skip(s) {
			continue
		}
		s.SendEvent(event, payload)
	}
}

// BroadcastAll fans an event out to every connected session.
func (h *Hub) BroadcastAll(event string, payload any, skip func(*Session) bool) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if skip != nil && skip(s) {
			continue
		}
		s.SendEvent(event, payload)
	}
}

// ByAlias finds the live session holding an alias via its alias room.
func (h *Hub) ByAlias(alias string) (*Session, bool) {
	members := h.roomSnapshot(AliasRoom(alias))
	if len(members) == 0 {
		return nil, false
	}
	return members[0], true
}

// Disconnect closes one session with the given close code and removes it.
func (h *Hub) Disconnect(s *Session, code int, reason string) {
	s.closeWithCode(code, reason)
	h.unregister(s)
}

// DisconnectByID closes the session with the given ID, if still connected.
func (h *Hub) DisconnectByID(sessionID string, code int, reason string) bool {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	h.Disconnect(s, code, reason)
	return true
}

// SessionCount returns the number of attached sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown stops admitting connections and closes every session with a
// Going Away status.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.shuttingDown = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.rooms = make(map[string]map[*Session]struct{})
	h.mu.Unlock()

	for _, s := range sessions {
		s.closeSend()
		if s.conn != nil {
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait),
			)
			_ = s.conn.Close()
		}
	}
	h.log.Info().Int("sessions", len(sessions)).Msg("Gateway hub shut down")
}
