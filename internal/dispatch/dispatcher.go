// Package dispatch routes decoded inbound events to their handlers. Every
// handler runs under one dispatcher-wide mutex so store mutations and room
// fan-out happen as a unit: observers in a room see events in store
// insertion order.
package dispatch

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/irc-ultra/ircultra/internal/config"
	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/palette"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/validate"
)

const (
	// defaultChannel is auto-joined when a session claims its first alias.
	defaultChannel = "#lobby"

	// muteDuration is how long /mute silences a member.
	muteDuration = 10 * time.Minute

	// searchLimit caps /search results.
	searchLimit = 8
)

// Handler-level refusals with no store sentinel of their own.
var (
	errMuted            = errors.New("member is muted in the channel")
	errNotParticipant   = errors.New("alias is not part of the conversation")
	errNoChannelContext = errors.New("no channel context")
	errBotDisabled      = errors.New("bot is not enabled in the channel")
)

// Dispatcher implements gateway.EventHandler. It owns all inbound event and
// slash-command semantics; the hub stays a dumb pipe.
type Dispatcher struct {
	cfg    *config.Config
	store  *store.Store
	hub    *gateway.Hub
	colors *palette.Allocator
	log    zerolog.Logger
	now    func() time.Time

	// mu serializes handler bodies. HandleDisconnect must never take it:
	// disconnects re-enter from fan-out paths that already hold it.
	mu sync.Mutex
}

// New wires a dispatcher to its collaborators. The caller must register it
// on the hub with SetHandler.
func New(cfg *config.Config, st *store.Store, hub *gateway.Hub, colors *palette.Allocator, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		store:  st,
		hub:    hub,
		colors: colors,
		log:    logger.With().Str("component", "dispatch").Logger(),
		now:    time.Now,
	}
}

// HandleEvent routes one inbound envelope. The per-session rate limit is
// charged before anything else; a refused event costs nothing but the
// server_error frame.
func (d *Dispatcher) HandleEvent(s *gateway.Session, env protocol.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lim := s.Limiter(); lim != nil && !lim.Allow() {
		s.SendError(protocol.CodeRateLimit, "too many events, slow down")
		return
	}

	switch env.Event {
	case protocol.EventHelloDevice:
		d.handleHello(s, env.Payload)
	case protocol.EventClaimAlias:
		d.handleClaimAlias(s, env.Payload)
	case protocol.EventCommandExec:
		d.handleCommandExec(s, env.Payload)
	case protocol.EventJoinChannel:
		d.handleJoinChannel(s, env.Payload)
	case protocol.EventPartChannel:
		d.handlePartChannel(s, env.Payload)
	case protocol.EventSendChannelMessage:
		d.handleSendChannelMessage(s, env.Payload)
	case protocol.EventSendDMMessage:
		d.handleSendDMMessage(s, env.Payload)
	case protocol.EventReactToggle:
		d.handleReactToggle(s, env.Payload)
	case protocol.EventMessageEdit:
		d.handleMessageEdit(s, env.Payload)
	case protocol.EventMessageDelete:
		d.handleMessageDelete(s, env.Payload)
	case protocol.EventHistoryFetch:
		d.handleHistoryFetch(s, env.Payload)
	case protocol.EventTypingState:
		d.handleTypingState(s, env.Payload)
	case protocol.EventBotInvoke:
		d.handleBotInvoke(s, env.Payload)
	default:
		s.SendError(protocol.CodeBadRequest, "unknown event: "+env.Event)
	}
}

// HandleDisconnect closes the session row and, when this session was the
// alias's live holder, releases the alias and announces it offline. A name
// that was rebound to a newer session before this one unwound is left alone.
func (d *Dispatcher) HandleDisconnect(s *gateway.Session) {
	alias := s.Alias()
	released, _ := d.store.CloseSession(s.ID)
	if alias == "" {
		alias = released
	}
	d.log.Debug().Str("session_id", s.ID).Str("alias", alias).Msg("Session closed")
	if alias == "" {
		return
	}
	if rec, ok := d.store.Alias(alias); ok && rec.Live() {
		return
	}

	d.colors.Release(alias)
	d.hub.BroadcastAll(protocol.EventPresenceEvent, protocol.PresenceEventData{
		Alias:    alias,
		Status:   protocol.StatusOffline,
		Channels: []string{},
	}, nil)
}

// bind decodes an event payload, reporting a BAD_REQUEST on malformed input.
func (d *Dispatcher) bind(s *gateway.Session, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		s.SendError(protocol.CodeBadRequest, "missing payload")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.SendError(protocol.CodeBadRequest, "malformed payload: "+err.Error())
		return false
	}
	return true
}

// requireAlias gates alias-requiring events.
func (d *Dispatcher) requireAlias(s *gateway.Session) (string, bool) {
	alias := s.Alias()
	if alias == "" {
		s.SendError(protocol.CodeUnauthorized, "claim an alias first")
		return "", false
	}
	return alias, true
}

// requireRole checks the actor's standing in a channel against a minimum
// role. Banned members never qualify.
func (d *Dispatcher) requireRole(s *gateway.Session, alias, channel string, min domain.Role) bool {
	if _, ok := d.store.Channel(channel); !ok {
		s.SendError(protocol.CodeChannelNotFound, "channel not found: "+channel)
		return false
	}
	m, ok := d.store.Membership(channel, alias)
	if !ok || m.IsBanned {
		s.SendError(protocol.CodeForbidden, "you are not a member of "+channel)
		return false
	}
	if !domain.HasRoleAtLeast(m.Role, min) {
		s.SendError(protocol.CodeForbidden, string(min)+" role required in "+channel)
		return false
	}
	return true
}

// refuse maps a handler failure onto a server_error for the originator.
// Unclassified errors are logged and reported as INTERNAL.
func (d *Dispatcher) refuse(s *gateway.Session, err error) {
	var code protocol.ErrorCode
	var msg string
	switch {
	case errors.Is(err, store.ErrChannelNotFound):
		code, msg = protocol.CodeChannelNotFound, "channel not found"
	case errors.Is(err, store.ErrNotMember):
		code, msg = protocol.CodeForbidden, "join the channel first"
	case errors.Is(err, store.ErrBanned):
		code, msg = protocol.CodeForbidden, "you are banned from this channel"
	case errors.Is(err, errMuted):
		code, msg = protocol.CodeForbidden, "you are muted in this channel"
	case errors.Is(err, errNotParticipant):
		code, msg = protocol.CodeForbidden, "you are not part of this conversation"
	case errors.Is(err, errBotDisabled):
		code, msg = protocol.CodeForbidden, "the bot is not enabled in this channel"
	case errors.Is(err, store.ErrNotAuthor):
		code, msg = protocol.CodeForbidden, "only the author may do that"
	case errors.Is(err, store.ErrMessageNotFound):
		code, msg = protocol.CodeBadRequest, "message not found"
	case errors.Is(err, store.ErrNotEditable):
		code, msg = protocol.CodeBadRequest, "encrypted messages cannot be edited"
	case errors.Is(err, store.ErrMessagePayload):
		code, msg = protocol.CodeBadRequest, "a message carries exactly one of body or encryptedPayload"
	case errors.Is(err, store.ErrInvalidMode):
		code, msg = protocol.CodeBadRequest, "unknown channel mode flag"
	case errors.Is(err, store.ErrBotNotFound):
		code, msg = protocol.CodeBadRequest, "unknown bot"
	case errors.Is(err, errNoChannelContext):
		code, msg = protocol.CodeBadRequest, "no channel context, name a channel"
	case errors.Is(err, store.ErrAliasInUse):
		code, msg = protocol.CodeAliasInUse, "alias is held by another live session"
	case errors.Is(err, store.ErrReclaimRequired):
		code, msg = protocol.CodeUnauthorized, "alias belongs to another device"
	case validate.Rule(err) != "":
		code, msg = protocol.CodeBadRequest, err.Error()
	default:
		d.log.Error().Err(err).Msg("Unclassified handler error")
		code, msg = protocol.CodeInternal, "internal error"
	}
	s.SendError(code, msg)
}

// presenceData builds the presence frame for a session's current state.
func (d *Dispatcher) presenceData(s *gateway.Session) protocol.PresenceEventData {
	return protocol.PresenceEventData{
		Alias:     s.Alias(),
		Status:    s.Status(),
		Channels:  sortedChannels(s),
		PublicKey: s.DevicePublicKey(),
		Color:     s.Color(),
	}
}

// broadcastPresence announces a session's presence to every connection.
func (d *Dispatcher) broadcastPresence(s *gateway.Session) {
	d.hub.BroadcastAll(protocol.EventPresenceEvent, d.presenceData(s), nil)
}

// networkSnapshot assembles the post-claim state dump for one alias.
func (d *Dispatcher) networkSnapshot(alias string) protocol.NetworkSnapshotData {
	summaries := d.store.ListChannels()
	channels := make([]protocol.ChannelOverview, 0, len(summaries))
	for _, cs := range summaries {
		channels = append(channels, protocol.ChannelOverview{
			Name:        cs.Channel.Name,
			Topic:       cs.Channel.Topic,
			Modes:       cs.Channel.Modes,
			MemberCount: cs.MemberCount,
		})
	}

	rows := d.store.MembershipsFor(alias)
	memberships := make([]protocol.MembershipView, 0, len(rows))
	for _, r := range rows {
		memberships = append(memberships, protocol.MembershipView{
			Channel:    r.Channel,
			Alias:      r.Alias,
			Role:       r.Membership.Role,
			JoinedAt:   r.Membership.JoinedAt,
			MutedUntil: r.Membership.MutedUntil,
			IsBanned:   r.Membership.IsBanned,
		})
	}

	dms := d.store.DMConversationsFor(alias)
	if dms == nil {
		dms = []domain.DMConversation{}
	}

	return protocol.NetworkSnapshotData{
		Channels:       channels,
		DMs:            dms,
		Memberships:    memberships,
		UnreadCounters: map[string]int{},
	}
}

// channelEvent stamps a channel_event frame.
func (d *Dispatcher) channelEvent(typ protocol.ChannelEventType, channel, actor string, payload protocol.ChannelEventPayload) protocol.ChannelEventData {
	return protocol.ChannelEventData{
		Type:      typ,
		Channel:   channel,
		Actor:     actor,
		Payload:   payload,
		Timestamp: d.now().UnixMilli(),
	}
}

// scopeRooms resolves the fan-out rooms for a message scope: the channel
// room for channel and thread scopes, both alias rooms for a DM.
func (d *Dispatcher) scopeRooms(scope domain.Scope) []string {
	if scope.Kind == domain.ScopeDM {
		convo, ok := d.store.DMConversation(scope.ConvoID)
		if !ok {
			return nil
		}
		return []string{gateway.AliasRoom(convo.AliasA), gateway.AliasRoom(convo.AliasB)}
	}
	return []string{gateway.ChannelRoom(scope.Channel)}
}

// broadcastMessageEvent fans a message_event out to its scope's rooms.
// Created messages honor each receiver's ignore list; edits, deletions, and
// reaction changes always go through.
func (d *Dispatcher) broadcastMessageEvent(typ protocol.MessageEventType, msg domain.Message) {
	data := protocol.MessageEventData{Type: typ, Scope: msg.Scope, Message: msg}
	var skip func(*gateway.Session) bool
	if typ == protocol.MessageCreated {
		sender := msg.SenderAlias
		skip = func(r *gateway.Session) bool { return r.Ignores(sender) }
	}
	for _, room := range d.scopeRooms(msg.Scope) {
		d.hub.Broadcast(room, protocol.EventMessageEvent, data, skip)
	}
}

// channelContext picks the channel a command applies to: an explicit
// argument, then the client-supplied context, then the session's first
// joined channel.
func (d *Dispatcher) channelContext(s *gateway.Session, explicit, contextChannel string) (string, error) {
	raw := explicit
	if raw == "" {
		raw = contextChannel
	}
	if raw == "" {
		if chans := sortedChannels(s); len(chans) > 0 {
			raw = chans[0]
		}
	}
	if raw == "" {
		return "", errNoChannelContext
	}
	return validate.ChannelName(raw)
}

func sortedChannels(s *gateway.Session) []string {
	chans := s.Channels()
	sort.Strings(chans)
	return chans
}
