package dispatch

import (
	"encoding/json"

	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/validate"
)

func (d *Dispatcher) handleJoinChannel(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.JoinChannelData
	if !d.bind(s, raw, &data) {
		return
	}
	d.join(s, alias, data.Channel)
}

// join is the shared join flow for the join_channel event and /join.
func (d *Dispatcher) join(s *gateway.Session, alias, rawName string) {
	name, err := validate.ChannelName(rawName)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if _, err := d.joinChannel(s, alias, name); err != nil {
		d.refuse(s, err)
		return
	}
	d.broadcastPresence(s)
	s.SendEvent(protocol.EventNetworkSnapshot, d.networkSnapshot(alias))
}

// joinChannel performs the store join, subscribes the session to the room,
// and announces CREATED and JOINED. Rejoining a channel is quiet.
func (d *Dispatcher) joinChannel(s *gateway.Session, alias, name string) (store.JoinResult, error) {
	res, err := d.store.JoinChannel(name, alias)
	if err != nil {
		return store.JoinResult{}, err
	}

	s.AddChannel(name)
	d.hub.JoinRoom(gateway.ChannelRoom(name), s)
	if res.AlreadyMember {
		return res, nil
	}

	room := gateway.ChannelRoom(name)
	if res.Created {
		d.hub.Broadcast(room, protocol.EventChannelEvent,
			d.channelEvent(protocol.ChannelCreated, name, alias, protocol.ChannelEventPayload{}), nil)
	}
	d.hub.Broadcast(room, protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelJoined, name, alias, protocol.ChannelEventPayload{Alias: alias}), nil)
	return res, nil
}

func (d *Dispatcher) handlePartChannel(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.PartChannelData
	if !d.bind(s, raw, &data) {
		return
	}
	d.part(s, alias, data.Channel, "")
}

// part is the shared part flow for the part_channel event and /part. The
// PARTED announcement goes out before the session leaves the room so the
// parting member sees their own exit.
func (d *Dispatcher) part(s *gateway.Session, alias, rawName, reason string) {
	name, err := validate.ChannelName(rawName)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if err := d.store.PartChannel(name, alias); err != nil {
		d.refuse(s, err)
		return
	}

	d.hub.Broadcast(gateway.ChannelRoom(name), protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelParted, name, alias, protocol.ChannelEventPayload{
			Alias:  alias,
			Reason: reason,
		}), nil)
	s.RemoveChannel(name)
	d.hub.LeaveRoom(gateway.ChannelRoom(name), s)

	d.broadcastPresence(s)
	s.SendEvent(protocol.EventNetworkSnapshot, d.networkSnapshot(alias))
}

// handleTypingState relays a typing indicator. Typing is channel-scoped and
// touches no store state.
func (d *Dispatcher) handleTypingState(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.TypingStateData
	if !d.bind(s, raw, &data) {
		return
	}
	if data.Scope.Kind != domain.ScopeChannel || data.Scope.Channel == "" {
		s.SendError(protocol.CodeBadRequest, "typing indicators are channel-scoped")
		return
	}

	name, err := validate.ChannelName(data.Scope.Channel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	m, ok := d.store.Membership(name, alias)
	if !ok {
		d.refuse(s, store.ErrNotMember)
		return
	}
	if m.IsBanned {
		d.refuse(s, store.ErrBanned)
		return
	}

	typing := data.Active
	d.hub.Broadcast(gateway.ChannelRoom(name), protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelMemberUpdate, name, alias, protocol.ChannelEventPayload{
			Alias:  alias,
			Typing: &typing,
		}), nil)
}
