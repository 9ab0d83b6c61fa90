package dispatch

import (
	"encoding/json"
	"strings"

	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/validate"
)

// messageKind parses the optional kind field of a channel send.
func messageKind(raw string) (domain.MessageKind, bool) {
	switch strings.ToUpper(raw) {
	case "", string(domain.KindText):
		return domain.KindText, true
	case string(domain.KindAction):
		return domain.KindAction, true
	case string(domain.KindNotice):
		return domain.KindNotice, true
	default:
		return "", false
	}
}

func (d *Dispatcher) handleSendChannelMessage(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.SendChannelMessageData
	if !d.bind(s, raw, &data) {
		return
	}
	kind, ok := messageKind(data.Kind)
	if !ok {
		s.SendError(protocol.CodeBadRequest, "unknown message kind: "+data.Kind)
		return
	}
	name, err := validate.ChannelName(data.Channel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if _, err := d.sendChannelMessage(s, alias, name, data.Body, kind, data.ReplyTo, data.ThreadID); err != nil {
		d.refuse(s, err)
	}
}

// sendChannelMessage enforces the channel-send gauntlet (channel exists,
// membership, not banned, mute expired, body valid, parents exist), inserts
// the message, and fans out CREATED. It is shared by the native event, the
// interpreter's message commands, and plain command_exec text.
func (d *Dispatcher) sendChannelMessage(s *gateway.Session, alias, channel, body string, kind domain.MessageKind, replyTo, threadID string) (domain.Message, error) {
	if _, ok := d.store.Channel(channel); !ok {
		return domain.Message{}, store.ErrChannelNotFound
	}
	m, ok := d.store.Membership(channel, alias)
	if !ok {
		return domain.Message{}, store.ErrNotMember
	}
	if m.IsBanned {
		return domain.Message{}, store.ErrBanned
	}
	if m.MutedAt(d.now().UnixMilli()) {
		return domain.Message{}, errMuted
	}

	text, err := validate.MessageBody(body)
	if err != nil {
		return domain.Message{}, err
	}
	if replyTo != "" {
		if parent, found := d.store.Message(replyTo); !found || parent.Deleted() {
			return domain.Message{}, store.ErrMessageNotFound
		}
	}

	scope := domain.Scope{Kind: domain.ScopeChannel, Channel: channel}
	if threadID != "" {
		if parent, found := d.store.Message(threadID); !found || parent.Deleted() {
			return domain.Message{}, store.ErrMessageNotFound
		}
		scope = domain.Scope{Kind: domain.ScopeThread, Channel: channel, ThreadID: threadID}
	}

	msg, err := d.store.InsertMessage(store.InsertMessageParams{
		Scope:          scope,
		SenderAlias:    alias,
		SenderDeviceID: s.DeviceID(),
		Kind:           kind,
		Body:           text,
		ReplyTo:        replyTo,
		ThreadID:       threadID,
	})
	if err != nil {
		return domain.Message{}, err
	}

	d.broadcastMessageEvent(protocol.MessageCreated, msg)
	return msg, nil
}

// handleSendDMMessage relays an opaque encrypted envelope. The server never
// inspects the payload; it only resolves the conversation and fans out.
func (d *Dispatcher) handleSendDMMessage(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	if s.DevicePublicKey() == "" {
		s.SendError(protocol.CodeUnauthorized, "direct messages require a device key")
		return
	}
	var data protocol.SendDMMessageData
	if !d.bind(s, raw, &data) {
		return
	}

	target, err := validate.Alias(data.TargetAlias)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if target == alias {
		s.SendError(protocol.CodeBadRequest, "cannot message yourself")
		return
	}
	if _, found := d.store.Alias(target); !found {
		s.SendError(protocol.CodeBadRequest, "no such alias: "+target)
		return
	}
	if len(data.EncryptedPayload) == 0 {
		s.SendError(protocol.CodeBadRequest, "encryptedPayload is required")
		return
	}

	convo, _ := d.store.GetOrCreateDMConversation(alias, target)
	msg, err := d.store.InsertMessage(store.InsertMessageParams{
		Scope:            domain.Scope{Kind: domain.ScopeDM, ConvoID: convo.ConvoID},
		SenderAlias:      alias,
		SenderDeviceID:   s.DeviceID(),
		Kind:             domain.KindText,
		EncryptedPayload: data.EncryptedPayload,
	})
	if err != nil {
		d.refuse(s, err)
		return
	}

	d.broadcastMessageEvent(protocol.MessageCreated, msg)
}

// canAccess checks that an alias may interact with a message scope: channel
// membership for channel and thread scopes, participation for DMs.
func (d *Dispatcher) canAccess(alias string, scope domain.Scope) error {
	if scope.Kind == domain.ScopeDM {
		convo, ok := d.store.DMConversation(scope.ConvoID)
		if !ok || !convo.Involves(alias) {
			return errNotParticipant
		}
		return nil
	}
	m, ok := d.store.Membership(scope.Channel, alias)
	if !ok {
		return store.ErrNotMember
	}
	if m.IsBanned {
		return store.ErrBanned
	}
	return nil
}

func (d *Dispatcher) handleReactToggle(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.ReactToggleData
	if !d.bind(s, raw, &data) {
		return
	}
	if data.MessageID == "" || data.Emoji == "" {
		s.SendError(protocol.CodeBadRequest, "messageId and emoji are required")
		return
	}

	current, found := d.store.Message(data.MessageID)
	if !found {
		d.refuse(s, store.ErrMessageNotFound)
		return
	}
	if err := d.canAccess(alias, current.Scope); err != nil {
		d.refuse(s, err)
		return
	}

	msg, added, err := d.store.ToggleReaction(data.MessageID, data.Emoji, alias)
	if err != nil {
		d.refuse(s, err)
		return
	}
	typ := protocol.MessageReactionAdded
	if !added {
		typ = protocol.MessageReactionRemoved
	}
	d.broadcastMessageEvent(typ, msg)
}

func (d *Dispatcher) handleMessageEdit(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.MessageEditData
	if !d.bind(s, raw, &data) {
		return
	}
	body, err := validate.MessageBody(data.Body)
	if err != nil {
		d.refuse(s, err)
		return
	}

	msg, err := d.store.EditMessage(data.MessageID, alias, body)
	if err != nil {
		d.refuse(s, err)
		return
	}
	d.broadcastMessageEvent(protocol.MessageEdited, msg)
}

func (d *Dispatcher) handleMessageDelete(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.MessageDeleteData
	if !d.bind(s, raw, &data) {
		return
	}

	msg, err := d.store.DeleteMessage(data.MessageID, alias)
	if err != nil {
		d.refuse(s, err)
		return
	}
	d.broadcastMessageEvent(protocol.MessageDeleted, msg)
}

// handleHistoryFetch returns persisted history for a scope to the
// originator only. Channel and thread scopes require membership, DM scopes
// participation.
func (d *Dispatcher) handleHistoryFetch(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.HistoryFetchData
	if !d.bind(s, raw, &data) {
		return
	}

	scope := data.Scope
	switch scope.Kind {
	case domain.ScopeChannel:
		name, err := validate.ChannelName(scope.Channel)
		if err != nil {
			d.refuse(s, err)
			return
		}
		scope.Channel = name
		if _, found := d.store.Channel(name); !found {
			d.refuse(s, store.ErrChannelNotFound)
			return
		}
		if err := d.canAccess(alias, scope); err != nil {
			d.refuse(s, err)
			return
		}
	case domain.ScopeThread:
		if scope.ThreadID == "" {
			s.SendError(protocol.CodeBadRequest, "scope.threadId is required")
			return
		}
		parent, found := d.store.Message(scope.ThreadID)
		if !found || parent.Scope.Kind == domain.ScopeDM {
			d.refuse(s, store.ErrMessageNotFound)
			return
		}
		if err := d.canAccess(alias, domain.Scope{Kind: domain.ScopeChannel, Channel: parent.Scope.Channel}); err != nil {
			d.refuse(s, err)
			return
		}
	case domain.ScopeDM:
		if err := d.canAccess(alias, scope); err != nil {
			d.refuse(s, err)
			return
		}
	default:
		s.SendError(protocol.CodeBadRequest, "unknown scope kind")
		return
	}

	limit := 50
	if data.Limit != nil {
		limit = *data.Limit
		if limit < 1 {
			limit = 1
		}
		if limit > 200 {
			limit = 200
		}
	}

	msgs := d.store.ListHistory(scope, data.Before, limit)
	if msgs == nil {
		msgs = []domain.Message{}
	}
	s.SendEvent(protocol.EventHistorySnapshot, protocol.HistorySnapshotData{
		Scope:    scope,
		Messages: msgs,
	})
}
