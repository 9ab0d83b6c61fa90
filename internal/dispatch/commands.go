package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/irc-ultra/ircultra/internal/command"
	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/validate"
)

const helpText = "available commands: /help /nick /whoami /away /back /quit /join /part " +
	"/list /names /who /whois /topic /mode /op /deop /voice /devoice /ban /unban " +
	"/mute /unmute /kick /invite /msg /me /notice /reply /thread /ignore /unignore " +
	"/search /pin /unpin /clear /bot"

// handleCommandExec runs a raw input line. Slash lines go through the
// interpreter; anything else is plain channel text for the context channel.
func (d *Dispatcher) handleCommandExec(s *gateway.Session, raw json.RawMessage) {
	var data protocol.CommandExecData
	if !d.bind(s, raw, &data) {
		return
	}

	cmd := command.Parse(data.Raw)
	if cmd == nil {
		alias, ok := d.requireAlias(s)
		if !ok {
			return
		}
		channel, err := d.channelContext(s, "", data.ContextChannel)
		if err != nil {
			d.refuse(s, err)
			return
		}
		if _, err := d.sendChannelMessage(s, alias, channel, data.Raw, domain.KindText, "", ""); err != nil {
			d.refuse(s, err)
		}
		return
	}

	d.runCommand(s, cmd, data.ContextChannel)
}

// runCommand dispatches one parsed slash command. Every command requires an
// alias; role gates resolve against the target channel's membership.
func (d *Dispatcher) runCommand(s *gateway.Session, cmd *command.Command, contextChannel string) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}

	switch cmd.Name {
	case "help":
		d.notice(s, "", helpText)
	case "nick":
		d.claimAlias(s, cmd.Arg(0), cmd.Arg(1))
	case "whoami":
		d.notice(s, "", fmt.Sprintf("you are %s (%s)", alias, s.IP()))
	case "away":
		s.SetStatus(protocol.StatusAway)
		d.broadcastPresence(s)
	case "back":
		s.SetStatus(protocol.StatusOnline)
		d.broadcastPresence(s)
	case "quit":
		d.hub.Disconnect(s, gateway.CloseNormal, "quit")
	case "join":
		if cmd.Arg(0) == "" {
			s.SendError(protocol.CodeBadRequest, "usage: /join #channel")
			return
		}
		d.join(s, alias, cmd.Arg(0))
	case "part":
		d.cmdPart(s, alias, cmd, contextChannel)
	case "list":
		d.cmdList(s)
	case "names":
		d.cmdNames(s, alias, cmd, contextChannel)
	case "who":
		d.cmdWho(s)
	case "whois":
		d.cmdWhois(s, cmd)
	case "topic":
		d.cmdTopic(s, alias, cmd, contextChannel)
	case "mode":
		d.cmdMode(s, alias, cmd)
	case "op", "deop", "voice", "devoice":
		d.cmdRole(s, alias, cmd, contextChannel)
	case "ban":
		d.cmdBan(s, alias, cmd)
	case "unban":
		d.cmdUnban(s, alias, cmd)
	case "mute":
		d.cmdMute(s, alias, cmd)
	case "unmute":
		d.cmdUnmute(s, alias, cmd)
	case "kick":
		d.cmdKick(s, alias, cmd)
	case "invite":
		d.cmdInvite(s, alias, cmd)
	case "msg":
		d.cmdMsg(s, alias, cmd)
	case "me":
		d.cmdSendKind(s, alias, cmd.RawArgs, domain.KindAction, contextChannel)
	case "notice":
		d.cmdSendKind(s, alias, cmd.RawArgs, domain.KindNotice, contextChannel)
	case "reply":
		d.cmdReply(s, alias, cmd)
	case "thread":
		d.cmdThread(s, alias, cmd)
	case "ignore":
		d.cmdIgnore(s, cmd, true)
	case "unignore":
		d.cmdIgnore(s, cmd, false)
	case "search":
		d.cmdSearch(s, alias, cmd, contextChannel)
	case "pin", "unpin", "clear":
		d.notice(s, "", "/"+cmd.Name+" acknowledged, nothing is persisted in this version")
	case "bot":
		d.cmdBot(s, alias, cmd, contextChannel)
	default:
		s.SendError(protocol.CodeBadRequest, "unknown command: /"+cmd.Name)
	}
}

// notice sends a server NOTICE to one session only. Notices are synthesized
// on the fly and never persisted.
func (d *Dispatcher) notice(s *gateway.Session, channel, text string) {
	msg := domain.Message{
		MessageID:   store.NewMessageID(),
		Scope:       domain.Scope{Kind: domain.ScopeChannel, Channel: channel},
		SenderAlias: d.cfg.ServerName,
		Kind:        domain.KindNotice,
		Body:        text,
		Timestamp:   d.now().UnixMilli(),
	}
	s.SendEvent(protocol.EventMessageEvent, protocol.MessageEventData{
		Type:    protocol.MessageCreated,
		Scope:   msg.Scope,
		Message: msg,
	})
}

func (d *Dispatcher) cmdPart(s *gateway.Session, alias string, cmd *command.Command, contextChannel string) {
	name, err := d.channelContext(s, cmd.Arg(0), contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	reason := ""
	if cmd.Arg(0) != "" {
		reason = validate.Text(cmd.ArgsFrom(1))
	}
	d.part(s, alias, name, reason)
}

func (d *Dispatcher) cmdList(s *gateway.Session) {
	summaries := d.store.ListChannels()
	if len(summaries) == 0 {
		d.notice(s, "", "no channels yet, /join one to create it")
		return
	}
	parts := make([]string, 0, len(summaries))
	for _, cs := range summaries {
		parts = append(parts, fmt.Sprintf("%s (%d)", cs.Channel.Name, cs.MemberCount))
	}
	d.notice(s, "", "channels: "+strings.Join(parts, ", "))
}

func (d *Dispatcher) cmdNames(s *gateway.Session, alias string, cmd *command.Command, contextChannel string) {
	name, err := d.channelContext(s, cmd.Arg(0), contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	rows, err := d.store.MemberRows(name)
	if err != nil {
		d.refuse(s, err)
		return
	}
	parts := make([]string, 0, len(rows))
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("%s[%s]", r.Alias, r.Membership.Role))
	}
	d.notice(s, name, fmt.Sprintf("%s members: %s", name, strings.Join(parts, ", ")))
}

func (d *Dispatcher) cmdWho(s *gateway.Session) {
	live := d.store.LiveAliases()
	names := make([]string, 0, len(live))
	for _, a := range live {
		names = append(names, a.Name)
	}
	d.notice(s, "", "online: "+strings.Join(names, ", "))
}

func (d *Dispatcher) cmdWhois(s *gateway.Session, cmd *command.Command) {
	target := cmd.Arg(0)
	if target == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /whois <alias>")
		return
	}
	ts, ok := d.hub.ByAlias(target)
	if !ok {
		s.SendError(protocol.CodeBadRequest, target+" is offline or unknown")
		return
	}
	channels := strings.Join(sortedChannels(ts), ", ")
	if channels == "" {
		channels = "none"
	}
	d.notice(s, "", fmt.Sprintf("%s is %s, channels: %s", target, ts.Status(), channels))
}

func (d *Dispatcher) cmdTopic(s *gateway.Session, alias string, cmd *command.Command, contextChannel string) {
	name, err := d.channelContext(s, cmd.Arg(0), contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}

	text := validate.Text(cmd.ArgsFrom(1))
	if text == "" {
		ch, found := d.store.Channel(name)
		if !found {
			d.refuse(s, store.ErrChannelNotFound)
			return
		}
		if ch.Topic == "" {
			d.notice(s, name, name+" has no topic")
			return
		}
		d.notice(s, name, name+" topic: "+ch.Topic)
		return
	}

	if !d.requireRole(s, alias, name, domain.RoleOp) {
		return
	}
	ch, err := d.store.SetChannelTopic(name, text)
	if err != nil {
		d.refuse(s, err)
		return
	}
	d.hub.Broadcast(gateway.ChannelRoom(name), protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelTopicChanged, name, alias, protocol.ChannelEventPayload{
			Topic: ch.Topic,
		}), nil)
}

func (d *Dispatcher) cmdMode(s *gateway.Session, alias string, cmd *command.Command) {
	rawName, flag := cmd.Arg(0), cmd.Arg(1)
	if rawName == "" || len(flag) < 2 || (flag[0] != '+' && flag[0] != '-') {
		s.SendError(protocol.CodeBadRequest, "usage: /mode #channel +flag|-flag")
		return
	}
	name, err := validate.ChannelName(rawName)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if !d.requireRole(s, alias, name, domain.RoleOp) {
		return
	}

	enable := flag[0] == '+'
	ch, err := d.store.SetChannelMode(name, "+"+flag[1:], enable)
	if err != nil {
		d.refuse(s, err)
		return
	}
	d.hub.Broadcast(gateway.ChannelRoom(name), protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelModeChanged, name, alias, protocol.ChannelEventPayload{
			Modes: ch.Modes,
		}), nil)
}

// cmdRole covers /op, /deop, /voice and /devoice.
func (d *Dispatcher) cmdRole(s *gateway.Session, alias string, cmd *command.Command, contextChannel string) {
	target := cmd.Arg(0)
	if target == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /"+cmd.Name+" <alias> [#channel]")
		return
	}
	name, err := d.channelContext(s, cmd.Arg(1), contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if !d.requireRole(s, alias, name, domain.RoleOp) {
		return
	}

	role, _ := domain.RoleFromMode(cmd.Name)
	m, err := d.store.SetMemberRole(name, target, role)
	if err != nil {
		d.refuse(s, err)
		return
	}

	d.recordModeration(alias, target, name, domain.ModRoleSet, string(role))
	d.hub.Broadcast(gateway.ChannelRoom(name), protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelMemberUpdate, name, alias, protocol.ChannelEventPayload{
			Alias: target,
			Role:  m.Role,
		}), nil)
}

// moderationTarget validates the shared <alias> #channel argument shape of
// the ban, mute and kick families and checks the actor's OP role.
func (d *Dispatcher) moderationTarget(s *gateway.Session, alias string, cmd *command.Command) (target, channel string, ok bool) {
	target = cmd.Arg(0)
	rawChannel := cmd.Arg(1)
	if target == "" || rawChannel == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /"+cmd.Name+" <alias> #channel")
		return "", "", false
	}
	name, err := validate.ChannelName(rawChannel)
	if err != nil {
		d.refuse(s, err)
		return "", "", false
	}
	if !d.requireRole(s, alias, name, domain.RoleOp) {
		return "", "", false
	}
	return target, name, true
}

func (d *Dispatcher) cmdBan(s *gateway.Session, alias string, cmd *command.Command) {
	target, channel, ok := d.moderationTarget(s, alias, cmd)
	if !ok {
		return
	}
	if _, err := d.store.BanMember(channel, target); err != nil {
		d.refuse(s, err)
		return
	}

	reason := validate.Text(cmd.ArgsFrom(2))
	action := d.recordModeration(alias, target, channel, domain.ModBan, reason)
	d.announceModeration(action)
	d.forceLeave(channel, target)
}

func (d *Dispatcher) cmdUnban(s *gateway.Session, alias string, cmd *command.Command) {
	target, channel, ok := d.moderationTarget(s, alias, cmd)
	if !ok {
		return
	}
	if _, err := d.store.UnbanMember(channel, target); err != nil {
		d.refuse(s, err)
		return
	}

	reason := validate.Text(cmd.ArgsFrom(2))
	action := d.recordModeration(alias, target, channel, domain.ModUnban, reason)
	d.announceModeration(action)
}

func (d *Dispatcher) cmdMute(s *gateway.Session, alias string, cmd *command.Command) {
	target, channel, ok := d.moderationTarget(s, alias, cmd)
	if !ok {
		return
	}
	until := d.now().Add(muteDuration).UnixMilli()
	if _, err := d.store.SetMemberMute(channel, target, until); err != nil {
		d.refuse(s, err)
		return
	}

	action := d.recordModeration(alias, target, channel, domain.ModMute, "")
	d.announceModeration(action)
}

func (d *Dispatcher) cmdUnmute(s *gateway.Session, alias string, cmd *command.Command) {
	target, channel, ok := d.moderationTarget(s, alias, cmd)
	if !ok {
		return
	}
	if _, err := d.store.SetMemberMute(channel, target, 0); err != nil {
		d.refuse(s, err)
		return
	}

	action := d.recordModeration(alias, target, channel, domain.ModUnmute, "")
	d.announceModeration(action)
}

func (d *Dispatcher) cmdKick(s *gateway.Session, alias string, cmd *command.Command) {
	target, channel, ok := d.moderationTarget(s, alias, cmd)
	if !ok {
		return
	}
	if _, err := d.store.RemoveMember(channel, target); err != nil {
		d.refuse(s, err)
		return
	}

	reason := validate.Text(cmd.ArgsFrom(2))
	d.hub.Broadcast(gateway.ChannelRoom(channel), protocol.EventChannelEvent,
		d.channelEvent(protocol.ChannelKicked, channel, alias, protocol.ChannelEventPayload{
			Alias:  target,
			Reason: reason,
		}), nil)
	action := d.recordModeration(alias, target, channel, domain.ModKick, reason)
	d.announceModeration(action)
	d.forceLeave(channel, target)
}

func (d *Dispatcher) cmdInvite(s *gateway.Session, alias string, cmd *command.Command) {
	target, channel, ok := d.moderationTarget(s, alias, cmd)
	if !ok {
		return
	}
	if _, found := d.store.Alias(target); !found {
		s.SendError(protocol.CodeBadRequest, "no such alias: "+target)
		return
	}

	ev := d.channelEvent(protocol.ChannelInvited, channel, alias, protocol.ChannelEventPayload{Alias: target})
	d.hub.Broadcast(gateway.ChannelRoom(channel), protocol.EventChannelEvent, ev, nil)
	d.hub.Broadcast(gateway.AliasRoom(target), protocol.EventChannelEvent, ev, nil)
}

// cmdMsg is the plaintext DM variant. Unlike send_dm_message the body is
// server-visible; it lands in the same conversation the encrypted path uses.
// The row keeps DM scope but carries Body rather than EncryptedPayload, so
// encrypted rows only ever come from send_dm_message.
func (d *Dispatcher) cmdMsg(s *gateway.Session, alias string, cmd *command.Command) {
	target, err := validate.Alias(cmd.Arg(0))
	if err != nil {
		s.SendError(protocol.CodeBadRequest, "usage: /msg <alias> <text>")
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
	body, err := validate.MessageBody(cmd.ArgsFrom(1))
	if err != nil {
		d.refuse(s, err)
		return
	}

	convo, _ := d.store.GetOrCreateDMConversation(alias, target)
	msg, err := d.store.InsertMessage(store.InsertMessageParams{
		Scope:          domain.Scope{Kind: domain.ScopeDM, ConvoID: convo.ConvoID},
		SenderAlias:    alias,
		SenderDeviceID: s.DeviceID(),
		Kind:           domain.KindText,
		Body:           body,
	})
	if err != nil {
		d.refuse(s, err)
		return
	}
	d.broadcastMessageEvent(protocol.MessageCreated, msg)
}

// cmdSendKind covers /me and /notice: a message of a fixed kind into the
// context channel.
func (d *Dispatcher) cmdSendKind(s *gateway.Session, alias, text string, kind domain.MessageKind, contextChannel string) {
	channel, err := d.channelContext(s, "", contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if _, err := d.sendChannelMessage(s, alias, channel, text, kind, "", ""); err != nil {
		d.refuse(s, err)
	}
}

func (d *Dispatcher) cmdReply(s *gateway.Session, alias string, cmd *command.Command) {
	parentID := cmd.Arg(0)
	text := cmd.ArgsFrom(1)
	if parentID == "" || text == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /reply <messageId> <text>")
		return
	}
	parent, found := d.store.Message(parentID)
	if !found || parent.Deleted() {
		d.refuse(s, store.ErrMessageNotFound)
		return
	}
	if parent.Scope.Kind == domain.ScopeDM {
		s.SendError(protocol.CodeBadRequest, "replies target channel messages")
		return
	}

	// Replying to a thread message stays inside the thread.
	if _, err := d.sendChannelMessage(s, alias, parent.Scope.Channel, text, domain.KindText, parentID, parent.Scope.ThreadID); err != nil {
		d.refuse(s, err)
	}
}

func (d *Dispatcher) cmdThread(s *gateway.Session, alias string, cmd *command.Command) {
	rootID := cmd.Arg(0)
	text := cmd.ArgsFrom(1)
	if rootID == "" || text == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /thread <messageId> <text>")
		return
	}
	parent, found := d.store.Message(rootID)
	if !found || parent.Deleted() {
		d.refuse(s, store.ErrMessageNotFound)
		return
	}
	if parent.Scope.Kind == domain.ScopeDM {
		s.SendError(protocol.CodeBadRequest, "threads hang off channel messages")
		return
	}

	// Threading a thread message reuses its root so threads never nest.
	if parent.Scope.Kind == domain.ScopeThread {
		rootID = parent.Scope.ThreadID
	}
	if _, err := d.sendChannelMessage(s, alias, parent.Scope.Channel, text, domain.KindText, "", rootID); err != nil {
		d.refuse(s, err)
	}
}

func (d *Dispatcher) cmdIgnore(s *gateway.Session, cmd *command.Command, ignore bool) {
	target := cmd.Arg(0)
	if target == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /"+cmd.Name+" <alias>")
		return
	}
	if ignore {
		s.Ignore(target)
		d.notice(s, "", "now ignoring "+target)
		return
	}
	s.Unignore(target)
	d.notice(s, "", "no longer ignoring "+target)
}

// cmdSearch returns up to eight matches from the context channel as a
// history_snapshot, newest last.
func (d *Dispatcher) cmdSearch(s *gateway.Session, alias string, cmd *command.Command, contextChannel string) {
	term := strings.TrimSpace(cmd.RawArgs)
	if term == "" {
		s.SendError(protocol.CodeBadRequest, "usage: /search <term>")
		return
	}
	channel, err := d.channelContext(s, "", contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	scope := domain.Scope{Kind: domain.ScopeChannel, Channel: channel}
	if err := d.canAccess(alias, scope); err != nil {
		d.refuse(s, err)
		return
	}

	matches := d.store.SearchChannelMessages(channel, term, searchLimit)
	if matches == nil {
		matches = []domain.Message{}
	}
	s.SendEvent(protocol.EventHistorySnapshot, protocol.HistorySnapshotData{
		Scope:    scope,
		Messages: matches,
	})
}

func (d *Dispatcher) cmdBot(s *gateway.Session, alias string, cmd *command.Command, contextChannel string) {
	switch cmd.Arg(0) {
	case "list":
		bots := d.store.Bots()
		if len(bots) == 0 {
			d.notice(s, "", "no bots registered")
			return
		}
		parts := make([]string, 0, len(bots))
		for _, b := range bots {
			parts = append(parts, fmt.Sprintf("%s v%s id=%s", b.Name, b.Version, b.BotID))
		}
		d.notice(s, "", "bots: "+strings.Join(parts, ", "))
	case "run":
		botID := cmd.Arg(1)
		if botID == "" {
			s.SendError(protocol.CodeBadRequest, "usage: /bot run <botId> [args...]")
			return
		}
		d.invokeBot(s, alias, botID, "run", cmd.Args[2:], "", contextChannel)
	default:
		s.SendError(protocol.CodeBadRequest, "usage: /bot list | /bot run <botId> [args...]")
	}
}

// recordModeration writes the action and audit rows every moderation
// command leaves behind.
func (d *Dispatcher) recordModeration(actor, target, channel string, typ domain.ModerationType, reason string) domain.ModerationAction {
	action := d.store.InsertModerationAction(actor, target, channel, typ, reason)
	payload := map[string]any{
		"action":  string(typ),
		"target":  target,
		"channel": channel,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	d.store.InsertAuditEvent("moderation", actor, payload)
	return action
}

// announceModeration mirrors a stored moderation action into its channel
// room.
func (d *Dispatcher) announceModeration(action domain.ModerationAction) {
	d.hub.Broadcast(gateway.ChannelRoom(action.Channel), protocol.EventModerationEvent, protocol.ModerationEventData{
		Action:    action.ActionType,
		Actor:     action.ActorAlias,
		Target:    action.TargetAlias,
		Channel:   action.Channel,
		Reason:    action.Reason,
		Timestamp: action.CreatedAt,
	}, nil)
}

// forceLeave drops a kicked or banned member's live session out of the
// channel room. The store membership is already settled by the caller.
func (d *Dispatcher) forceLeave(channel, target string) {
	ts, ok := d.hub.ByAlias(target)
	if !ok {
		return
	}
	ts.RemoveChannel(channel)
	d.hub.LeaveRoom(gateway.ChannelRoom(channel), ts)
	d.broadcastPresence(ts)
}
