package dispatch

import (
	"encoding/json"
	"strings"

	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/store"
)

func (d *Dispatcher) handleBotInvoke(s *gateway.Session, raw json.RawMessage) {
	alias, ok := d.requireAlias(s)
	if !ok {
		return
	}
	var data protocol.BotInvokeData
	if !d.bind(s, raw, &data) {
		return
	}
	d.invokeBot(s, alias, data.BotID, data.Command, data.Args, data.Channel, "")
}

// invokeBot runs the shared bot flow for the bot_invoke event and /bot run:
// a bot_event into the channel room followed by a mirrored NOTICE message
// attributed to the bot. Invoking a bot counts as speaking, so mutes apply.
func (d *Dispatcher) invokeBot(s *gateway.Session, alias, botID, cmdName string, args []string, explicitChannel, contextChannel string) {
	// Typed commands tend to use the bot's name, so resolution falls back
	// to it when the ID lookup misses.
	bot, err := d.store.BotByID(botID)
	if err != nil {
		bot, err = d.store.BotByName(botID)
	}
	if err != nil {
		d.refuse(s, err)
		return
	}
	channel, err := d.channelContext(s, explicitChannel, contextChannel)
	if err != nil {
		d.refuse(s, err)
		return
	}
	if _, found := d.store.Channel(channel); !found {
		d.refuse(s, store.ErrChannelNotFound)
		return
	}

	m, found := d.store.Membership(channel, alias)
	if !found {
		d.refuse(s, store.ErrNotMember)
		return
	}
	if m.IsBanned {
		d.refuse(s, store.ErrBanned)
		return
	}
	if m.MutedAt(d.now().UnixMilli()) {
		d.refuse(s, errMuted)
		return
	}
	if !bot.EnabledIn(channel) {
		d.refuse(s, errBotDisabled)
		return
	}

	output := botOutput(bot, cmdName, args)
	d.hub.Broadcast(gateway.ChannelRoom(channel), protocol.EventBotEvent, protocol.BotEventData{
		BotID:     bot.BotID,
		Channel:   channel,
		Output:    output,
		Timestamp: d.now().UnixMilli(),
	}, nil)

	msg, err := d.store.InsertMessage(store.InsertMessageParams{
		Scope:       domain.Scope{Kind: domain.ScopeChannel, Channel: channel},
		SenderAlias: bot.Name,
		Kind:        domain.KindNotice,
		Body:        output,
	})
	if err != nil {
		d.log.Error().Err(err).Str("bot_id", bot.BotID).Msg("Failed to mirror bot output")
		s.SendError(protocol.CodeInternal, "bot output could not be recorded")
		return
	}
	d.broadcastMessageEvent(protocol.MessageCreated, msg)
}

// botOutput produces the visible result of an invocation. Bots execute out
// of process; the gateway answers for the built-in echo bot and
// acknowledges everything else.
func botOutput(bot domain.Bot, cmdName string, args []string) string {
	joined := strings.TrimSpace(strings.Join(args, " "))
	if strings.EqualFold(bot.Name, "echo") {
		if joined != "" {
			return joined
		}
		if cmdName != "" {
			return cmdName
		}
		return "echo"
	}
	out := bot.Name + ": accepted " + cmdName
	if cmdName == "" {
		out = bot.Name + ": accepted invocation"
	}
	if joined != "" {
		out += " " + joined
	}
	return out
}
