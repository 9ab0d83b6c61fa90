// Package wire bridges classical line-oriented clients onto the native
// session fabric. Each /webirc connection becomes an ordinary hub session
// whose encoder renders native events as classical lines; inbound verbs are
// translated into the same envelopes the native transport produces, so both
// transports share one dispatch path, one store, and one set of rooms.
package wire

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"

	"github.com/irc-ultra/ircultra/internal/config"
	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/ratelimit"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/validate"
)

const (
	// maxFrameBytes caps one inbound frame; a frame may carry several lines.
	maxFrameBytes = 4096

	// readWait mirrors the native transport's pong deadline. The write
	// pump's protocol-level pings keep a healthy connection inside it.
	readWait = 60 * time.Second
)

// Adaptor serves classical clients on top of the shared hub. Verbs become
// native envelopes handed to the same event handler the native transport
// uses; replies that exist only on this transport (numerics, PONG, name
// bursts) bypass the encoder via SendRaw.
type Adaptor struct {
	cfg     *config.Config
	store   *store.Store
	hub     *gateway.Hub
	handler gateway.EventHandler
	log     zerolog.Logger
}

// New builds the adaptor. The handler is the same dispatcher registered on
// the hub.
func New(cfg *config.Config, st *store.Store, hub *gateway.Hub, handler gateway.EventHandler, logger zerolog.Logger) *Adaptor {
	return &Adaptor{
		cfg:     cfg,
		store:   st,
		hub:     hub,
		handler: handler,
		log:     logger.With().Str("component", "wire").Logger(),
	}
}

// Serve runs one wire connection to completion. It attaches the connection
// to the hub with the line encoder and the wire rate-limit preset, performs
// the device handshake with a synthetic per-connection device, and consumes
// frames until the connection drops. Teardown releases the alias exactly
// like a native disconnect.
func (a *Adaptor) Serve(conn *websocket.Conn, ip string) {
	limiter := ratelimit.New(a.cfg.WireRateLimitCount, a.cfg.WireRateLimitWindow())
	c := &client{a: a}
	s := a.hub.Attach(conn, ip, c.encode, limiter)
	if s == nil {
		return
	}
	c.sess = s
	c.raw = s.SendRaw

	// Wire clients have no device story; each connection gets a throwaway
	// identity so the claim path can arbitrate aliases normally.
	a.dispatch(s, protocol.EventHelloDevice, protocol.HelloDeviceData{
		DeviceID:        "wire-" + s.ID,
		DevicePublicKey: "wire:" + s.ID,
	})

	c.readLoop(conn)
}

// dispatch marshals a payload and hands the envelope to the dispatcher,
// exactly as if it had arrived on the native transport.
func (a *Adaptor) dispatch(s *gateway.Session, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		a.log.Error().Err(err).Str("event", event).Msg("Failed to marshal synthesized envelope")
		return
	}
	a.handler.HandleEvent(s, protocol.Envelope{Event: event, Payload: raw})
}

// client is the per-connection wire state. nick mirrors the alias the
// session holds as far as this transport has been told; pending is the
// argument of the last NICK, kept so 432/433 can name the attempted nick.
// raw queues bytes on the session, bypassing the encoder.
type client struct {
	a    *Adaptor
	sess *gateway.Session
	raw  func([]byte)

	mu       sync.Mutex
	nick     string
	pending  string
	welcomed bool
}

func (c *client) readLoop(conn *websocket.Conn) {
	defer c.a.hub.Detach(c.sess)

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.a.log.Debug().Err(err).Msg("Wire read error")
			}
			return
		}
		for _, line := range strings.Split(string(data), "\n") {
			c.handleLine(line)
		}
	}
}

// handleLine interprets one inbound line. PING stays free; every other verb
// charges the shared session limiter either here or inside the dispatcher,
// never both.
func (c *client) handleLine(raw string) {
	verb, params := parseLine(raw)
	switch verb {
	case "":
	case "PING":
		c.pong(params)
	case "NICK":
		c.nickCmd(params)
	case "JOIN":
		c.joinCmd(params)
	case "LIST":
		c.listCmd()
	case "PRIVMSG":
		c.privmsgCmd(params)
	default:
		c.a.log.Debug().Str("verb", verb).Msg("Ignoring unsupported wire verb")
	}
}

func (c *client) pong(params []string) {
	token := c.a.cfg.ServerName
	if len(params) > 0 {
		token = params[0]
	}
	c.raw(formatLine(c.a.cfg.ServerName, "PONG", c.a.cfg.ServerName, token))
}

func (c *client) nickCmd(params []string) {
	if len(params) == 0 {
		c.numeric(errNeedMoreParams, "NICK", "Not enough parameters")
		return
	}
	nick := params[0]
	// Names a line protocol cannot carry are refused before the claim path
	// ever sees them.
	if strings.HasPrefix(nick, "#") || strings.ContainsAny(nick, " ,*?!@") {
		c.numeric(errErroneousNick, nick, "Erroneous nickname")
		return
	}

	c.mu.Lock()
	c.pending = nick
	c.mu.Unlock()
	c.a.dispatch(c.sess, protocol.EventClaimAlias, protocol.ClaimAliasData{Alias: nick})
}

func (c *client) joinCmd(params []string) {
	if len(params) == 0 {
		c.numeric(errNeedMoreParams, "JOIN", "Not enough parameters")
		return
	}
	name, err := validate.ChannelName(params[0])
	wasIn := err == nil && c.sess.InChannel(name)

	c.a.dispatch(c.sess, protocol.EventJoinChannel, protocol.JoinChannelData{Channel: params[0]})
	if err != nil || !c.sess.InChannel(name) {
		return
	}

	c.mu.Lock()
	self := c.nick
	c.mu.Unlock()
	burst := c.namesLines(self, name)
	if !wasIn {
		burst = append(formatLine(self, "JOIN", name), burst...)
	}
	if len(burst) > 0 {
		c.raw(burst)
	}
}

func (c *client) listCmd() {
	if !c.allow() {
		return
	}
	for _, cs := range c.a.store.ListChannels() {
		c.numeric(rplList, cs.Channel.Name, strconv.Itoa(cs.MemberCount), cs.Channel.Topic)
	}
	c.numeric(rplListEnd, "End of /LIST")
}

func (c *client) privmsgCmd(params []string) {
	if len(params) == 0 {
		c.numeric(errNeedMoreParams, "PRIVMSG", "Not enough parameters")
		return
	}
	if len(params) < 2 || strings.TrimSpace(params[1]) == "" {
		c.numeric(errNoTextToSend, "No text to send")
		return
	}
	target, text := params[0], params[1]

	if strings.HasPrefix(target, "#") {
		c.a.dispatch(c.sess, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
			Channel: target,
			Body:    text,
		})
		return
	}
	c.directMessage(target, text)
}

// directMessage handles PRIVMSG to a nick. Direct conversations are
// end-to-end encrypted on the native transport, which a line client cannot
// take part in, so the text is echoed back to the sender alone; the named
// alias only gates the 401 check.
func (c *client) directMessage(target, text string) {
	if !c.allow() {
		return
	}
	c.mu.Lock()
	self := c.nick
	c.mu.Unlock()
	if self == "" {
		c.notice("claim a nick first")
		return
	}
	if rec, ok := c.a.store.Alias(target); !ok || !rec.Live() {
		c.numeric(errNoSuchNick, target, "No such nick")
		return
	}
	c.raw(formatLine(self, "PRIVMSG", target, text))
}

// allow charges the session limiter for verbs the dispatcher never sees.
func (c *client) allow() bool {
	if lim := c.sess.Limiter(); lim != nil && !lim.Allow() {
		c.notice("rate limited, slow down")
		return false
	}
	return true
}

// numeric sends one numeric reply addressed to the current nick, or "*"
// before registration.
func (c *client) numeric(code string, params ...string) {
	c.mu.Lock()
	target := c.nick
	c.mu.Unlock()
	if target == "" {
		target = "*"
	}
	c.raw(formatLine(c.a.cfg.ServerName, code, append([]string{target}, params...)...))
}

// notice delivers a server notice to this client only.
func (c *client) notice(text string) {
	c.mu.Lock()
	target := c.nick
	c.mu.Unlock()
	if target == "" {
		target = "*"
	}
	c.raw(formatLine(c.a.cfg.ServerName, "NOTICE", target, text))
}

// namesLines renders the 353/366 pair for one channel. Operators and voiced
// members carry their classical sigils.
func (c *client) namesLines(target, channel string) []byte {
	rows, err := c.a.store.MemberRows(channel)
	if err != nil {
		return nil
	}
	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, roleSigil(row.Membership.Role)+row.Alias)
	}
	out := formatLine(c.a.cfg.ServerName, rplNamReply, target, "=", channel, strings.Join(members, " "))
	return append(out, formatLine(c.a.cfg.ServerName, rplEndOfNames, target, channel, "End of /NAMES list")...)
}

func roleSigil(role domain.Role) string {
	switch {
	case domain.HasRoleAtLeast(role, domain.RoleOp):
		return "@"
	case domain.HasRoleAtLeast(role, domain.RoleVoice):
		return "+"
	}
	return ""
}

// encode renders native outbound events as classical lines. Events with no
// line representation return nil bytes and are dropped.
func (c *client) encode(event string, payload any, _ uint64) ([]byte, error) {
	switch event {
	case protocol.EventAliasResult:
		if data, ok := payload.(protocol.AliasResultData); ok {
			return c.aliasLine(data), nil
		}
	case protocol.EventMessageEvent:
		if data, ok := payload.(protocol.MessageEventData); ok {
			return c.messageLine(data), nil
		}
	case protocol.EventServerError:
		if data, ok := payload.(protocol.ServerErrorData); ok {
			return c.errorLine(data), nil
		}
	}
	return nil, nil
}

// aliasLine turns a claim outcome into its classical reply. The first
// success welcomes the client and replays a JOIN burst for every channel the
// claim subscribed (the first-alias auto-join included); later successes
// echo a nick change. Refusals map to 433, or 432 for invalid names.
func (c *client) aliasLine(data protocol.AliasResultData) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !data.OK {
		target, attempted := c.nick, c.pending
		if target == "" {
			target = "*"
		}
		if attempted == "" {
			attempted = "*"
		}
		if data.ErrorKey == protocol.CodeAliasInvalid {
			return formatLine(c.a.cfg.ServerName, errErroneousNick, target, attempted, "Erroneous nickname")
		}
		// In-use and reclaim-required refusals both read as a collision
		// to a line client.
		return formatLine(c.a.cfg.ServerName, errNicknameInUse, target, attempted, "Nickname is already in use")
	}

	previous := c.nick
	c.nick = data.Alias
	if !c.welcomed {
		c.welcomed = true
		out := formatLine(c.a.cfg.ServerName, rplWelcome, data.Alias,
			"Welcome to the "+c.a.cfg.ServerName+" network, "+data.Alias)
		channels := c.sess.Channels()
		sort.Strings(channels)
		for _, ch := range channels {
			out = append(out, formatLine(data.Alias, "JOIN", ch)...)
			out = append(out, c.namesLines(data.Alias, ch)...)
		}
		return out
	}
	if previous != "" && previous != data.Alias {
		return formatLine(previous, "NICK", data.Alias)
	}
	return nil
}

// messageLine renders channel text from other members. Everything else has
// no line representation: direct and thread scopes, edits, deletions,
// reactions, and the client's own channel messages (classical servers do
// not echo).
func (c *client) messageLine(data protocol.MessageEventData) []byte {
	if data.Type != protocol.MessageCreated || data.Scope.Kind != domain.ScopeChannel {
		return nil
	}
	msg := data.Message
	c.mu.Lock()
	self := c.nick
	c.mu.Unlock()
	if msg.SenderAlias == self {
		return nil
	}
	switch msg.Kind {
	case domain.KindText:
		return formatLine(msg.SenderAlias, "PRIVMSG", data.Scope.Channel, msg.Body)
	case domain.KindAction:
		return formatLine(msg.SenderAlias, "PRIVMSG", data.Scope.Channel, "\x01ACTION "+msg.Body+"\x01")
	case domain.KindNotice:
		return formatLine(msg.SenderAlias, "NOTICE", data.Scope.Channel, msg.Body)
	}
	return nil
}

// errorLine reports a dispatcher refusal. Most native codes have no numeric
// of their own, so they ride a server notice.
func (c *client) errorLine(data protocol.ServerErrorData) []byte {
	c.mu.Lock()
	target := c.nick
	c.mu.Unlock()
	if target == "" {
		target = "*"
	}
	return formatLine(c.a.cfg.ServerName, "NOTICE", target, string(data.Code)+": "+data.Message)
}
