package dispatch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/irc-ultra/ircultra/internal/domain"
	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
)

// exec sends one raw input line through command_exec.
func exec(t *testing.T, d *Dispatcher, s *gateway.Session, raw, contextChannel string) {
	t.Helper()
	d.HandleEvent(s, env(t, protocol.EventCommandExec, protocol.CommandExecData{
		Raw:            raw,
		ContextChannel: contextChannel,
	}))
}

// serverNotices extracts the bodies of synthesized server notices: message
// events sent by the server itself, never persisted.
func serverNotices(fs *sink) []string {
	var out []string
	for _, ev := range messageEvents(fs, protocol.MessageCreated) {
		if ev.Message.Kind == domain.KindNotice && ev.Message.SenderAlias == "irc-ultra" {
			out = append(out, ev.Message.Body)
		}
	}
	return out
}

func lastNotice(t *testing.T, fs *sink) string {
	t.Helper()
	all := serverNotices(fs)
	if len(all) == 0 {
		t.Fatal("no server notice captured")
	}
	return all[len(all)-1]
}

func moderationEvents(fs *sink, action domain.ModerationType) []protocol.ModerationEventData {
	var out []protocol.ModerationEventData
	for _, f := range fs.named(protocol.EventModerationEvent) {
		data, ok := f.payload.(protocol.ModerationEventData)
		if ok && data.Action == action {
			out = append(out, data)
		}
	}
	return out
}

func TestCommandPlainTextFallsThrough(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")

	exec(t, d, ada, "just catching up", "#go")
	created := messageEvents(adaSink, protocol.MessageCreated)
	if len(created) != 1 {
		t.Fatalf("created events = %d", len(created))
	}
	msg := created[0].Message
	if msg.Body != "just catching up" || msg.Kind != domain.KindText || msg.Scope.Channel != "#go" {
		t.Fatalf("message = %+v", msg)
	}

	// Without a client context the first joined channel (sorted) catches it.
	adaSink.reset()
	exec(t, d, ada, "no context here", "")
	created = messageEvents(adaSink, protocol.MessageCreated)
	if len(created) != 1 || created[0].Scope.Channel != "#go" {
		t.Fatalf("fallback scope = %+v", created[0].Scope)
	}

	// No channels at all leaves the text nowhere to go.
	d.HandleEvent(ada, env(t, protocol.EventPartChannel, protocol.PartChannelData{Channel: "#go"}))
	d.HandleEvent(ada, env(t, protocol.EventPartChannel, protocol.PartChannelData{Channel: "#lobby"}))
	adaSink.reset()
	exec(t, d, ada, "shouting into the void", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("no-context code = %s", got.Code)
	}
}

func TestCommandsRequireAlias(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)
	s, fs := connect(t, hub, "203.0.113.10")
	hello(t, d, s, fs, "dev-1")
	fs.reset()

	exec(t, d, s, "/help", "")
	if got := lastError(t, fs); got.Code != protocol.CodeUnauthorized {
		t.Fatalf("slash command code = %s", got.Code)
	}

	fs.reset()
	exec(t, d, s, "plain text", "")
	if got := lastError(t, fs); got.Code != protocol.CodeUnauthorized {
		t.Fatalf("plain text code = %s", got.Code)
	}
}

func TestCommandHelpAndUnknown(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)
	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada")

	exec(t, d, ada, "/help", "")
	help := lastNotice(t, adaSink)
	for _, want := range []string{"/nick", "/join", "/search", "/bot"} {
		if !strings.Contains(help, want) {
			t.Errorf("help text lacks %s: %q", want, help)
		}
	}

	adaSink.reset()
	exec(t, d, ada, "/frobnicate now", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("unknown command code = %s", got.Code)
	}
}

func TestCommandNickSwitchesAlias(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)
	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada")

	exec(t, d, ada, "/nick briar", "")
	res := adaSink.last(t, protocol.EventAliasResult).payload.(protocol.AliasResultData)
	if !res.OK || res.Alias != "briar" {
		t.Fatalf("alias result = %+v", res)
	}
	if ada.Alias() != "briar" {
		t.Fatalf("session alias = %q", ada.Alias())
	}
	if a, _ := st.Alias("ada"); a.Live() {
		t.Fatal("previous alias should be idle")
	}
}

func TestCommandWhoamiAwayBack(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)
	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada")

	exec(t, d, ada, "/whoami", "")
	who := lastNotice(t, adaSink)
	if !strings.Contains(who, "ada") || !strings.Contains(who, "203.0.113.10") {
		t.Fatalf("whoami notice = %q", who)
	}

	adaSink.reset()
	exec(t, d, ada, "/away", "")
	if ada.Status() != protocol.StatusAway {
		t.Fatalf("status = %s, want away", ada.Status())
	}
	pres := adaSink.last(t, protocol.EventPresenceEvent).payload.(protocol.PresenceEventData)
	if pres.Alias != "ada" || pres.Status != protocol.StatusAway {
		t.Fatalf("away presence = %+v", pres)
	}

	adaSink.reset()
	exec(t, d, ada, "/back", "")
	if ada.Status() != protocol.StatusOnline {
		t.Fatalf("status = %s, want online", ada.Status())
	}
}

func TestCommandJoinPartViaInterpreter(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)
	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada")

	exec(t, d, ada, "/join", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("bare join code = %s", got.Code)
	}

	adaSink.reset()
	exec(t, d, ada, "/join #side", "")
	if len(channelEvents(adaSink, protocol.ChannelJoined)) != 1 {
		t.Fatal("no JOINED event for /join")
	}
	if !ada.InChannel("#side") {
		t.Fatal("session not subscribed after /join")
	}

	zoe, zoeSink := member(t, d, hub, "203.0.113.11", "zoe", "#side")
	_ = zoe
	zoeSink.reset()

	exec(t, d, ada, "/part #side gotta run", "")
	parted := channelEvents(zoeSink, protocol.ChannelParted)
	if len(parted) != 1 || parted[0].Payload.Alias != "ada" || parted[0].Payload.Reason != "gotta run" {
		t.Fatalf("parted events = %+v", parted)
	}
	if ada.InChannel("#side") {
		t.Fatal("session still subscribed after /part")
	}
	if _, ok := st.Membership("#side", "ada"); ok {
		t.Fatal("membership should be gone after /part")
	}
}

func TestCommandTopicAndMode(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")
	zoe, zoeSink := member(t, d, hub, "203.0.113.11", "zoe", "#go")

	exec(t, d, ada, "/topic", "#go")
	if got := lastNotice(t, adaSink); !strings.Contains(got, "no topic") {
		t.Fatalf("empty topic notice = %q", got)
	}

	adaSink.reset()
	zoeSink.reset()
	exec(t, d, ada, "/topic #go Deep Go talk", "")
	changed := channelEvents(zoeSink, protocol.ChannelTopicChanged)
	if len(changed) != 1 || changed[0].Payload.Topic != "Deep Go talk" {
		t.Fatalf("topic events = %+v", changed)
	}
	if ch, _ := st.Channel("#go"); ch.Topic != "Deep Go talk" {
		t.Fatalf("stored topic = %q", ch.Topic)
	}

	// Reading it back does not need a role; setting it does.
	zoeSink.reset()
	exec(t, d, zoe, "/topic", "#go")
	if got := lastNotice(t, zoeSink); !strings.Contains(got, "Deep Go talk") {
		t.Fatalf("topic read notice = %q", got)
	}
	zoeSink.reset()
	exec(t, d, zoe, "/topic #go hijacked", "")
	if got := lastError(t, zoeSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("member topic set code = %s", got.Code)
	}

	adaSink.reset()
	zoeSink.reset()
	exec(t, d, ada, "/mode #go +m", "")
	modeEvents := channelEvents(zoeSink, protocol.ChannelModeChanged)
	if len(modeEvents) != 1 {
		t.Fatalf("mode events = %d", len(modeEvents))
	}
	if got := modeEvents[0].Payload.Modes; len(got) != 1 || got[0] != "+m" {
		t.Fatalf("modes = %v", got)
	}

	adaSink.reset()
	exec(t, d, ada, "/mode #go m", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("unsigned flag code = %s", got.Code)
	}
	adaSink.reset()
	exec(t, d, ada, "/mode #go +x", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("unknown flag code = %s", got.Code)
	}
}

func TestCommandModerationLifecycle(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#mod")
	zoe, zoeSink := member(t, d, hub, "203.0.113.11", "zoe", "#mod")

	// A plain member holds no moderation power.
	exec(t, d, zoe, "/mute ada #mod", "")
	if got := lastError(t, zoeSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("member mute code = %s", got.Code)
	}

	zoeSink.reset()
	exec(t, d, ada, "/op zoe #mod", "")
	updates := channelEvents(zoeSink, protocol.ChannelMemberUpdate)
	if len(updates) != 1 || updates[0].Payload.Alias != "zoe" || updates[0].Payload.Role != domain.RoleOp {
		t.Fatalf("op events = %+v", updates)
	}
	if m, _ := st.Membership("#mod", "zoe"); m.Role != domain.RoleOp {
		t.Fatalf("stored role = %s", m.Role)
	}
	actions := st.ModerationActions("#mod")
	if len(actions) != 1 || actions[0].ActionType != domain.ModRoleSet || actions[0].TargetAlias != "zoe" {
		t.Fatalf("audit actions = %+v", actions)
	}

	exec(t, d, ada, "/deop zoe #mod", "")
	if m, _ := st.Membership("#mod", "zoe"); m.Role != domain.RoleMember {
		t.Fatalf("role after deop = %s", m.Role)
	}

	// Mute silences channel sends until lifted.
	zoeSink.reset()
	exec(t, d, ada, "/mute zoe #mod", "")
	if got := moderationEvents(zoeSink, domain.ModMute); len(got) != 1 || got[0].Target != "zoe" {
		t.Fatalf("mute events = %+v", got)
	}
	if m, _ := st.Membership("#mod", "zoe"); m.MutedUntil == 0 {
		t.Fatal("mute expiry not stored")
	}
	zoeSink.reset()
	exec(t, d, zoe, "say something", "#mod")
	if got := lastError(t, zoeSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("muted send code = %s", got.Code)
	}

	exec(t, d, ada, "/unmute zoe #mod", "")
	zoeSink.reset()
	exec(t, d, zoe, "back again", "#mod")
	if got := messageEvents(zoeSink, protocol.MessageCreated); len(got) != 1 {
		t.Fatalf("post-unmute send delivered %d events", len(got))
	}

	// Kick removes the membership and forces the live session out.
	adaSink.reset()
	zoeSink.reset()
	exec(t, d, ada, "/kick zoe #mod flooding", "")
	kicked := channelEvents(adaSink, protocol.ChannelKicked)
	if len(kicked) != 1 || kicked[0].Payload.Alias != "zoe" || kicked[0].Payload.Reason != "flooding" {
		t.Fatalf("kicked events = %+v", kicked)
	}
	if got := moderationEvents(adaSink, domain.ModKick); len(got) != 1 {
		t.Fatalf("kick moderation events = %d", len(got))
	}
	if _, ok := st.Membership("#mod", "zoe"); ok {
		t.Fatal("membership should be gone after kick")
	}
	if zoe.InChannel("#mod") {
		t.Fatal("kicked session still subscribed")
	}

	zoeSink.reset()
	d.HandleEvent(ada, env(t, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
		Channel: "#mod",
		Body:    "quiet now",
	}))
	if got := messageEvents(zoeSink, protocol.MessageCreated); len(got) != 0 {
		t.Fatalf("kicked member still received %d messages", len(got))
	}
}

func TestCommandDelegatedModeration(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)

	ada, _ := member(t, d, hub, "203.0.113.10", "ada", "#mod")
	carol, carolSink := member(t, d, hub, "203.0.113.11", "carol", "#mod")
	dave, daveSink := member(t, d, hub, "203.0.113.12", "dave", "#mod")

	// Moderation power arrives with the granted role, not with ownership.
	exec(t, d, carol, "/mute dave #mod", "")
	if got := lastError(t, carolSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("pre-grant mute code = %s", got.Code)
	}

	exec(t, d, ada, "/op carol #mod", "")
	if m, _ := st.Membership("#mod", "carol"); m.Role != domain.RoleOp {
		t.Fatalf("carol role = %s", m.Role)
	}

	carolSink.reset()
	exec(t, d, carol, "/mute dave #mod", "")
	if got := moderationEvents(carolSink, domain.ModMute); len(got) != 1 || got[0].Actor != "carol" || got[0].Target != "dave" {
		t.Fatalf("delegated mute events = %+v", got)
	}

	daveSink.reset()
	exec(t, d, dave, "hi there", "#mod")
	if got := lastError(t, daveSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("muted send code = %s", got.Code)
	}

	actions := st.ModerationActions("#mod")
	last := actions[len(actions)-1]
	if last.ActionType != domain.ModMute || last.ActorAlias != "carol" || last.TargetAlias != "dave" {
		t.Fatalf("audit row = %+v", last)
	}
}

func TestCommandBanBlocksRejoin(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)

	ada, _ := member(t, d, hub, "203.0.113.10", "ada", "#mod")
	zoe, zoeSink := member(t, d, hub, "203.0.113.11", "zoe", "#mod")
	zoeSink.reset()

	exec(t, d, ada, "/ban zoe #mod spam", "")
	if got := moderationEvents(zoeSink, domain.ModBan); len(got) != 1 || got[0].Reason != "spam" {
		t.Fatalf("ban events = %+v", got)
	}
	if m, ok := st.Membership("#mod", "zoe"); !ok || !m.IsBanned {
		t.Fatalf("ban row = %+v ok=%v", m, ok)
	}
	if zoe.InChannel("#mod") {
		t.Fatal("banned session still subscribed")
	}

	zoeSink.reset()
	exec(t, d, zoe, "/join #mod", "")
	if got := lastError(t, zoeSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("banned rejoin code = %s", got.Code)
	}

	exec(t, d, ada, "/unban zoe #mod", "")
	if _, ok := st.Membership("#mod", "zoe"); ok {
		t.Fatal("enforcement row should be deleted on unban")
	}
	zoeSink.reset()
	exec(t, d, zoe, "/join #mod", "")
	if len(channelEvents(zoeSink, protocol.ChannelJoined)) != 1 {
		t.Fatal("unbanned member could not rejoin")
	}
}

func TestCommandInviteTargetsAliasRoom(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#mod")
	zoe, zoeSink := member(t, d, hub, "203.0.113.11", "zoe")
	zoeSink.reset()

	exec(t, d, ada, "/invite zoe #mod", "")
	invited := channelEvents(zoeSink, protocol.ChannelInvited)
	if len(invited) != 1 || invited[0].Channel != "#mod" || invited[0].Payload.Alias != "zoe" {
		t.Fatalf("invite events = %+v", invited)
	}

	adaSink.reset()
	exec(t, d, ada, "/invite ghost #mod", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("unknown target code = %s", got.Code)
	}

	// Inviting requires OP in the channel.
	zoeSink.reset()
	exec(t, d, zoe, "/invite ada #mod", "")
	if got := lastError(t, zoeSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("outsider invite code = %s", got.Code)
	}
}

func TestCommandMsgDeliversPlaintextDM(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada")
	_, zoeSink := member(t, d, hub, "203.0.113.11", "zoe")
	adaSink.reset()
	zoeSink.reset()

	exec(t, d, ada, "/msg zoe wanna pair on this?", "")
	for name, fs := range map[string]*sink{"sender": adaSink, "target": zoeSink} {
		got := messageEvents(fs, protocol.MessageCreated)
		if len(got) != 1 {
			t.Fatalf("%s saw %d created events", name, len(got))
		}
		msg := got[0].Message
		if msg.Scope.Kind != domain.ScopeDM || msg.Body != "wanna pair on this?" {
			t.Fatalf("%s dm = %+v", name, msg)
		}
	}
	if convos := st.DMConversationsFor("ada"); len(convos) != 1 {
		t.Fatalf("conversations = %+v", convos)
	}

	for _, raw := range []string{"/msg ada talking to myself", "/msg ghost hello", "/msg zoe"} {
		adaSink.reset()
		exec(t, d, ada, raw, "")
		if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
			t.Fatalf("%q code = %s", raw, got.Code)
		}
	}
}

func TestCommandMeAndNoticeKinds(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, _ := member(t, d, hub, "203.0.113.10", "ada", "#go")
	_, zoeSink := member(t, d, hub, "203.0.113.11", "zoe", "#go")
	zoeSink.reset()

	exec(t, d, ada, "/me ships it", "#go")
	exec(t, d, ada, "/notice deploy at noon", "#go")

	created := messageEvents(zoeSink, protocol.MessageCreated)
	if len(created) != 2 {
		t.Fatalf("created events = %d", len(created))
	}
	if created[0].Message.Kind != domain.KindAction || created[0].Message.Body != "ships it" {
		t.Fatalf("action message = %+v", created[0].Message)
	}
	if created[1].Message.Kind != domain.KindNotice || created[1].Message.Body != "deploy at noon" {
		t.Fatalf("notice message = %+v", created[1].Message)
	}
}

func TestCommandReplyAndThread(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")
	_, _ = member(t, d, hub, "203.0.113.11", "zoe")

	d.HandleEvent(ada, env(t, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
		Channel: "#go",
		Body:    "root message",
	}))
	root := messageEvents(adaSink, protocol.MessageCreated)[0].Message

	adaSink.reset()
	exec(t, d, ada, fmt.Sprintf("/reply %s totally agree", root.MessageID), "")
	reply := messageEvents(adaSink, protocol.MessageCreated)[0].Message
	if reply.ReplyTo != root.MessageID || reply.Scope.Kind != domain.ScopeChannel {
		t.Fatalf("reply = %+v", reply)
	}

	adaSink.reset()
	exec(t, d, ada, fmt.Sprintf("/thread %s forking this discussion", root.MessageID), "")
	threaded := messageEvents(adaSink, protocol.MessageCreated)[0].Message
	if threaded.Scope.Kind != domain.ScopeThread || threaded.Scope.ThreadID != root.MessageID {
		t.Fatalf("thread scope = %+v", threaded.Scope)
	}

	// Threading a thread message reuses the root, threads never nest.
	adaSink.reset()
	exec(t, d, ada, fmt.Sprintf("/thread %s deeper", threaded.MessageID), "")
	nested := messageEvents(adaSink, protocol.MessageCreated)[0].Message
	if nested.Scope.ThreadID != root.MessageID {
		t.Fatalf("nested thread root = %q, want %q", nested.Scope.ThreadID, root.MessageID)
	}

	// Replying to a thread message stays inside the thread.
	adaSink.reset()
	exec(t, d, ada, fmt.Sprintf("/reply %s from inside", threaded.MessageID), "")
	inside := messageEvents(adaSink, protocol.MessageCreated)[0].Message
	if inside.Scope.Kind != domain.ScopeThread || inside.Scope.ThreadID != root.MessageID {
		t.Fatalf("in-thread reply scope = %+v", inside.Scope)
	}

	// DM messages cannot anchor replies or threads.
	adaSink.reset()
	exec(t, d, ada, "/msg zoe secret base", "")
	dm := messageEvents(adaSink, protocol.MessageCreated)[0].Message
	adaSink.reset()
	exec(t, d, ada, fmt.Sprintf("/reply %s leaking", dm.MessageID), "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("dm reply code = %s", got.Code)
	}

	for _, raw := range []string{"/reply", "/reply " + root.MessageID, "/reply no-such-id hi", "/thread no-such-id hi"} {
		adaSink.reset()
		exec(t, d, ada, raw, "")
		if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
			t.Fatalf("%q code = %s", raw, got.Code)
		}
	}
}

func TestCommandIgnoreToggle(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")
	zoe, _ := member(t, d, hub, "203.0.113.11", "zoe", "#go")

	exec(t, d, ada, "/ignore zoe", "")
	if got := lastNotice(t, adaSink); !strings.Contains(got, "ignoring zoe") {
		t.Fatalf("ignore notice = %q", got)
	}
	if !ada.Ignores("zoe") {
		t.Fatal("ignore flag not set")
	}

	adaSink.reset()
	d.HandleEvent(zoe, env(t, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
		Channel: "#go",
		Body:    "can you hear me?",
	}))
	if got := messageEvents(adaSink, protocol.MessageCreated); len(got) != 0 {
		t.Fatalf("ignored sender delivered %d events", len(got))
	}

	exec(t, d, ada, "/unignore zoe", "")
	if ada.Ignores("zoe") {
		t.Fatal("ignore flag not cleared")
	}
	adaSink.reset()
	d.HandleEvent(zoe, env(t, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
		Channel: "#go",
		Body:    "now?",
	}))
	if got := messageEvents(adaSink, protocol.MessageCreated); len(got) != 1 {
		t.Fatalf("unignored sender delivered %d events", len(got))
	}

	adaSink.reset()
	exec(t, d, ada, "/ignore", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("bare ignore code = %s", got.Code)
	}
}

func TestCommandSearchReturnsSnapshot(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")
	for i := 0; i < 10; i++ {
		d.HandleEvent(ada, env(t, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
			Channel: "#go",
			Body:    fmt.Sprintf("needle %d", i),
		}))
	}
	d.HandleEvent(ada, env(t, protocol.EventSendChannelMessage, protocol.SendChannelMessageData{
		Channel: "#go",
		Body:    "plain hay",
	}))

	adaSink.reset()
	exec(t, d, ada, "/search NEEDLE", "#go")
	snap := adaSink.last(t, protocol.EventHistorySnapshot).payload.(protocol.HistorySnapshotData)
	if len(snap.Messages) != 8 {
		t.Fatalf("matches = %d, want 8", len(snap.Messages))
	}
	if snap.Messages[0].Body != "needle 2" || snap.Messages[7].Body != "needle 9" {
		t.Fatalf("window = %q .. %q", snap.Messages[0].Body, snap.Messages[7].Body)
	}

	adaSink.reset()
	exec(t, d, ada, "/search", "#go")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("empty term code = %s", got.Code)
	}

	zoe, zoeSink := member(t, d, hub, "203.0.113.11", "zoe")
	zoeSink.reset()
	exec(t, d, zoe, "/search needle", "#go")
	if got := lastError(t, zoeSink); got.Code != protocol.CodeForbidden {
		t.Fatalf("non-member search code = %s", got.Code)
	}
}

func TestCommandRosterViews(t *testing.T) {
	t.Parallel()
	d, hub, _ := newTestDispatcher(t)

	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada")
	_, _ = member(t, d, hub, "203.0.113.11", "zoe")
	adaSink.reset()

	exec(t, d, ada, "/who", "")
	who := lastNotice(t, adaSink)
	if !strings.Contains(who, "ada") || !strings.Contains(who, "zoe") {
		t.Fatalf("who notice = %q", who)
	}

	adaSink.reset()
	exec(t, d, ada, "/whois zoe", "")
	whois := lastNotice(t, adaSink)
	if !strings.Contains(whois, "zoe is online") || !strings.Contains(whois, "#lobby") {
		t.Fatalf("whois notice = %q", whois)
	}

	adaSink.reset()
	exec(t, d, ada, "/whois ghost", "")
	if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
		t.Fatalf("unknown whois code = %s", got.Code)
	}

	adaSink.reset()
	exec(t, d, ada, "/names #lobby", "")
	names := lastNotice(t, adaSink)
	if !strings.Contains(names, "ada[OWNER]") || !strings.Contains(names, "zoe[MEMBER]") {
		t.Fatalf("names notice = %q", names)
	}

	adaSink.reset()
	exec(t, d, ada, "/list", "")
	list := lastNotice(t, adaSink)
	if !strings.Contains(list, "#lobby (2)") {
		t.Fatalf("list notice = %q", list)
	}
}

func TestCommandPinFamilyAcknowledged(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)
	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")

	before := len(st.ListHistory(domain.Scope{Kind: domain.ScopeChannel, Channel: "#go"}, 0, 100))
	for _, raw := range []string{"/pin some-id", "/unpin some-id", "/clear"} {
		adaSink.reset()
		exec(t, d, ada, raw, "#go")
		if got := lastNotice(t, adaSink); !strings.Contains(got, "acknowledged") {
			t.Fatalf("%q notice = %q", raw, got)
		}
	}
	after := len(st.ListHistory(domain.Scope{Kind: domain.ScopeChannel, Channel: "#go"}, 0, 100))
	if before != after {
		t.Fatalf("history grew from %d to %d", before, after)
	}
}

func TestCommandBotViaInterpreter(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)
	ada, adaSink := member(t, d, hub, "203.0.113.10", "ada", "#go")

	exec(t, d, ada, "/bot list", "")
	if got := lastNotice(t, adaSink); !strings.Contains(got, "echo") {
		t.Fatalf("bot list notice = %q", got)
	}

	echo := st.Bots()[0]
	adaSink.reset()
	exec(t, d, ada, fmt.Sprintf("/bot run %s ping pong", echo.BotID), "#go")
	bev := adaSink.last(t, protocol.EventBotEvent).payload.(protocol.BotEventData)
	if bev.BotID != echo.BotID || bev.Output != "ping pong" {
		t.Fatalf("bot event = %+v", bev)
	}

	// The run argument resolves by bot name too.
	adaSink.reset()
	exec(t, d, ada, "/bot run echo by name", "#go")
	bev = adaSink.last(t, protocol.EventBotEvent).payload.(protocol.BotEventData)
	if bev.BotID != echo.BotID || bev.Output != "by name" {
		t.Fatalf("bot run by name event = %+v", bev)
	}

	for _, raw := range []string{"/bot", "/bot run", "/bot dance"} {
		adaSink.reset()
		exec(t, d, ada, raw, "#go")
		if got := lastError(t, adaSink); got.Code != protocol.CodeBadRequest {
			t.Fatalf("%q code = %s", raw, got.Code)
		}
	}
}

func TestCommandQuitDisconnects(t *testing.T) {
	t.Parallel()
	d, hub, st := newTestDispatcher(t)

	_, watcherSink := member(t, d, hub, "198.51.100.9", "watcher")
	ada, _ := member(t, d, hub, "203.0.113.10", "ada")
	watcherSink.reset()

	exec(t, d, ada, "/quit", "")

	if got := hub.SessionCount(); got != 1 {
		t.Fatalf("sessions after quit = %d, want 1", got)
	}
	if a, _ := st.Alias("ada"); a.Live() {
		t.Fatal("alias should be idle after quit")
	}

	var sawOffline bool
	for _, f := range watcherSink.named(protocol.EventPresenceEvent) {
		p := f.payload.(protocol.PresenceEventData)
		if p.Alias == "ada" && p.Status == protocol.StatusOffline {
			sawOffline = true
		}
	}
	if !sawOffline {
		t.Fatal("watcher never saw the quit presence")
	}
}
