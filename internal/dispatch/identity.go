package dispatch

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/irc-ultra/ircultra/internal/gateway"
	"github.com/irc-ultra/ircultra/internal/protocol"
	"github.com/irc-ultra/ircultra/internal/store"
	"github.com/irc-ultra/ircultra/internal/token"
	"github.com/irc-ultra/ircultra/internal/validate"
)

// handleHello binds a device identity to the session. Repeating the hello
// refreshes the device row and rotates the resume token.
func (d *Dispatcher) handleHello(s *gateway.Session, raw json.RawMessage) {
	var data protocol.HelloDeviceData
	if !d.bind(s, raw, &data) {
		return
	}
	if strings.TrimSpace(data.DevicePublicKey) == "" {
		s.SendError(protocol.CodeBadRequest, "devicePublicKey is required")
		return
	}

	deviceID := strings.TrimSpace(data.DeviceID)
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	device := d.store.UpsertDevice(deviceID, data.DevicePublicKey)

	resumeToken, err := token.NewResumeToken(s.ID, device.DeviceID, d.cfg.SessionSecret, d.cfg.ServerName, d.cfg.ResumeTokenTTL)
	if err != nil {
		d.log.Error().Err(err).Str("session_id", s.ID).Msg("Failed to mint resume token")
		s.SendError(protocol.CodeInternal, "could not issue a resume token")
		return
	}

	d.store.CreateSession(s.ID, device.DeviceID, s.IP(), resumeToken)
	s.SetIdentity(device.DeviceID, device.PublicKey)

	ready := protocol.SessionReadyData{
		DeviceID:    device.DeviceID,
		ResumeToken: resumeToken,
		MOTD:        d.cfg.MOTD,
	}
	if a, ok := d.store.AliasForDevice(device.DeviceID); ok {
		ready.Alias = a.Name
	}
	s.SendEvent(protocol.EventSessionReady, ready)
}

func (d *Dispatcher) handleClaimAlias(s *gateway.Session, raw json.RawMessage) {
	var data protocol.ClaimAliasData
	if !d.bind(s, raw, &data) {
		return
	}
	d.claimAlias(s, data.Alias, data.ReclaimNonce)
}

// aliasRefused reports a failed claim. Claim outcomes ride alias_result
// rather than server_error so clients keep a single code path for the
// claim round trip.
func aliasRefused(s *gateway.Session, key protocol.ErrorCode, msg string) {
	s.SendEvent(protocol.EventAliasResult, protocol.AliasResultData{
		OK:       false,
		ErrorKey: key,
		Message:  msg,
	})
}

// claimAlias runs the full claim flow for both the claim_alias event and
// /nick: arbitration in the store, displacement of a losing session,
// release of the session's previous name, room subscriptions for the
// alias's existing memberships, the #lobby auto-join on a session's first
// alias, and the alias_result / presence_event / network_snapshot emissions
// in that order.
func (d *Dispatcher) claimAlias(s *gateway.Session, requested, nonce string) {
	if !s.Helloed() {
		aliasRefused(s, protocol.CodeUnauthorized, "hello_device must come first")
		return
	}
	alias, err := validate.Alias(requested)
	if err != nil {
		aliasRefused(s, protocol.CodeAliasInvalid, err.Error())
		return
	}

	res, err := d.store.ClaimAlias(store.ClaimParams{
		Alias:     alias,
		DeviceID:  s.DeviceID(),
		SessionID: s.ID,
		IP:        s.IP(),
		Nonce:     nonce,
	})
	switch {
	case errors.Is(err, store.ErrAliasInUse):
		aliasRefused(s, protocol.CodeAliasInUse, "alias is held by another live session")
		return
	case errors.Is(err, store.ErrReclaimRequired):
		aliasRefused(s, protocol.CodeUnauthorized, "alias belongs to another device, present its reclaim nonce")
		return
	case err != nil:
		d.log.Error().Err(err).Str("alias", alias).Msg("Alias claim failed")
		s.SendError(protocol.CodeInternal, "alias claim failed")
		return
	}

	if res.DisplacedSessionID != "" && res.DisplacedSessionID != s.ID {
		d.hub.DisconnectByID(res.DisplacedSessionID, gateway.CloseSessionReplaced, gateway.ErrSessionReplaced.Error())
	}

	previous := s.Alias()
	if previous != "" && previous != alias {
		d.hub.LeaveRoom(gateway.AliasRoom(previous), s)
		for _, ch := range s.Channels() {
			s.RemoveChannel(ch)
			d.hub.LeaveRoom(gateway.ChannelRoom(ch), s)
		}
		d.colors.Release(previous)
		d.hub.BroadcastAll(protocol.EventPresenceEvent, protocol.PresenceEventData{
			Alias:    previous,
			Status:   protocol.StatusOffline,
			Channels: []string{},
		}, nil)
	}

	s.SetAlias(alias, res.Alias.ReclaimNonce)
	s.SetColor(d.colors.Assign(alias, s.IP()))
	d.hub.JoinRoom(gateway.AliasRoom(alias), s)

	// A reclaimed name brings its channel memberships back online.
	for _, row := range d.store.MembershipsFor(alias) {
		if row.Membership.IsBanned {
			continue
		}
		s.AddChannel(row.Channel)
		d.hub.JoinRoom(gateway.ChannelRoom(row.Channel), s)
	}

	if previous == "" {
		if _, err := d.joinChannel(s, alias, defaultChannel); err != nil {
			d.log.Warn().Err(err).Str("alias", alias).Msg("Default channel auto-join failed")
		}
	}

	s.SendEvent(protocol.EventAliasResult, protocol.AliasResultData{
		OK:           true,
		Alias:        alias,
		ReclaimNonce: res.Alias.ReclaimNonce,
	})
	d.broadcastPresence(s)
	s.SendEvent(protocol.EventNetworkSnapshot, d.networkSnapshot(alias))
}
