package store

import (
	"sort"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// UpsertDevice registers a device key pair on first contact and refreshes
// last-seen on every later one. The stored public key follows the client:
// a device that rotates its key keeps its identity.
func (s *Store) UpsertDevice(deviceID, publicKey string) domain.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMillis()
	d, ok := s.doc.Devices[deviceID]
	if !ok {
		d = &domain.Device{
			DeviceID:  deviceID,
			PublicKey: publicKey,
			CreatedAt: now,
		}
		s.doc.Devices[deviceID] = d
	}
	if publicKey != "" {
		d.PublicKey = publicKey
	}
	d.LastSeenAt = now
	s.markDirty()
	return *d
}

// Device returns a copy of the stored device record.
func (s *Store) Device(deviceID string) (domain.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.doc.Devices[deviceID]
	if !ok {
		return domain.Device{}, false
	}
	return *d, true
}

// CreateSession records a freshly identified connection.
func (s *Store) CreateSession(sessionID, deviceID, ip, resumeToken string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &domain.Session{
		SessionID:   sessionID,
		DeviceID:    deviceID,
		IP:          ip,
		ConnectedAt: s.nowMillis(),
		ResumeToken: resumeToken,
	}
	s.doc.Sessions[sessionID] = sess
	s.markDirty()
	return *sess
}

// Session returns a copy of the stored session record.
func (s *Store) Session(sessionID string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.doc.Sessions[sessionID]
	if !ok {
		return domain.Session{}, false
	}
	return *sess, true
}

// CloseSession stamps the disconnect time and idles any alias the session
// held. It returns the released alias name, if any, so presence can fan out.
func (s *Store) CloseSession(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.doc.Sessions[sessionID]
	if !ok {
		return "", false
	}
	if sess.DisconnectedAt == 0 {
		sess.DisconnectedAt = s.nowMillis()
	}

	released := ""
	for _, a := range s.doc.Aliases {
		if a.ActiveSessionID == sessionID {
			a.ActiveSessionID = ""
			released = a.Name
		}
	}
	s.markDirty()
	return released, true
}

// ClaimParams carries everything ClaimAlias needs to arbitrate ownership.
type ClaimParams struct {
	Alias     string
	DeviceID  string
	SessionID string
	IP        string
	Nonce     string
}

// ClaimResult reports the updated alias record and, when an existing live
// binding lost the arbitration, the session that must be torn down.
type ClaimResult struct {
	Alias              domain.Alias
	DisplacedSessionID string
}

// ClaimAlias binds an alias to a session. A free name is claimed outright.
// A name that is live on another session is only taken over from the same
// IP, and then only by the same device or by presenting the reclaim nonce.
// An idle name moves freely back to its own device; any other device must
// present the nonce. Every successful claim rotates the nonce, and any other
// alias the session held is released first.
func (s *Store) ClaimAlias(p ClaimParams) (ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMillis()
	a, exists := s.doc.Aliases[p.Alias]

	displaced := ""
	switch {
	case !exists:
		a = &domain.Alias{Name: p.Alias}
		s.doc.Aliases[p.Alias] = a

	case a.Live():
		if a.ActiveSessionID == p.SessionID {
			// Claiming a name the session already holds is a no-op.
			return ClaimResult{Alias: *a}, nil
		}
		if a.LastIP != p.IP {
			return ClaimResult{}, ErrAliasInUse
		}
		if a.CurrentDeviceID != p.DeviceID && (p.Nonce == "" || p.Nonce != a.ReclaimNonce) {
			return ClaimResult{}, ErrAliasInUse
		}
		displaced = a.ActiveSessionID

	default: // idle
		if a.CurrentDeviceID != p.DeviceID && (p.Nonce == "" || p.Nonce != a.ReclaimNonce) {
			return ClaimResult{}, ErrReclaimRequired
		}
	}

	for _, other := range s.doc.Aliases {
		if other != a && other.ActiveSessionID == p.SessionID {
			other.ActiveSessionID = ""
		}
	}

	a.CurrentDeviceID = p.DeviceID
	a.ActiveSessionID = p.SessionID
	a.LastIP = p.IP
	a.ClaimedAt = now
	a.ReclaimNonce = newNonce()

	if sess, ok := s.doc.Sessions[p.SessionID]; ok {
		sess.Alias = p.Alias
	}
	s.markDirty()
	return ClaimResult{Alias: *a, DisplacedSessionID: displaced}, nil
}

// Alias returns a copy of the stored alias record.
func (s *Store) Alias(name string) (domain.Alias, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.doc.Aliases[name]
	if !ok {
		return domain.Alias{}, false
	}
	return *a, true
}

// LiveAliases returns every alias currently held by a session, sorted by
// name.
func (s *Store) LiveAliases() []domain.Alias {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Alias, 0, len(s.doc.Aliases))
	for _, a := range s.doc.Aliases {
		if a.Live() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AliasForDevice returns the alias the device claimed most recently,
// which is the name a resumed session picks back up.
func (s *Store) AliasForDevice(deviceID string) (domain.Alias, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *domain.Alias
	for _, a := range s.doc.Aliases {
		if a.CurrentDeviceID != deviceID {
			continue
		}
		if best == nil || a.ClaimedAt > best.ClaimedAt {
			best = a
		}
	}
	if best == nil {
		return domain.Alias{}, false
	}
	return *best, true
}
