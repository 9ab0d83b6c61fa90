package store

import (
	"sort"

	"github.com/irc-ultra/ircultra/internal/domain"
)

// JoinResult reports what a join actually did: created the channel, added a
// membership, or found one already there.
type JoinResult struct {
	Channel       domain.Channel
	Membership    domain.Membership
	Created       bool
	AlreadyMember bool
}

// MembershipRow pairs a membership with its channel and alias keys.
type MembershipRow struct {
	Channel    string
	Alias      string
	Membership domain.Membership
}

// ChannelSummary is a channel plus its live member count.
type ChannelSummary struct {
	Channel     domain.Channel
	MemberCount int
}

// JoinChannel adds alias to the named channel, creating the channel on
// first join. The creator becomes OWNER, later joiners MEMBER. Joining a
// channel you are already in is a no-op, joining one you are banned from
// fails.
func (s *Store) JoinChannel(name, alias string) (JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMillis()
	var res JoinResult

	ch, ok := s.doc.Channels[name]
	if !ok {
		ch = &domain.Channel{
			ChannelID:  newID(),
			Name:       name,
			OwnerAlias: alias,
			CreatedAt:  now,
		}
		s.doc.Channels[name] = ch
		s.doc.ChannelMembers[name] = make(map[string]*domain.Membership)
		res.Created = true
	}

	members := s.doc.ChannelMembers[name]
	if members == nil {
		members = make(map[string]*domain.Membership)
		s.doc.ChannelMembers[name] = members
	}

	if m, joined := members[alias]; joined {
		if m.IsBanned {
			return JoinResult{}, ErrBanned
		}
		res.Channel = *ch
		res.Membership = *m
		res.AlreadyMember = true
		return res, nil
	}

	role := domain.RoleMember
	if res.Created {
		role = domain.RoleOwner
	}
	m := &domain.Membership{Role: role, JoinedAt: now}
	members[alias] = m

	s.markDirty()
	res.Channel = *ch
	res.Membership = *m
	return res, nil
}

// PartChannel removes alias from the channel. A banned row is kept so the
// ban keeps holding; parting then reports success without deleting it.
func (s *Store) PartChannel(name, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Channels[name]; !ok {
		return ErrChannelNotFound
	}
	members := s.doc.ChannelMembers[name]
	m, ok := members[alias]
	if !ok {
		return ErrNotMember
	}
	if !m.IsBanned {
		delete(members, alias)
	}
	s.markDirty()
	return nil
}

// Channel returns a copy of the named channel.
func (s *Store) Channel(name string) (domain.Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.doc.Channels[name]
	if !ok {
		return domain.Channel{}, false
	}
	return *ch, true
}

// Membership returns a copy of alias's membership row in the channel,
// banned rows included.
func (s *Store) Membership(channel, alias string) (domain.Membership, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.doc.ChannelMembers[channel][alias]
	if !ok {
		return domain.Membership{}, false
	}
	return *m, true
}

// ListChannels returns every channel with its non-banned member count,
// sorted by name.
func (s *Store) ListChannels() []ChannelSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChannelSummary, 0, len(s.doc.Channels))
	for name, ch := range s.doc.Channels {
		count := 0
		for _, m := range s.doc.ChannelMembers[name] {
			if !m.IsBanned {
				count++
			}
		}
		out = append(out, ChannelSummary{Channel: *ch, MemberCount: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel.Name < out[j].Channel.Name })
	return out
}

// MemberRows returns the channel's non-banned members sorted by alias.
func (s *Store) MemberRows(channel string) ([]MembershipRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Channels[channel]; !ok {
		return nil, ErrChannelNotFound
	}
	rows := make([]MembershipRow, 0, len(s.doc.ChannelMembers[channel]))
	for alias, m := range s.doc.ChannelMembers[channel] {
		if m.IsBanned {
			continue
		}
		rows = append(rows, MembershipRow{Channel: channel, Alias: alias, Membership: *m})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Alias < rows[j].Alias })
	return rows, nil
}

// MembershipsFor returns every membership row held by alias, banned rows
// included, sorted by channel name.
func (s *Store) MembershipsFor(alias string) []MembershipRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []MembershipRow
	for channel, members := range s.doc.ChannelMembers {
		if m, ok := members[alias]; ok {
			rows = append(rows, MembershipRow{Channel: channel, Alias: alias, Membership: *m})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Channel < rows[j].Channel })
	return rows
}

// SetChannelTopic replaces the channel topic.
func (s *Store) SetChannelTopic(name, topic string) (domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.doc.Channels[name]
	if !ok {
		return domain.Channel{}, ErrChannelNotFound
	}
	ch.Topic = topic
	s.markDirty()
	return *ch, nil
}

// SetChannelMode toggles a mode flag on the channel. Unknown flags are
// rejected, repeated toggles are no-ops.
func (s *Store) SetChannelMode(name, mode string, enable bool) (domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !domain.ValidMode(mode) {
		return domain.Channel{}, ErrInvalidMode
	}
	ch, ok := s.doc.Channels[name]
	if !ok {
		return domain.Channel{}, ErrChannelNotFound
	}
	ch.SetMode(mode, enable)
	s.markDirty()
	return *ch, nil
}

// SetMemberRole assigns a channel role to an existing member.
func (s *Store) SetMemberRole(channel, alias string, role domain.Role) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.memberLocked(channel, alias)
	if err != nil {
		return domain.Membership{}, err
	}
	m.Role = role
	s.markDirty()
	return *m, nil
}

// SetMemberMute sets the member's mute expiry. Zero clears the mute.
func (s *Store) SetMemberMute(channel, alias string, until int64) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.memberLocked(channel, alias)
	if err != nil {
		return domain.Membership{}, err
	}
	m.MutedUntil = until
	s.markDirty()
	return *m, nil
}

// BanMember marks alias banned in the channel, creating the row when the
// target was never a member so the ban holds against future joins.
func (s *Store) BanMember(channel, alias string) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.doc.ChannelMembers[channel]
	if !ok {
		if _, chOK := s.doc.Channels[channel]; !chOK {
			return domain.Membership{}, ErrChannelNotFound
		}
		members = make(map[string]*domain.Membership)
		s.doc.ChannelMembers[channel] = members
	}
	m, exists := members[alias]
	if !exists {
		m = &domain.Membership{Role: domain.RoleMember, JoinedAt: s.nowMillis()}
		members[alias] = m
	}
	m.IsBanned = true
	s.markDirty()
	return *m, nil
}

// UnbanMember lifts a ban by deleting the enforcement row. The target has
// to join again to get back in. Unbanning someone who is not banned is a
// no-op.
func (s *Store) UnbanMember(channel, alias string) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.memberLocked(channel, alias)
	if err != nil {
		return domain.Membership{}, err
	}
	out := *m
	if m.IsBanned {
		delete(s.doc.ChannelMembers[channel], alias)
		s.markDirty()
	}
	return out, nil
}

// RemoveMember deletes the membership row outright, as a kick does.
func (s *Store) RemoveMember(channel, alias string) (domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.memberLocked(channel, alias)
	if err != nil {
		return domain.Membership{}, err
	}
	out := *m
	delete(s.doc.ChannelMembers[channel], alias)
	s.markDirty()
	return out, nil
}

// memberLocked resolves a membership pointer or the right sentinel.
// Callers must hold mu.
func (s *Store) memberLocked(channel, alias string) (*domain.Membership, error) {
	if _, ok := s.doc.Channels[channel]; !ok {
		return nil, ErrChannelNotFound
	}
	m, ok := s.doc.ChannelMembers[channel][alias]
	if !ok {
		return nil, ErrNotMember
	}
	return m, nil
}
