package store

import "github.com/irc-ultra/ircultra/internal/domain"

// document is the single JSON aggregate persisted to disk. Every key is
// written on every flush; there is no partial update path.
type document struct {
	Devices           map[string]*domain.Device                `json:"devices"`
	Aliases           map[string]*domain.Alias                 `json:"aliases"`
	Sessions          map[string]*domain.Session               `json:"sessions"`
	Channels          map[string]*domain.Channel               `json:"channels"`
	ChannelMembers    map[string]map[string]*domain.Membership `json:"channelMembers"`
	DMConversations   map[string]*domain.DMConversation        `json:"dmConversations"`
	Messages          []*domain.Message                        `json:"messages"`
	ModerationActions []*domain.ModerationAction               `json:"moderationActions"`
	BotApps           []*domain.Bot                            `json:"botApps"`
	AuditEvents       []*domain.AuditEvent                     `json:"auditEvents"`
}

func newDocument() *document {
	return &document{
		Devices:         make(map[string]*domain.Device),
		Aliases:         make(map[string]*domain.Alias),
		Sessions:        make(map[string]*domain.Session),
		Channels:        make(map[string]*domain.Channel),
		ChannelMembers:  make(map[string]map[string]*domain.Membership),
		DMConversations: make(map[string]*domain.DMConversation),
	}
}

// normalize rebuilds any nil maps after unmarshalling a sparse or
// hand-edited state file.
func (d *document) normalize() {
	if d.Devices == nil {
		d.Devices = make(map[string]*domain.Device)
	}
	if d.Aliases == nil {
		d.Aliases = make(map[string]*domain.Alias)
	}
	if d.Sessions == nil {
		d.Sessions = make(map[string]*domain.Session)
	}
	if d.Channels == nil {
		d.Channels = make(map[string]*domain.Channel)
	}
	if d.ChannelMembers == nil {
		d.ChannelMembers = make(map[string]map[string]*domain.Membership)
	}
	if d.DMConversations == nil {
		d.DMConversations = make(map[string]*domain.DMConversation)
	}
}
