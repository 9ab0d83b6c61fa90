package domain

// Bot is a registered bot application. Execution happens outside the
// gateway; the gateway only records invocations and fans out their events.
type Bot struct {
	BotID           string   `json:"botId"`
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Permissions     []string `json:"permissions,omitempty"`
	EnabledChannels []string `json:"enabledChannels,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

// EnabledIn reports whether the bot may be invoked in the given channel. An
// empty EnabledChannels list enables the bot everywhere.
func (b *Bot) EnabledIn(channel string) bool {
	if len(b.EnabledChannels) == 0 {
		return true
	}
	for _, c := range b.EnabledChannels {
		if c == channel {
			return true
		}
	}
	return false
}
