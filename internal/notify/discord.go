package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts alerts to a Discord channel over the REST API.
type Discord struct {
	sess      session
	channelID string
}

// DiscordOpts holds parameters for creating a Discord notifier.
type DiscordOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: discord token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel ID is required")
	}
	d := &Discord{sess: opts.Session, channelID: opts.ChannelID}
	if d.sess == nil {
		s, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("notify: create discord session: %w", err)
		}
		d.sess = s
	}
	return d, nil
}

// Notify posts the event to the configured channel.
func (d *Discord) Notify(ctx context.Context, ev Event) error {
	if _, err := d.sess.ChannelMessageSend(d.channelID, Format(ev)); err != nil {
		return fmt.Errorf("notify: discord post to %s: %w", d.channelID, err)
	}
	return nil
}
