package notify

import (
	"context"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited Slack calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts alerts to a Slack channel over the Web API.
type Slack struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a Slack notifier.
type SlackOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: slack token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel ID is required")
	}
	s := &Slack{client: opts.Client, channelID: opts.ChannelID}
	if s.client == nil {
		s.client = slackapi.New(opts.Token)
	}
	return s, nil
}

// Notify posts the event to the configured channel, retrying rate limits.
func (s *Slack) Notify(ctx context.Context, ev Event) error {
	text := Format(ev)
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, _, err := s.client.PostMessage(s.channelID, slackapi.MsgOptionText(text, false))
		if err == nil {
			return nil
		}
		lastErr = err

		rateErr, ok := err.(*slackapi.RateLimitedError)
		if !ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rateErr.RetryAfter):
		}
	}
	return fmt.Errorf("notify: slack post to %s: %w", s.channelID, lastErr)
}
