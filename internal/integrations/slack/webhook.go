package slackbot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
)

// WebhookPoster posts plain-text messages to a Slack incoming webhook.
type WebhookPoster struct {
	URL      string
	Channel  string
	Username string
	Client   *http.Client
}

func NewWebhookPoster(cfg Config, webhookURL string) *WebhookPoster {
	return &WebhookPoster{
		URL:      webhookURL,
		Channel:  cfg.SlackChannel,
		Username: cfg.SlackUsername,
		Client:   externalHTTPClient,
	}
}

// Post sends text to the webhook. Empty text is not sent.
func (p *WebhookPoster) Post(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text:     text,
		Username: p.Username,
		Channel:  p.Channel,
	}
	client := p.Client
	if client == nil {
		client = externalHTTPClient
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, p.URL, client, msg); err != nil {
		log.Printf("slack webhook error channel=%s: %v", p.Channel, err)
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	log.Printf("slack webhook posted channel=%s size=%d", p.Channel, len(text))
	return nil
}
