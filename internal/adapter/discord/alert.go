// Package discord delivers approval alerts to a Discord incoming webhook
// using rich embeds.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/greenlight-hq/greenlight/internal/domain/approval"
	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

const channelName = "discord"

// Channel posts approval alerts to a Discord incoming webhook.
type Channel struct {
	webhookURL string
	httpClient *http.Client
}

// NewChannel creates a Discord channel with the given webhook URL.
func NewChannel(webhookURL string) *Channel {
	return &Channel{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
}

func (c *Channel) Name() string { return channelName }

// discordWebhook is the Discord webhook payload with embeds.
type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (c *Channel) Send(ctx context.Context, a alert.Alert) error {
	if c.webhookURL == "" {
		return alert.ErrNotConfigured
	}

	embed := discordEmbed{
		Title:       "Approval needed: " + a.Kind,
		Description: fmt.Sprintf("**%s** -> `%s`\n%s", a.Kind, a.Target, a.Message),
		Color:       levelColor(a.Criticality),
		Footer:      &discordFooter{Text: "Request: " + a.RequestID},
	}

	msg := discordWebhook{
		Embeds: []discordEmbed{embed},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Discord returns 204 on success
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// levelColor returns Discord embed color integers per criticality.
func levelColor(level approval.Level) int {
	switch level {
	case approval.LevelHigh:
		return 0xE74C3C // red
	case approval.LevelMedium:
		return 0xF39C12 // orange
	default:
		return 0x3498DB // blue
	}
}

func init() {
	alert.Register(channelName, func(config map[string]string) (alert.Channel, error) {
		return NewChannel(config["webhook_url"]), nil
	})
}
