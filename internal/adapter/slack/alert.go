// Package slack delivers approval alerts to a Slack incoming webhook using
// Block Kit messages.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

const channelName = "slack"

// Channel posts approval alerts to a Slack incoming webhook.
type Channel struct {
	webhookURL string
	httpClient *http.Client
}

// NewChannel creates a Slack channel with the given webhook URL.
func NewChannel(webhookURL string) *Channel {
	return &Channel{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
}

func (c *Channel) Name() string { return channelName }

// slackMessage is the Slack Block Kit message payload.
type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *Channel) Send(ctx context.Context, a alert.Alert) error {
	if c.webhookURL == "" {
		return alert.ErrNotConfigured
	}

	header := fmt.Sprintf("%s Approval needed", levelMarker(string(a.Criticality)))
	detail := fmt.Sprintf("*%s* -> `%s`\n%s", a.Kind, a.Target, a.Message)

	msg := slackMessage{
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: header}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: detail}},
			{Type: "context", Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("_Request: %s_", a.RequestID)}},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func levelMarker(level string) string {
	switch level {
	case "high":
		return "[HIGH]"
	case "medium":
		return "[MEDIUM]"
	default:
		return "[LOW]"
	}
}
