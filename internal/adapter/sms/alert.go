// Package sms delivers approval alerts as text messages through a
// Twilio-compatible REST endpoint.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

const channelName = "sms"

// Channel sends one SMS per alert via the messages endpoint of a
// Twilio-compatible API.
type Channel struct {
	accountSID string
	authToken  string
	from       string
	to         string
	baseURL    string
	httpClient *http.Client
}

// NewChannel creates an SMS channel. baseURL defaults to the Twilio API when
// empty.
func NewChannel(accountSID, authToken, from, to, baseURL string) *Channel {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &Channel{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

func (c *Channel) Name() string { return channelName }

func (c *Channel) Send(ctx context.Context, a alert.Alert) error {
	if c.accountSID == "" || c.to == "" {
		return alert.ErrNotConfigured
	}

	body := fmt.Sprintf("[%s] %s -> %s: %s (request %s)",
		strings.ToUpper(string(a.Criticality)), a.Kind, a.Target, a.Message, a.RequestID)

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", c.to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func init() {
	alert.Register(channelName, func(config map[string]string) (alert.Channel, error) {
		return NewChannel(
			config["account_sid"],
			config["auth_token"],
			config["from"],
			config["to"],
			config["base_url"],
		), nil
	})
}
