package email

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/greenlight-hq/greenlight/internal/port/alert"
)

const channelName = "email"

// Channel emails approval alerts to a fixed recipient list. Each mail carries
// approve and deny links pointing back at the decision endpoint.
type Channel struct {
	notifier    *Notifier
	recipients  []string
	callbackURL string // base URL for the decision endpoint, e.g. "https://greenlight.local/api/v1/approvals"
}

// NewChannel creates an email alert channel.
func NewChannel(notifier *Notifier, recipients []string, callbackURL string) *Channel {
	return &Channel{
		notifier:    notifier,
		recipients:  recipients,
		callbackURL: callbackURL,
	}
}

func (c *Channel) Name() string { return channelName }

func (c *Channel) Send(ctx context.Context, a alert.Alert) error {
	if len(c.recipients) == 0 || c.notifier == nil {
		return alert.ErrNotConfigured
	}

	approveURL := fmt.Sprintf("%s/%s?verdict=approve", c.callbackURL, a.RequestID)
	denyURL := fmt.Sprintf("%s/%s?verdict=deny", c.callbackURL, a.RequestID)

	body := fmt.Sprintf(`<h2>Approval Required</h2>
<p><strong>Action:</strong> %s</p>
<p><strong>Target:</strong> %s</p>
<p><strong>Criticality:</strong> %s</p>
<p>%s</p>
<p>
  <a href="%s" style="background:green;color:white;padding:8px 16px;text-decoration:none;border-radius:4px;">Approve</a>
  &nbsp;
  <a href="%s" style="background:red;color:white;padding:8px 16px;text-decoration:none;border-radius:4px;">Deny</a>
</p>`,
		a.Kind, a.Target, strings.ToUpper(string(a.Criticality)), a.Message, approveURL, denyURL)

	subject := fmt.Sprintf("[Greenlight] Approval required: %s -> %s", a.Kind, a.Target)

	for _, to := range c.recipients {
		if err := c.notifier.Send(ctx, to, subject, body); err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
	}
	return nil
}

func init() {
	alert.Register(channelName, func(config map[string]string) (alert.Channel, error) {
		port, _ := strconv.Atoi(config["smtp_port"])
		n := NewNotifier(SMTPConfig{
			Host:     config["smtp_host"],
			Port:     port,
			From:     config["from"],
			Password: config["password"],
		})
		var recipients []string
		if config["recipients"] != "" {
			for _, r := range strings.Split(config["recipients"], ",") {
				if r = strings.TrimSpace(r); r != "" {
					recipients = append(recipients, r)
				}
			}
		}
		return NewChannel(n, recipients, config["callback_url"]), nil
	})
}
