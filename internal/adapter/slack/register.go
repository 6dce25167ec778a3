package slack

import "github.com/greenlight-hq/greenlight/internal/port/alert"

func init() {
	alert.Register(channelName, func(config map[string]string) (alert.Channel, error) {
		return NewChannel(config["webhook_url"]), nil
	})
}
