package main

// Channel blank imports. Each import activates a self-registering alert
// channel factory; add new channels here as they are implemented.

import (
	_ "github.com/greenlight-hq/greenlight/internal/adapter/discord"
	_ "github.com/greenlight-hq/greenlight/internal/adapter/email"
	_ "github.com/greenlight-hq/greenlight/internal/adapter/slack"
	_ "github.com/greenlight-hq/greenlight/internal/adapter/sms"
)
