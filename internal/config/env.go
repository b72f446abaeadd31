package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables that override the required settings.
const (
	EnvToken     = "TELEGRAM_TOKEN"
	EnvURL       = "CATALOG_URL"
	EnvChannelID = "CHANNEL_ID"
)

// ApplyEnv overlays non-empty environment values onto cfg. getenv defaults
// to os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvURL)); v != "" {
		cfg.Catalog.URL = v
	}
	if v := strings.TrimSpace(getenv(EnvChannelID)); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", EnvChannelID, v)
		}
		cfg.Notifier.ChannelID = id
	}
	return nil
}
