package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMissing marks a required setting that is absent.
var ErrMissing = errors.New("required setting missing")

// DefaultCatalogURL is used when catalog.url is empty.
const DefaultCatalogURL = "https://Pomdapie.pythonanywhere.com/api/games/"

// Validate checks everything that can be checked without building
// components. All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(fmt.Errorf("telegram.token (or %s): %w", EnvToken, ErrMissing))
	}
	if cfg.Notifier.ChannelID == 0 {
		add(fmt.Errorf("notifier.channel_id (or %s): %w", EnvChannelID, ErrMissing))
	}
	add(validateURL("catalog.url", cfg.Catalog.URL))

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if _, err := strconv.ParseInt(gl, 10, 64); err != nil {
			add(fmt.Errorf("telegram.group_log: invalid chat id %q", gl))
		}
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		add(fmt.Errorf("logging.telegram.rate_per_sec must be >= 0"))
	}

	for _, d := range []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"catalog.timeout", cfg.Catalog.Timeout},
		{"notifier.delay", cfg.Notifier.Delay},
		{"notifier.send_timeout", cfg.Notifier.SendTimeout},
		{"scheduler.timeout", cfg.Scheduler.Timeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"ops.read_timeout", cfg.Ops.ReadTimeout},
		{"ops.write_timeout", cfg.Ops.WriteTimeout},
		{"ops.idle_timeout", cfg.Ops.IdleTimeout},
	} {
		_, err := ParseDurationField(d.path, d.raw)
		add(err)
	}

	for _, tz := range []struct{ path, name string }{
		{"notifier.timezone", cfg.Notifier.Timezone},
		{"scheduler.timezone", cfg.Scheduler.Timezone},
	} {
		if n := strings.TrimSpace(tz.name); n != "" {
			if _, err := time.LoadLocation(n); err != nil {
				add(fmt.Errorf("%s: invalid %q: %w", tz.path, n, err))
			}
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3", "bolt", "bbolt":
	default:
		add(fmt.Errorf("storage.driver: unknown %q (use file, sqlite or bolt)", cfg.Storage.Driver))
	}

	return errors.Join(errs...)
}

// CatalogURL returns catalog.url or the default.
func (c *Config) CatalogURL() string {
	if u := strings.TrimSpace(c.Catalog.URL); u != "" {
		return u
	}
	return DefaultCatalogURL
}

func validateURL(path, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", path, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host required", path)
	}
	return nil
}
