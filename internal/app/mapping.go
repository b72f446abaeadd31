package app

import (
	"strconv"
	"strings"
	"time"

	"gamewatch/internal/catalog"
	"gamewatch/internal/config"
	"gamewatch/internal/notifier"
	"gamewatch/internal/observability/ops"
	"gamewatch/internal/storage"
	"gamewatch/internal/task/scheduler"
	"gamewatch/internal/transport"
	logx "gamewatch/pkg/logx"
)

// Version is stamped into the catalog User-Agent.
var Version = "dev"

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if id, err := strconv.ParseInt(gl, 10, 64); err == nil {
			lc.Telegram.ChatID = id
		}
	}
	return lc
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      storage.NormalizeDriver(cfg.Storage.Driver),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func mapCatalogConfig(cfg *config.Config) (catalog.Config, error) {
	timeout, err := config.ParseDurationOrDefault("catalog.timeout", cfg.Catalog.Timeout, 30*time.Second)
	if err != nil {
		return catalog.Config{}, err
	}
	ua := strings.TrimSpace(cfg.Catalog.UserAgent)
	if ua == "" {
		ua = "gamewatch/" + Version
	}
	return catalog.Config{URL: cfg.CatalogURL(), Timeout: timeout, UserAgent: ua}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	delay, err := config.ParseDurationOrDefault("notifier.delay", cfg.Notifier.Delay, notifier.DefaultDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, notifier.DefaultSendTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	tz := strings.TrimSpace(cfg.Notifier.Timezone)
	if tz == "" {
		tz = notifier.DefaultTimezone
	}
	return notifier.Config{Delay: delay, Timezone: tz, SendTimeout: sendTimeout}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationField("scheduler.timeout", cfg.Scheduler.Timeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Interval:   cfg.Scheduler.Interval,
		Timezone:   cfg.Scheduler.Timezone,
		RunOnStart: cfg.Scheduler.RunOnStart,
		Timeout:    timeout,
	}, nil
}

func mapOpsConfig(cfg *config.Config) (ops.Config, error) {
	oc := cfg.Ops
	read, err := config.ParseDurationOrDefault("ops.read_timeout", oc.ReadTimeout, 10*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	// /debug/pprof/profile streams for 30s by default.
	write, err := config.ParseDurationOrDefault("ops.write_timeout", oc.WriteTimeout, 60*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("ops.idle_timeout", oc.IdleTimeout, 60*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	return ops.Config{
		Enabled:              oc.Enabled,
		Addr:                 oc.Addr,
		Token:                oc.Token,
		AllowInsecure:        oc.AllowInsecure,
		Pprof:                oc.Pprof,
		ReadTimeout:          read,
		WriteTimeout:         write,
		IdleTimeout:          idle,
		MutexProfileFraction: oc.MutexProfileFraction,
		BlockProfileRate:     oc.BlockProfileRate,
	}, nil
}

func channelTarget(cfg *config.Config) transport.ChatTarget {
	return transport.ChatTarget{ChatID: cfg.Notifier.ChannelID, ThreadID: cfg.Notifier.ThreadID}
}
