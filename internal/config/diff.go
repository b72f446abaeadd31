package config

import (
	"reflect"

	logx "gamewatch/pkg/logx"
)

// Change summarizes a reload.
type Change struct {
	// Sections lists every top-level section that differs.
	Sections []string
	// Live lists the sections the running process applies without restart.
	Live []string
	// Attrs are safe log fields; secrets are never included.
	Attrs []logx.Field
}

// liveSections can be applied to a running process.
var liveSections = map[string]bool{
	"logging":   true,
	"telegram":  true,
	"notifier":  true,
	"scheduler": true,
	"ops":       true,
}

// Summarize compares two configs section by section.
func Summarize(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(name string, differs bool, attrs ...logx.Field) {
		if !differs {
			return
		}
		ch.Sections = append(ch.Sections, name)
		if liveSections[name] {
			ch.Live = append(ch.Live, name)
		}
		ch.Attrs = append(ch.Attrs, attrs...)
	}

	o, n := oldCfg.Telegram, newCfg.Telegram
	mark("telegram",
		o.GroupLog != n.GroupLog || o.PollTimeout != n.PollTimeout ||
			!reflect.DeepEqual(o.OwnerUserIDs, n.OwnerUserIDs) || o.Token != n.Token,
		logx.Int("telegram.owner_count", len(n.OwnerUserIDs)),
		logx.Bool("telegram.token_changed", o.Token != n.Token),
	)
	mark("catalog", oldCfg.Catalog != newCfg.Catalog,
		logx.String("catalog.url", newCfg.CatalogURL()),
	)
	mark("notifier", oldCfg.Notifier != newCfg.Notifier,
		logx.Int64("notifier.channel_id", newCfg.Notifier.ChannelID),
		logx.String("notifier.delay", newCfg.Notifier.Delay),
	)
	mark("scheduler", oldCfg.Scheduler != newCfg.Scheduler,
		logx.String("scheduler.interval", newCfg.Scheduler.Interval),
	)
	mark("storage", oldCfg.Storage != newCfg.Storage,
		logx.String("storage.driver", newCfg.Storage.Driver),
	)
	mark("logging", oldCfg.Logging != newCfg.Logging,
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
	)
	oo, no := oldCfg.Ops, newCfg.Ops
	oo.Token, no.Token = "", ""
	mark("ops", oo != no || (oldCfg.Ops.Token != "") != (newCfg.Ops.Token != ""),
		logx.Bool("ops.enabled", newCfg.Ops.Enabled),
		logx.String("ops.addr", newCfg.Ops.Addr),
	)
	return ch
}

// RestartRequired returns the changed sections that only apply after a
// restart.
func (c Change) RestartRequired() []string {
	var out []string
	for _, s := range c.Sections {
		if !liveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
