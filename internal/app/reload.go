package app

import (
	"context"
	"slices"
	"strings"

	"gamewatch/internal/config"
	logx "gamewatch/pkg/logx"
)

// reloadLoop applies committed configs until ctx is done. Bursts are
// coalesced to the newest config.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg != nil {
				a.applyConfig(ctx, newCfg)
			}
		}
	}
}

// applyConfig pushes the live sections of cfg into the running components.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.mu.Unlock()

	ch := config.Summarize(prev, cfg)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)...)

	if restart := ch.RestartRequired(); len(restart) > 0 {
		a.log.Warn("config sections changed that apply after restart", logx.Strings("sections", restart))
	}
	if prev != nil && prev.Telegram.Token != cfg.Telegram.Token {
		a.log.Warn("telegram.token changed; restart required")
	}

	if slices.Contains(ch.Live, "logging") || slices.Contains(ch.Live, "telegram") {
		if a.logs != nil {
			a.logs.Apply(mapLogConfig(cfg))
		}
	}
	if slices.Contains(ch.Live, "telegram") {
		a.cmdm.SetOwners(cfg.Telegram.OwnerUserIDs)
	}
	if slices.Contains(ch.Live, "notifier") {
		if nc, err := mapNotifierConfig(cfg); err != nil {
			a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		} else if err := a.notif.Apply(nc); err != nil {
			a.log.Warn("notifier config rejected; keeping previous", logx.Err(err))
		}
	}
	if slices.Contains(ch.Live, "scheduler") {
		if sc, err := mapSchedulerConfig(cfg); err != nil {
			a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		} else if err := a.sched.Apply(sc); err != nil {
			a.log.Warn("scheduler config rejected; keeping previous", logx.Err(err))
		}
	}
	if slices.Contains(ch.Live, "ops") {
		if oc, err := mapOpsConfig(cfg); err != nil {
			a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
		} else {
			a.ops.Reconfigure(ctx, oc)
		}
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)...)
}
