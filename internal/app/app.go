package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gamewatch/internal/config"
	"gamewatch/internal/eventbus"
	"gamewatch/internal/notifier"
	"gamewatch/internal/observability/metrics"
	"gamewatch/internal/observability/ops"
	rtsup "gamewatch/internal/runtime/supervisor"
	"gamewatch/internal/storage"
	"gamewatch/internal/task/scheduler"
	"gamewatch/internal/tracker"
	"gamewatch/internal/transport"
	"gamewatch/internal/transport/telegram/router"
	logx "gamewatch/pkg/logx"
	"gamewatch/pkg/systemd"
)

// Deps are the components built outside the app. Adapter and Source are
// required.
type Deps struct {
	Adapter transport.Adapter
	Source  tracker.Source
	// Store is optional; without it the known set lives in memory only.
	Store storage.Store
	// Config enables hot reload when set.
	Config *config.Manager
	// Logs is the logging service reconfigured on reload.
	Logs    *logx.Service
	Log     logx.Logger
	Metrics *metrics.Metrics
}

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter transport.Adapter

	tracker *tracker.Tracker
	notif   *notifier.Service
	sched   *scheduler.Service
	cmdm    *router.CommandManager
	metrics *metrics.Metrics
	ops     *ops.Service

	updates chan transport.Update

	mu   sync.Mutex
	cfg  *config.Config
	last *Cycle
}

// New wires the components for cfg. The known set is loaded from d.Store
// before New returns.
func New(ctx context.Context, cfg *config.Config, d Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is nil")
	}
	if d.Adapter == nil || d.Source == nil {
		return nil, errors.New("app: adapter and source are required")
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}
	bus := eventbus.New()

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif, err := notifier.New(ncfg, d.Adapter, log, bus)
	if err != nil {
		return nil, err
	}
	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	ocfg, err := mapOpsConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:    d.Config,
		log:     log.With(logx.String("comp", "app")),
		logs:    d.Logs,
		bus:     bus,
		store:   d.Store,
		adapter: d.Adapter,
		notif:   notif,
		metrics: m,
		updates: make(chan transport.Update, 256),
		cfg:     cfg,
	}
	a.tracker = tracker.New(ctx, d.Source, d.Store, log)
	a.sched, err = scheduler.New(scfg, a.scheduledCycle, log, bus)
	if err != nil {
		return nil, err
	}
	a.ops = ops.New(ocfg, m.Handler(), a.readiness, log)
	a.cmdm = router.NewCommandManager(log.With(logx.String("comp", "commands")), d.Adapter, cfg.Telegram.OwnerUserIDs)
	m.SetKnown(a.tracker.Count())
	return a, nil
}

// Done is closed when the app supervisor context is cancelled (fatal error
// or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Tracker() *tracker.Tracker { return a.tracker }

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) currentConfig() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// readiness backs /readyz: ready once the adapter polls and the timer runs.
func (a *App) readiness(context.Context) error {
	select {
	case <-a.adapter.Ready():
	default:
		return errors.New("transport not ready")
	}
	if !a.sched.Active() {
		return errors.New("scheduler not started")
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(a.validateReload)
	}
	if u, ok := a.adapter.(interface{ Username() string }); ok {
		a.cmdm.SetBotUsername(u.Username())
	}
	a.cmdm.SetRegistry(run, a.commands())

	if err := a.adapter.Start(run, a.updates); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// The timer is armed only once the adapter can receive and send.
	a.sup.Go0("scheduler.arm", func(c context.Context) {
		select {
		case <-c.Done():
			return
		case <-a.adapter.Ready():
		}
		a.sched.Start(c)
		if _, err := systemd.Ready(); err != nil {
			a.log.Warn("sd_notify ready failed", logx.Err(err))
		}
		_, _ = systemd.Status(fmt.Sprintf("watching, %d known", a.tracker.Count()))
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		systemd.Watchdog(c, a.log)
	})

	a.ops.Start(run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started", logx.Int("known", a.tracker.Count()))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			// never extend the caller's deadline
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max <= 0 {
				a.log.Warn("stop step skipped (deadline)", logx.String("name", name))
				return
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// validateReload rejects a reloaded config the running app cannot apply.
// The manager has already run config.Validate.
func (a *App) validateReload(_ context.Context, cfg *config.Config) error {
	var errs []error
	if _, err := mapNotifierConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	scfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		errs = append(errs, err)
	} else if _, err := scheduler.New(scfg, nil, logx.Nop(), nil); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.interval: %w", err))
	}
	if _, err := mapOpsConfig(cfg); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
