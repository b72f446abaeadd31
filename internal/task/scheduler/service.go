package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"gamewatch/internal/eventbus"
	logx "gamewatch/pkg/logx"
)

// New validates cfg and returns a stopped scheduler for job.
func New(cfg Config, job Job, log logx.Logger, bus eventbus.Bus) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log: log.With(logx.String("comp", "scheduler")),
		bus: bus,
		job: job,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	if err := s.Apply(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply swaps the schedule. A running scheduler re-registers its entry when
// the schedule changed; on error the previous schedule stays.
func (s *Service) Apply(cfg Config) error {
	if strings.TrimSpace(cfg.Interval) == "" {
		cfg.Interval = DefaultInterval
	}
	spec, err := ParseSchedule(cfg.Interval)
	if err != nil {
		return err
	}
	if _, err := s.parser.Parse(spec.CronSpec()); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Interval, err)
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("scheduler timezone %q: %w", tz, err)
		}
		loc = l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.spec.CronSpec()
	s.cfg, s.spec = cfg, spec
	if s.c == nil {
		s.loc = loc
		return nil
	}
	if loc.String() != s.loc.String() {
		s.log.Warn("timezone change applies after restart", logx.String("tz", loc.String()))
	}
	if spec.CronSpec() == prev {
		return nil
	}
	s.c.Remove(s.entryID)
	id, err := s.c.AddFunc(spec.CronSpec(), s.tick)
	if err != nil {
		return err
	}
	s.entryID = id
	s.log.Info("schedule updated", logx.String("schedule", spec.String()))
	return nil
}

// Start begins triggering. It is idempotent: it returns false without doing
// anything when the scheduler is already active.
func (s *Service) Start(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		s.log.Debug("start ignored; already active")
		return false
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	cl := cronLogger{log: s.log, onSkip: s.markSkipped}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	id, err := s.c.AddFunc(s.spec.CronSpec(), s.tick)
	if err != nil {
		// Apply already validated the spec.
		s.log.Error("register schedule failed", logx.Err(err))
		s.c, s.cancel = nil, nil
		s.mu.Unlock()
		return false
	}
	s.entryID = id
	s.c.Start()
	spec := s.spec
	runOnStart := s.cfg.RunOnStart
	wrapped := s.c.Entry(id).WrappedJob
	s.mu.Unlock()

	s.log.Info("scheduler started", logx.String("schedule", spec.String()), logx.Bool("run_on_start", runOnStart))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeSchedulerStart, Data: spec.String()})
	}
	if runOnStart && wrapped != nil {
		// Goes through the same chain so it cannot overlap a tick.
		go wrapped.Run()
	}
	return true
}

// Stop halts triggering and waits for a running job until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel, s.entryID = nil, nil, 0
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
}

// Active reports whether the timer is running.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Active: s.c != nil, Schedule: s.spec.String()}
	if s.c != nil {
		e := s.c.Entry(s.entryID)
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	s.mu.Unlock()

	s.rmu.Lock()
	snap.Running = s.stat.running
	snap.Runs = s.stat.runs
	snap.Failures = s.stat.failures
	snap.Skipped = s.stat.skipped
	snap.LastRun = s.stat.last
	s.rmu.Unlock()
	return snap
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.runCtx
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.rmu.Lock()
	s.stat.running = true
	s.rmu.Unlock()

	start := time.Now()
	err := s.runRecovered(ctx)
	took := time.Since(start)

	s.rmu.Lock()
	s.stat.running = false
	s.stat.runs++
	if err != nil {
		s.stat.failures++
	}
	s.stat.last = Run{At: start, Took: took, Err: err}
	s.rmu.Unlock()

	if err != nil {
		s.log.Error("scheduled check failed", logx.Err(err), logx.Duration("took", took))
		return
	}
	s.log.Debug("scheduled check done", logx.Duration("took", took))
}

func (s *Service) markSkipped() {
	s.rmu.Lock()
	s.stat.skipped++
	s.rmu.Unlock()
}

func (s *Service) runRecovered(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if s.job == nil {
		return nil
	}
	return s.job(ctx)
}

// cronLogger routes robfig/cron diagnostics into logx.
type cronLogger struct {
	log    logx.Logger
	onSkip func()
}

func (l cronLogger) Info(msg string, kv ...any) {
	if msg == "skip" {
		// SkipIfStillRunning is the only chain emitting "skip".
		l.log.Warn("previous check still running; tick skipped")
		if l.onSkip != nil {
			l.onSkip()
		}
		return
	}
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
