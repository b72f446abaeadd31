package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gamewatch/internal/eventbus"
	"gamewatch/internal/notifier"
	"gamewatch/internal/observability/metrics"
	"gamewatch/internal/tracker"
	"gamewatch/internal/transport"
	logx "gamewatch/pkg/logx"
)

// errNoChannel marks a scheduled cycle skipped for lack of a destination.
var errNoChannel = errors.New("notifier.channel_id is not configured")

// Cycle is the outcome of one check.
type Cycle struct {
	ID      string
	Trigger string
	At      time.Time
	Result  tracker.Result
	Report  notifier.Report
	Err     error
}

func (c Cycle) resultLabel() string {
	switch {
	case c.Err != nil:
		return metrics.ResultFetchError
	case c.Result.Empty:
		return metrics.ResultEmpty
	case c.Result.SaveErr != nil:
		return metrics.ResultSaveError
	default:
		return metrics.ResultOK
	}
}

// CycleEvent is the payload of eventbus.TypeCycleCompleted.
type CycleEvent struct {
	ID      string   `json:"id"`
	Trigger string   `json:"trigger"`
	New     []string `json:"new,omitempty"`
	Failed  []string `json:"failed,omitempty"`
	Known   int      `json:"known"`
	Error   string   `json:"error,omitempty"`
	TookMS  int64    `json:"took_ms"`
}

// runCycle checks the catalog and announces new entries to to. A zero
// ChatID skips delivery; the known set still advances.
func (a *App) runCycle(ctx context.Context, trigger string, to transport.ChatTarget) Cycle {
	c := Cycle{ID: uuid.NewString(), Trigger: trigger, At: time.Now()}
	log := a.log.With(logx.String("cycle", c.ID), logx.String("trigger", trigger))

	c.Result, c.Err = a.tracker.Check(ctx)
	if c.Err != nil {
		log.Error("check failed", logx.Err(c.Err))
	} else if len(c.Result.New) > 0 {
		log.Info("new entries detected", logx.Int("count", len(c.Result.New)), logx.Int("known", c.Result.Known))
		if to.ChatID != 0 {
			c.Report = a.notif.Deliver(ctx, to, c.Result.New)
			a.metrics.ObserveDeliveries(len(c.Report.Delivered), len(c.Report.Failed))
			if !c.Report.OK() {
				log.Warn("some announcements failed",
					logx.Strings("failed", c.Report.FailedIDs()),
					logx.Int("delivered", len(c.Report.Delivered)),
				)
			}
		}
	} else {
		log.Debug("no new entries", logx.Int("fetched", c.Result.Fetched), logx.Int("known", c.Result.Known))
	}

	a.metrics.ObserveCycle(trigger, c.resultLabel(), c.Result.Took, len(c.Result.New), c.Result.Known)
	a.recordCycle(c)
	return c
}

// scheduledCycle is the scheduler job: it announces to the configured channel.
func (a *App) scheduledCycle(ctx context.Context) error {
	to := channelTarget(a.currentConfig())
	if to.ChatID == 0 {
		a.log.Warn("scheduled check skipped", logx.Err(errNoChannel))
		return nil
	}
	c := a.runCycle(ctx, metrics.TriggerSchedule, to)
	if c.Err != nil {
		return c.Err
	}
	return c.Report.Err()
}

func (a *App) recordCycle(c Cycle) {
	a.mu.Lock()
	cp := c
	a.last = &cp
	a.mu.Unlock()

	if a.bus == nil {
		return
	}
	ev := CycleEvent{
		ID:      c.ID,
		Trigger: c.Trigger,
		Failed:  c.Report.FailedIDs(),
		Known:   c.Result.Known,
		TookMS:  c.Result.Took.Milliseconds(),
	}
	for _, e := range c.Result.New {
		ev.New = append(ev.New, e.ID)
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeCycleCompleted, Time: c.At, Data: ev})
}

// LastCycle returns the most recent cycle, if any.
func (a *App) LastCycle() (Cycle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Cycle{}, false
	}
	return *a.last, true
}
