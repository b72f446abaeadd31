package app

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"gamewatch/internal/eventbus"
	"gamewatch/internal/observability/metrics"
	"gamewatch/internal/storage"
	"gamewatch/internal/transport/telegram/router"
	logx "gamewatch/pkg/logx"
)

// Replies sent by the command handlers.
const (
	MsgChecking    = "🔍 Checking..."
	MsgNoNewGame   = "No new game detected."
	MsgCheckFailed = "❌ Error during check: "
	MsgResetDone   = "🗑️ Database reset. The next check will rescan all games."
	MsgResetFailed = "❌ Reset failed: "
)

func (a *App) commands() []router.Command {
	return []router.Command{
		{
			Name:        "status",
			Description: "Show the watcher status",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      a.cmdStatus,
		},
		{
			Name:        "check_now",
			Aliases:     []string{"checknow", "check"},
			Description: "Check the catalog now",
			Access:      router.AccessAdmin,
			Handle:      a.cmdCheckNow,
		},
		{
			Name:        "reset_db",
			Aliases:     []string{"resetdb"},
			Description: "Forget every known game",
			Access:      router.AccessAdmin,
			Timeout:     10 * time.Second,
			Handle:      a.cmdResetDB,
		},
		{
			Name:        "help",
			Aliases:     []string{"start"},
			Description: "List commands",
			Access:      router.AccessEveryone,
			Timeout:     5 * time.Second,
			Handle: func(ctx context.Context, req *router.Request) error {
				return req.Reply(ctx, a.cmdm.HelpText())
			},
		},
	}
}

func (a *App) cmdStatus(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, a.StatusText(ctx))
}

// StatusText renders the /status reply in Telegram HTML.
func (a *App) StatusText(ctx context.Context) string {
	loc := a.location()
	snap := a.sched.Snapshot()

	timer := "⛔ inactive"
	if snap.Active {
		timer = "✅ active"
	}
	persisted := "no"
	if a.tracker.Persisted(ctx) {
		persisted = "yes"
	}

	lines := []string{
		"📊 <b>Status</b>",
		"",
		fmt.Sprintf("Known games: <b>%d</b>", a.tracker.Count()),
		"Timer: " + timer,
		"Check interval: " + html.EscapeString(snap.Schedule),
	}
	if snap.Active && !snap.Next.IsZero() {
		lines = append(lines, "Next check: "+snap.Next.In(loc).Format("2006-01-02 15:04:05"))
	}
	lines = append(lines, "Persisted state: "+persisted)

	if c, ok := a.LastCycle(); ok {
		res := "ok"
		switch {
		case c.Err != nil:
			res = "error: " + html.EscapeString(c.Err.Error())
		case c.Result.Empty:
			res = "empty catalog"
		case len(c.Result.New) > 0:
			res = fmt.Sprintf("%d new", len(c.Result.New))
		}
		lines = append(lines, fmt.Sprintf("Last check: %s (%s, %s)",
			c.At.In(loc).Format("2006-01-02 15:04:05"), c.Trigger, res))
	} else {
		lines = append(lines, "Last check: never")
	}
	return strings.Join(lines, "\n")
}

func (a *App) cmdCheckNow(ctx context.Context, req *router.Request) error {
	start := time.Now()
	if err := req.Reply(ctx, MsgChecking); err != nil {
		req.Logger.Warn("ack failed", logx.Err(err))
	}

	c := a.runCycle(ctx, metrics.TriggerManual, req.Chat)
	detail := fmt.Sprintf("cycle=%s new=%d", c.ID, len(c.Result.New))
	a.audit(ctx, req, "check_now", detail, c.Err, start)

	switch {
	case c.Err != nil:
		return req.Reply(ctx, MsgCheckFailed+html.EscapeString(c.Err.Error()))
	case len(c.Result.New) == 0:
		return req.Reply(ctx, MsgNoNewGame)
	case !c.Report.OK():
		return req.Reply(ctx, fmt.Sprintf("⚠️ %d of %d announcements failed: %s",
			len(c.Report.Failed), len(c.Result.New),
			html.EscapeString(strings.Join(c.Report.FailedIDs(), ", "))))
	}
	return nil
}

func (a *App) cmdResetDB(ctx context.Context, req *router.Request) error {
	start := time.Now()
	err := a.tracker.Reset(ctx)
	a.audit(ctx, req, "reset_db", "", err, start)
	if err != nil {
		return req.Reply(ctx, MsgResetFailed+html.EscapeString(err.Error()))
	}
	a.metrics.ObserveReset()
	if a.bus != nil {
		a.bus.Publish(eventbus.Event{Type: eventbus.TypeStateReset, Time: time.Now(), Data: req.FromID})
	}
	return req.Reply(ctx, MsgResetDone)
}

// audit records an operator command; failures are logged only.
func (a *App) audit(ctx context.Context, req *router.Request, action, detail string, err error, start time.Time) {
	if a.store == nil {
		return
	}
	e := storage.AuditEntry{
		At:            start,
		ActorID:       req.FromID,
		ActorUsername: req.FromUsername,
		ChatID:        req.Chat.ChatID,
		Action:        action,
		Detail:        detail,
		OK:            err == nil,
		TookMS:        time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := a.store.AppendAudit(ctx, e); aerr != nil {
		req.Logger.Warn("audit append failed", logx.Err(aerr))
	}
}

func (a *App) location() *time.Location {
	return a.notif.Location()
}
