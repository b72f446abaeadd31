package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gamewatch/internal/eventbus"
	logx "gamewatch/pkg/logx"
)

// DefaultInterval is the check period used when none is configured.
const DefaultInterval = "10m"

// Config controls the check schedule.
type Config struct {
	// Interval accepts anything ParseSchedule does.
	Interval string
	// Timezone is used for cron expressions; interval schedules ignore it.
	Timezone string
	// RunOnStart runs one check right after Start.
	RunOnStart bool
	// Timeout bounds one run; 0 means no bound beyond the Start context.
	Timeout time.Duration
}

// Job is one scheduled run.
type Job func(ctx context.Context) error

type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus
	job Job

	cfg    Config
	spec   ParsedSpec
	loc    *time.Location
	parser cron.Parser

	c       *cron.Cron
	entryID cron.EntryID
	runCtx  context.Context
	cancel  context.CancelFunc

	rmu  sync.Mutex
	stat runStats
}

type runStats struct {
	runs     uint64
	failures uint64
	skipped  uint64
	running  bool
	last     Run
}

// Run describes the most recent finished run.
type Run struct {
	At   time.Time
	Took time.Duration
	Err  error
}

// Snapshot is the scheduler state shown by /status.
type Snapshot struct {
	Active   bool
	Schedule string
	Next     time.Time
	Prev     time.Time
	Running  bool
	Runs     uint64
	Failures uint64
	Skipped  uint64
	LastRun  Run
}
