package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("750ms", "30s", "10m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Catalog   CatalogConfig   `json:"catalog"`
	Notifier  NotifierConfig  `json:"notifier"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Ops       OpsConfig       `json:"ops,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs may run admin commands in any chat.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	PollTimeout  string  `json:"poll_timeout"`
}

// CatalogConfig points at the remote catalog.
//
// Example:
//
//	"catalog": { "url": "https://Pomdapie.pythonanywhere.com/api/games/", "timeout": "30s" }
type CatalogConfig struct {
	URL       string `json:"url"`
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// NotifierConfig controls where and how new entries are announced.
type NotifierConfig struct {
	ChannelID   int64  `json:"channel_id"`
	ThreadID    int    `json:"thread_id,omitempty"`
	Delay       string `json:"delay,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

type SchedulerConfig struct {
	// Interval is a duration ("10m"), an HH:MM interval ("00:10") or a cron
	// expression ("*/10 * * * *").
	Interval   string `json:"interval"`
	Timezone   string `json:"timezone,omitempty"`
	RunOnStart bool   `json:"run_on_start,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

// StorageConfig selects the known-set store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./known_games.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// OpsConfig controls the optional operations HTTP server (health, metrics,
// pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:9090").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:9090"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	// Runtime profiling rates. Leave 0 to keep Go defaults.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}
