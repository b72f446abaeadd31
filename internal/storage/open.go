package storage

import (
	"errors"
	"strings"

	logx "gamewatch/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch NormalizeDriver(cfg.Driver) {
	case "file":
		return openFile(cfg, log)
	case "sqlite":
		return openSQLite(cfg, log)
	case "bolt":
		return openBolt(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}

// NormalizeDriver maps aliases to canonical driver names. Unknown names are
// returned lower-cased so callers can report them.
func NormalizeDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", "file", "json":
		return "file"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "bolt", "bbolt":
		return "bolt"
	default:
		return d
	}
}

func pathOrDefault(p string) string {
	if p = strings.TrimSpace(p); p == "" {
		return DefaultPath
	}
	return p
}
