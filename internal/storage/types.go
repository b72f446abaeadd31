package storage

import (
	"context"
	"time"
)

// DefaultPath is the state location used by the file driver when none is configured.
const DefaultPath = "known_games.json"

// Config configures storage.
//
// Driver values: "file" (default when empty), "sqlite", "bolt".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the tracker and the command surface.
type Store interface {
	// Load returns the persisted ids. A store that was never saved (or was
	// cleared) returns an empty slice and no error.
	Load(ctx context.Context) ([]string, error)
	// Save replaces the persisted ids with ids.
	Save(ctx context.Context, ids []string) error
	// Clear removes the persisted ids.
	Clear(ctx context.Context) error
	// Exists reports whether persisted state is currently present.
	Exists(ctx context.Context) (bool, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditEntry records an operator command.
type AuditEntry struct {
	At            time.Time `json:"at"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ChatID        int64     `json:"chat_id"`
	Action        string    `json:"action"`
	Detail        string    `json:"detail,omitempty"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
	TookMS        int64     `json:"took_ms"`
}
