package notifier

import (
	"errors"
	"fmt"
	"time"
)

// Config controls rendering and batch delivery.
type Config struct {
	// Delay is the pause between two consecutive sends of one batch.
	Delay time.Duration
	// Timezone is an IANA name used for card timestamps.
	Timezone    string
	SendTimeout time.Duration
}

const (
	DefaultDelay       = time.Second
	DefaultTimezone    = "Europe/Paris"
	DefaultSendTimeout = 15 * time.Second
)

// Failure is one entry that could not be delivered.
type Failure struct {
	ID  string
	Err error
}

// Report lists per-entry outcomes of one batch.
type Report struct {
	Delivered []string
	Failed    []Failure
}

func (r Report) OK() bool { return len(r.Failed) == 0 }

// FailedIDs returns the ids of failed entries in delivery order.
func (r Report) FailedIDs() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.ID)
	}
	return out
}

// Err joins the failures, or returns nil.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

type HistoryItem struct {
	At time.Time
	ID string
	OK bool
}

// DeliveryEvent is emitted on the event bus for each attempted entry.
type DeliveryEvent struct {
	ID     string    `json:"id"`
	ChatID int64     `json:"chat_id"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
