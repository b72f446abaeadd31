package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gamewatch/internal/eventbus"
	"gamewatch/internal/tracker"
	"gamewatch/internal/transport"
	logx "gamewatch/pkg/logx"
)

const historySize = 100

// Service delivers new-entry cards through a transport adapter.
//
// It is safe for concurrent use; batches are delivered one at a time.
type Service struct {
	mu       sync.Mutex
	log      logx.Logger
	adapter  transport.Adapter
	bus      eventbus.Bus
	cfg      Config
	renderer Renderer

	// sendMu keeps batches from interleaving in the destination chat.
	sendMu sync.Mutex

	hmu     sync.Mutex
	history []HistoryItem
}

// New returns a service; it fails only when cfg.Timezone is unknown.
func New(cfg Config, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		log:     log.With(logx.String("comp", "notifier")),
		bus:     bus,
	}
	if err := s.Apply(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply swaps the configuration. The previous one stays in place on error.
func (s *Service) Apply(cfg Config) error {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("notifier timezone %q: %w", cfg.Timezone, err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.renderer = Renderer{Location: loc}
	s.mu.Unlock()
	return nil
}

// Location returns the configured timezone.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.Location
}

// Render builds the card for one entry using the configured timezone.
func (s *Service) Render(e tracker.NewEntry) transport.Card {
	s.mu.Lock()
	r := s.renderer
	s.mu.Unlock()
	return r.Render(e.ID, e.Entry)
}

// Deliver sends one card per entry to the target, in order, waiting
// cfg.Delay between consecutive sends. A failed send is recorded and the
// batch moves on.
func (s *Service) Deliver(ctx context.Context, to transport.ChatTarget, items []tracker.NewEntry) Report {
	var rep Report
	if len(items) == 0 {
		return rep
	}

	s.mu.Lock()
	cfg := s.cfg
	r := s.renderer
	ad := s.adapter
	s.mu.Unlock()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	// Burst 1: the first send goes out immediately.
	lim := rate.NewLimiter(limit, 1)

	for i, it := range items {
		if i > 0 {
			// The gap runs from the end of the previous send.
			lim = drained(limit)
		}
		if err := lim.Wait(ctx); err != nil {
			for _, rest := range items[i:] {
				rep.Failed = append(rep.Failed, Failure{ID: rest.ID, Err: err})
			}
			s.log.Warn("delivery batch interrupted",
				logx.Err(err), logx.Int("remaining", len(items)-i))
			break
		}

		err := s.sendOne(ctx, ad, to, r.Render(it.ID, it.Entry), cfg.SendTimeout)
		s.record(to, it.ID, err)
		if err != nil {
			rep.Failed = append(rep.Failed, Failure{ID: it.ID, Err: err})
			s.log.Warn("delivery failed", logx.String("id", it.ID), logx.Int64("chat_id", to.ChatID), logx.Err(err))
			continue
		}
		rep.Delivered = append(rep.Delivered, it.ID)
	}
	return rep
}

// drained returns a limiter whose single token was just spent.
func drained(limit rate.Limit) *rate.Limiter {
	lim := rate.NewLimiter(limit, 1)
	lim.Allow()
	return lim
}

func (s *Service) sendOne(ctx context.Context, ad transport.Adapter, to transport.ChatTarget, card transport.Card, timeout time.Duration) error {
	if ad == nil {
		return fmt.Errorf("no transport adapter")
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := ad.SendCard(callCtx, to, card)
	return err
}

func (s *Service) record(to transport.ChatTarget, id string, err error) {
	now := time.Now()
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: now, ID: id, OK: err == nil})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()

	if s.bus == nil {
		return
	}
	ev := DeliveryEvent{ID: id, ChatID: to.ChatID, At: now}
	typ := eventbus.TypeDeliverySent
	if err != nil {
		typ = eventbus.TypeDeliveryFailed
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

// History returns recent delivery outcomes, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
