package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamewatch/internal/eventbus"
	logx "gamewatch/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		in   string
		kind SpecKind
		cron string
	}{
		{"10m", SpecInterval, "@every 10m0s"},
		{"00:10", SpecInterval, "@every 10m0s"},
		{"interval:1h30m", SpecInterval, "@every 1h30m0s"},
		{"*/10 * * * *", SpecCron, "*/10 * * * *"},
		{"@hourly", SpecCron, "@hourly"},
		{"cron:0 9 * * *", SpecCron, "0 9 * * *"},
	}
	for _, tc := range cases {
		p, err := ParseSchedule(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.kind, p.Kind, tc.in)
		assert.Equal(t, tc.cron, p.CronSpec(), tc.in)
	}

	for _, bad := range []string{"", "0s", "-5m", "00:75", "soon"} {
		_, err := ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewRejectsInvalidCron(t *testing.T) {
	_, err := New(Config{Interval: "* * nope"}, nil, logx.Nop(), nil)
	require.Error(t, err)

	s, err := New(Config{}, nil, logx.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, "every 10m0s", s.Snapshot().Schedule)
}

func TestStartIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s, err := New(Config{Interval: "1h", RunOnStart: true}, func(context.Context) error {
		runs.Add(1)
		return nil
	}, logx.Nop(), bus)
	require.NoError(t, err)
	assert.False(t, s.Active())

	assert.True(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.True(t, s.Active())
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Only one timer exists, so only one start-up run.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	ev := <-events
	assert.Equal(t, eventbus.TypeSchedulerStart, ev.Type)
	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %q", ev.Type)
	default:
	}
}

func TestFailuresDoNotStopTicks(t *testing.T) {
	var runs atomic.Int32
	s, err := New(Config{Interval: "1s", RunOnStart: true}, func(context.Context) error {
		n := runs.Add(1)
		if n == 1 {
			panic("boom")
		}
		return errors.New("fetch catalog: 503")
	}, logx.Nop(), nil)
	require.NoError(t, err)

	require.True(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.Snapshot().Failures >= 2 }, time.Second, 5*time.Millisecond)
	snap := s.Snapshot()
	assert.True(t, snap.Active)
	assert.Error(t, snap.LastRun.Err)
}

func TestStopThenStartAgain(t *testing.T) {
	s, err := New(Config{Interval: "1h"}, func(context.Context) error { return nil }, logx.Nop(), nil)
	require.NoError(t, err)

	require.True(t, s.Start(context.Background()))
	s.Stop(context.Background())
	assert.False(t, s.Active())
	assert.True(t, s.Start(context.Background()))
	s.Stop(context.Background())
}

func TestApplyReschedulesRunningTimer(t *testing.T) {
	s, err := New(Config{Interval: "1h"}, func(context.Context) error { return nil }, logx.Nop(), nil)
	require.NoError(t, err)
	require.True(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.NoError(t, s.Apply(Config{Interval: "30m"}))
	assert.Equal(t, "every 30m0s", s.Snapshot().Schedule)
	require.Error(t, s.Apply(Config{Interval: "bogus"}))
	assert.Equal(t, "every 30m0s", s.Snapshot().Schedule)
	assert.True(t, s.Active())
}
