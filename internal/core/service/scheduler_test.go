package service

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestScheduler_PublishesImmediatelyAndOnInterval(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "secret")

	s := NewScheduler(env.backup, nil, SchedulerConfig{PublishInterval: 20 * time.Millisecond}, discard)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, "initial publish", func() bool { return env.slots.Puts() >= 1 })

	// Later ticks capture later clock readings.
	env.clock.Advance(time.Minute)
	waitFor(t, "interval publish", func() bool { return env.slots.Puts() >= 3 })
	waitFor(t, "summaries", func() bool { return env.sink.count() >= 3 })
}

func TestScheduler_SweepsExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "secret")
	env.login(t, "alice", "secret")
	env.clock.Advance(48 * time.Hour)

	s := NewScheduler(nil, env.accounts, SchedulerConfig{SweepInterval: 10 * time.Millisecond}, discard)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, "sweep", func() bool { return env.store.Sessions.Count() == 0 })
}

func TestScheduler_StopWaits(t *testing.T) {
	env := newTestEnv(t)

	s := NewScheduler(env.backup, env.accounts, SchedulerConfig{
		PublishInterval: time.Hour,
		SweepInterval:   time.Hour,
	}, discard)
	s.Start(context.Background())
	s.Start(context.Background()) // no-op

	waitFor(t, "initial publish", func() bool { return env.slots.Puts() == 1 })

	s.Stop()
	s.Stop() // idempotent

	if got := env.slots.Puts(); got != 1 {
		t.Fatalf("puts after Stop = %d, want 1", got)
	}
}
