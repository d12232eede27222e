/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package xevsched

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/evbridge/pkg/event"
	"github.com/crrow/evbridge/pkg/xev"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	if !xev.Available() {
		t.Skip("libxev not available; set LIBXEV_PATH")
	}
	s, err := New(WithTick(5 * time.Millisecond))
	require.NoError(t, err)
	return s
}

func pollWithin(t *testing.T, s *Scheduler, d time.Duration) (event.Ready, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.PollReady(ctx)
}

func TestTimers(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Close()

	late, err := s.SpawnTimer(s.Now().Add(50 * time.Millisecond))
	require.NoError(t, err)
	early, err := s.SpawnTimer(s.Now().Add(10 * time.Millisecond))
	require.NoError(t, err)

	r, err := pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: early, What: event.WhatTimeout}, r)

	r, err = pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: late, What: event.WhatTimeout}, r)

	s.Cancel(early)
	s.Cancel(late)
	assert.Zero(t, s.Pending())
}

func TestCancelBeforeFiring(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Close()

	armed, err := s.SpawnTimer(s.Now().Add(20 * time.Millisecond))
	require.NoError(t, err)

	// Arm it on the loop, then cancel.
	_, err = pollWithin(t, s, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	s.Cancel(armed)

	queued, err := s.SpawnTimer(s.Now().Add(10 * time.Millisecond))
	require.NoError(t, err)
	s.Cancel(queued)

	_, err = pollWithin(t, s, 100*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, s.armed)
}

func TestUnsupportedWatches(t *testing.T) {
	s := newTestScheduler(t)
	defer s.Close()

	_, err := s.SpawnSignalWatch(os.Interrupt)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = s.SpawnIOWatch(0, event.Readable)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestCloseWhilePolling(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.SpawnTimer(s.Now().Add(time.Hour))
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.PollReady(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("PollReady did not return after Close")
	}
	require.ErrorIs(t, s.Close(), ErrClosed)
	_, err = s.SpawnTimer(time.Now())
	require.ErrorIs(t, err, ErrClosed)
}

func TestBaseOnXev(t *testing.T) {
	s := newTestScheduler(t)
	base, err := event.New(event.WithSchedulerFactory(func() (event.Scheduler, error) { return s, nil }))
	require.NoError(t, err)

	n := 0
	_, err = base.RegisterTimer(5*time.Millisecond, 0, true, event.HandlerFunc(func(b *event.Base, ev event.Fired) error {
		n++
		if n == 3 {
			return b.Cancel(ev.ID)
		}
		return nil
	}))
	require.NoError(t, err)

	_, err = base.RegisterSignal(os.Interrupt, true, event.HandlerFunc(func(*event.Base, event.Fired) error { return nil }))
	require.ErrorIs(t, err, event.ErrSchedulerUnavailable)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, base.Run(ctx))
	assert.Equal(t, 3, n)
	require.NoError(t, base.Destroy())
}
