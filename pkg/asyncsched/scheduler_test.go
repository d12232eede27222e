/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package asyncsched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/evbridge/pkg/event"
)

func pollWithin(t *testing.T, s *Scheduler, d time.Duration) (event.Ready, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.PollReady(ctx)
}

func TestTimer(t *testing.T) {
	s := New()
	defer s.Close()

	late, err := s.SpawnTimer(s.Now().Add(60 * time.Millisecond))
	require.NoError(t, err)
	early, err := s.SpawnTimer(s.Now().Add(10 * time.Millisecond))
	require.NoError(t, err)
	assert.NotEqual(t, late, early)

	r, err := pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: early, What: event.WhatTimeout}, r)

	r, err = pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: late, What: event.WhatTimeout}, r)

	// Completed tasks stay accounted for until cancelled.
	assert.Equal(t, 2, s.Pending())
	s.Cancel(early)
	s.Cancel(late)
	s.Cancel(late)
	s.Cancel(12345)
	assert.Zero(t, s.Pending())
}

func TestCancelledTimerNeverReady(t *testing.T) {
	s := New()
	defer s.Close()

	id, err := s.SpawnTimer(s.Now().Add(10 * time.Millisecond))
	require.NoError(t, err)
	s.Cancel(id)

	_, err = pollWithin(t, s, 100*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollReadyDrainsWithDoneContext(t *testing.T) {
	s := New()
	defer s.Close()

	id, err := s.SpawnTimer(s.Now().Add(-time.Second))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := s.PollReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, r.Task)

	_, err = s.PollReady(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClose(t *testing.T) {
	s := New()

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

	_, err := s.SpawnTimer(s.Now())
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.SpawnIOWatch(0, event.Readable)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Close(), ErrClosed)
}
