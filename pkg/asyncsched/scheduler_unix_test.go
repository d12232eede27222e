//go:build unix

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package asyncsched

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/crrow/evbridge/pkg/event"
)

func TestIOWatch(t *testing.T) {
	s := New()
	defer s.Close()

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	rd, err := s.SpawnIOWatch(fds[0], event.Readable)
	require.NoError(t, err)

	_, err = pollWithin(t, s, 50*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	r, err := pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: rd, What: event.WhatRead}, r)

	wr, err := s.SpawnIOWatch(fds[1], event.Readable|event.Writable)
	require.NoError(t, err)
	r, err = pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: wr, What: event.WhatWrite}, r)

	s.Cancel(rd)
	s.Cancel(wr)
	assert.Zero(t, s.Pending())
}

func TestIOWatchCancelled(t *testing.T) {
	s := New()
	defer s.Close()

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	id, err := s.SpawnIOWatch(fds[0], event.Readable)
	require.NoError(t, err)
	s.Cancel(id)

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)
	_, err = pollWithin(t, s, 100*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignalWatch(t *testing.T) {
	s := New()
	defer s.Close()

	first, err := s.SpawnSignalWatch(syscall.SIGUSR1)
	require.NoError(t, err)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	r, err := pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: first, What: event.WhatSignal}, r)

	// The first task completed but still holds the subscription, so a
	// signal arriving now is kept for the next watch.
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.signals[syscall.SIGUSR1].pending == 1
	}, 5*time.Second, time.Millisecond)

	second, err := s.SpawnSignalWatch(syscall.SIGUSR1)
	require.NoError(t, err)
	s.Cancel(first)

	r, err = pollWithin(t, s, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.Ready{Task: second, What: event.WhatSignal}, r)

	s.Cancel(second)
	s.mu.Lock()
	assert.Empty(t, s.signals)
	s.mu.Unlock()
}
