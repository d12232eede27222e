/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package asyncsched is the default event.Scheduler. It runs on a
// cooperative async.Executor: timers, signal watches and I/O readiness all
// complete by spawning a coroutine on the executor, and the executor only
// ever runs on the goroutine calling PollReady. Completions are therefore
// serialized with the dispatch loop that consumes them.
package asyncsched

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/b97tsk/async"
	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/crrow/evbridge/pkg/event"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("asyncsched: scheduler closed")

	// ErrUnsupported is returned for I/O watches on platforms without poll(2).
	ErrUnsupported = errors.New("asyncsched: not supported on this platform")
)

type taskKind uint8

const (
	kindTimer taskKind = iota
	kindSignal
	kindIO
)

type task struct {
	kind  taskKind
	done  bool
	timer *time.Timer
	sig   os.Signal
}

// Scheduler implements event.Scheduler.
type Scheduler struct {
	log  zerolog.Logger
	exec async.Executor
	wake chan struct{}

	mu      sync.Mutex
	closed  bool
	last    event.Task
	tasks   map[event.Task]*task
	ready   *queue.Queue
	signals map[os.Signal]*signalHub
	io      ioPoller
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates a scheduler. Call Close when done.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:     zerolog.Nop(),
		wake:    make(chan struct{}, 1),
		tasks:   make(map[event.Task]*task),
		ready:   queue.New(),
		signals: make(map[os.Signal]*signalHub),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.exec.Autorun(s.notify)
	return s
}

// notify wakes PollReady. It never blocks, so Spawn never blocks either.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// post completes a task from any goroutine. It must not be called with
// s.mu held: the executor may be running complete, which takes s.mu.
func (s *Scheduler) post(id event.Task, what event.What) {
	s.exec.Spawn(async.Do(func() {
		s.complete(id, what)
	}))
}

// complete runs on the executor, inside PollReady.
func (s *Scheduler) complete(id event.Task, what event.What) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.done {
		return
	}
	t.done = true
	s.ready.Add(event.Ready{Task: id, What: what})
}

func (s *Scheduler) Now() time.Time {
	return time.Now()
}

func (s *Scheduler) newTaskLocked(kind taskKind) (event.Task, *task, error) {
	if s.closed {
		return 0, nil, ErrClosed
	}
	s.last++
	t := &task{kind: kind}
	s.tasks[s.last] = t
	return s.last, t, nil
}

func (s *Scheduler) SpawnTimer(deadline time.Time) (event.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, t, err := s.newTaskLocked(kindTimer)
	if err != nil {
		return 0, err
	}
	t.timer = time.AfterFunc(time.Until(deadline), func() {
		s.post(id, event.WhatTimeout)
	})
	return id, nil
}

func (s *Scheduler) SpawnSignalWatch(sig os.Signal) (event.Task, error) {
	s.mu.Lock()
	id, t, err := s.newTaskLocked(kindSignal)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	t.sig = sig
	hub, ok := s.signals[sig]
	if !ok {
		hub = newSignalHub(s, sig)
		s.signals[sig] = hub
	}
	deliver := hub.watchLocked(id)
	s.mu.Unlock()

	if deliver {
		s.post(id, event.WhatSignal)
	}
	return id, nil
}

func (s *Scheduler) SpawnIOWatch(fd int, interest event.Interest) (event.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.io == nil {
		p, err := newIOPoller(s.post, s.log)
		if err != nil {
			return 0, err
		}
		s.io = p
	}
	id, _, err := s.newTaskLocked(kindIO)
	if err != nil {
		return 0, err
	}
	if err := s.io.add(id, fd, interest); err != nil {
		delete(s.tasks, id)
		return 0, err
	}
	return id, nil
}

// Cancel releases a task. Unknown and finished tasks are ignored.
func (s *Scheduler) Cancel(id event.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	delete(s.tasks, id)
	s.releaseLocked(id, t)
}

func (s *Scheduler) releaseLocked(id event.Task, t *task) {
	switch t.kind {
	case kindTimer:
		t.timer.Stop()
	case kindSignal:
		if hub, ok := s.signals[t.sig]; ok && hub.releaseLocked(id) {
			delete(s.signals, t.sig)
		}
	case kindIO:
		if s.io != nil {
			s.io.remove(id)
		}
	}
}

// PollReady runs the executor and returns the first completed task that
// has not been cancelled, waiting until one exists or ctx is done.
func (s *Scheduler) PollReady(ctx context.Context) (event.Ready, error) {
	for {
		s.exec.Run()

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return event.Ready{}, ErrClosed
		}
		for s.ready.Length() > 0 {
			r := s.ready.Remove().(event.Ready)
			if _, ok := s.tasks[r.Task]; ok {
				s.mu.Unlock()
				return r, nil
			}
		}
		s.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return event.Ready{}, err
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
		}
	}
}

// Close stops every source. A PollReady in progress returns ErrClosed.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	for id, t := range s.tasks {
		s.releaseLocked(id, t)
	}
	clear(s.tasks)
	for sig, hub := range s.signals {
		hub.stopLocked()
		delete(s.signals, sig)
	}
	p := s.io
	s.io = nil
	s.mu.Unlock()

	s.notify()
	if p != nil {
		return p.close()
	}
	return nil
}

// Pending returns the number of tasks spawned and not yet cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
