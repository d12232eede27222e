/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package xevsched is an event.Scheduler backed by a libxev loop.
//
// Only timers are supported. libxev loops are single-threaded, so Spawn and
// Cancel calls only queue work; the goroutine inside PollReady applies it
// and drives the loop. Each blocking run of the loop is bounded by a tick
// timer so that context cancellation and newly queued work are noticed.
package xevsched

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crrow/evbridge/pkg/event"
	"github.com/crrow/evbridge/pkg/xev"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("xevsched: scheduler closed")

	// ErrUnsupported is returned for signal and I/O watches.
	ErrUnsupported = errors.New("xevsched: only timers are supported")

	// ErrBusy is returned when PollReady is called concurrently.
	ErrBusy = errors.New("xevsched: PollReady already in progress")
)

// DefaultTick bounds how long the loop blocks before checking for queued
// work and cancellation.
const DefaultTick = 10 * time.Millisecond

type opKind uint8

const (
	opArm opKind = iota
	opCancel
)

type op struct {
	kind opKind
	task *timerTask
}

type timerTask struct {
	id       event.Task
	deadline time.Time

	// owned by the polling goroutine
	timer *xev.Timer
}

// Scheduler implements event.Scheduler on libxev.
type Scheduler struct {
	log  zerolog.Logger
	tick time.Duration

	mu      sync.Mutex
	closed  bool
	polling bool
	last    event.Task
	tasks   map[event.Task]*timerTask
	ops     []op

	// owned by the polling goroutine, or by Close when nobody polls
	loop      *xev.Loop
	tickTimer *xev.Timer
	armed     map[*timerTask]struct{}
	ready     []event.Ready
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithTick sets the longest time the loop blocks between checks.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// New creates a scheduler with its own libxev loop. It fails when libxev
// cannot be loaded.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		log:   zerolog.Nop(),
		tick:  DefaultTick,
		tasks: make(map[event.Task]*timerTask),
		armed: make(map[*timerTask]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	loop, err := xev.NewLoop()
	if err != nil {
		return nil, fmt.Errorf("xevsched: %w", err)
	}
	tick, err := xev.NewTimer()
	if err != nil {
		loop.Close()
		return nil, fmt.Errorf("xevsched: %w", err)
	}
	s.loop = loop
	s.tickTimer = tick
	return s, nil
}

func (s *Scheduler) Now() time.Time {
	return time.Now()
}

func (s *Scheduler) SpawnTimer(deadline time.Time) (event.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.last++
	t := &timerTask{id: s.last, deadline: deadline}
	s.tasks[t.id] = t
	s.ops = append(s.ops, op{kind: opArm, task: t})
	return t.id, nil
}

func (s *Scheduler) SpawnSignalWatch(os.Signal) (event.Task, error) {
	return 0, ErrUnsupported
}

func (s *Scheduler) SpawnIOWatch(int, event.Interest) (event.Task, error) {
	return 0, ErrUnsupported
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
	s.ops = append(s.ops, op{kind: opCancel, task: t})
}

// PollReady drives the loop until a live timer fired or ctx is done.
func (s *Scheduler) PollReady(ctx context.Context) (event.Ready, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return event.Ready{}, ErrClosed
	case s.polling:
		s.mu.Unlock()
		return event.Ready{}, ErrBusy
	}
	s.polling = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.polling = false
		closed := s.closed
		s.mu.Unlock()
		if closed {
			s.shutdown()
		}
	}()

	for {
		if err := s.applyOps(); err != nil {
			return event.Ready{}, err
		}
		s.reap()
		if r, ok := s.popReady(); ok {
			return r, nil
		}

		if err := ctx.Err(); err != nil {
			if err := s.loop.Poll(); err != nil {
				return event.Ready{}, err
			}
			if r, ok := s.popReady(); ok {
				return r, nil
			}
			return event.Ready{}, err
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return event.Ready{}, ErrClosed
		}

		if !s.tickTimer.Active() {
			err := s.tickTimer.RunFunc(s.loop, s.tick, func(*xev.Timer, error) xev.Action {
				return xev.Stop
			})
			if err != nil {
				return event.Ready{}, err
			}
		}
		if err := s.loop.RunOnce(); err != nil {
			return event.Ready{}, err
		}
	}
}

func (s *Scheduler) applyOps() error {
	s.mu.Lock()
	ops := s.ops
	s.ops = nil
	s.mu.Unlock()

	for _, o := range ops {
		switch o.kind {
		case opArm:
			if err := s.arm(o.task); err != nil {
				return err
			}
		case opCancel:
			if o.task.timer != nil {
				o.task.timer.Cancel()
			}
		}
	}
	return nil
}

func (s *Scheduler) arm(t *timerTask) error {
	s.mu.Lock()
	_, live := s.tasks[t.id]
	s.mu.Unlock()
	if !live {
		return nil
	}

	timer, err := xev.NewTimer()
	if err != nil {
		return err
	}
	t.timer = timer
	s.armed[t] = struct{}{}
	// The loop's cached clock may lag; refresh it so the delay is measured
	// from now.
	s.loop.UpdateNow()
	return timer.RunFunc(s.loop, time.Until(t.deadline), func(_ *xev.Timer, result error) xev.Action {
		if result != nil {
			return xev.Stop
		}
		s.ready = append(s.ready, event.Ready{Task: t.id, What: event.WhatTimeout})
		return xev.Stop
	})
}

// reap closes timers that finished firing or cancelling.
func (s *Scheduler) reap() {
	for t := range s.armed {
		if t.timer.Active() {
			continue
		}
		t.timer.Close()
		t.timer = nil
		delete(s.armed, t)
	}
}

func (s *Scheduler) popReady() (event.Ready, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.ready) > 0 {
		r := s.ready[0]
		s.ready = s.ready[1:]
		if _, ok := s.tasks[r.Task]; ok {
			return r, true
		}
	}
	return event.Ready{}, false
}

// Close stops every timer and releases the loop. When a PollReady is in
// progress the loop is released by that call as it returns.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	clear(s.tasks)
	polling := s.polling
	s.mu.Unlock()

	if !polling {
		s.shutdown()
	}
	return nil
}

// shutdown cancels whatever is still armed, lets the loop deliver the
// cancellations and frees everything.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.ops = nil
	s.mu.Unlock()

	for t := range s.armed {
		t.timer.Cancel()
	}
	s.tickTimer.Cancel()
	if err := s.loop.Run(); err != nil {
		s.log.Error().Err(err).Msg("draining libxev loop")
	}
	s.reap()
	s.tickTimer.Close()
	s.loop.Close()
}

// Pending returns the number of tasks spawned and not yet cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
