/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ID identifies a registration within one Base. IDs start at 1 and are
// never reused; the zero ID is never valid.
type ID uint64

// Interest selects which readiness conditions an I/O registration waits for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) String() string {
	var parts []string
	if i&Readable != 0 {
		parts = append(parts, "read")
	}
	if i&Writable != 0 {
		parts = append(parts, "write")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// What describes which condition caused a callback.
type What uint8

const (
	WhatTimeout What = 1 << iota
	WhatRead
	WhatWrite
	WhatSignal
)

func (w What) String() string {
	var parts []string
	for _, p := range []struct {
		bit  What
		name string
	}{
		{WhatTimeout, "timeout"},
		{WhatRead, "read"},
		{WhatWrite, "write"},
		{WhatSignal, "signal"},
	} {
		if w&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Kind is the trigger of a registration: KindTimer, KindSignal or KindIO.
type Kind interface {
	validate() error
	String() string
}

// KindTimer fires Delay after it is armed. A persistent timer then fires
// every Interval; a zero Interval reuses Delay.
type KindTimer struct {
	Delay    time.Duration
	Interval time.Duration
}

func (k KindTimer) validate() error {
	if k.Delay < 0 || k.Interval < 0 {
		return fmt.Errorf("%w: negative timer duration", ErrInvalidArgument)
	}
	return nil
}

func (k KindTimer) String() string {
	return fmt.Sprintf("timer(%s/%s)", k.Delay, k.Interval)
}

// period is the distance between two firings of a persistent timer.
func (k KindTimer) period() time.Duration {
	if k.Interval > 0 {
		return k.Interval
	}
	return k.Delay
}

// KindSignal fires when the process receives Signal.
type KindSignal struct {
	Signal os.Signal
}

func (k KindSignal) validate() error {
	if k.Signal == nil {
		return fmt.Errorf("%w: nil signal", ErrInvalidArgument)
	}
	return nil
}

func (k KindSignal) String() string {
	return "signal(" + k.Signal.String() + ")"
}

// KindIO fires when FD becomes ready for any of Interest.
type KindIO struct {
	FD       int
	Interest Interest
}

func (k KindIO) validate() error {
	if k.FD < 0 {
		return fmt.Errorf("%w: negative fd %d", ErrInvalidArgument, k.FD)
	}
	if k.Interest&(Readable|Writable) == 0 {
		return fmt.Errorf("%w: empty interest", ErrInvalidArgument)
	}
	return nil
}

func (k KindIO) String() string {
	return fmt.Sprintf("io(fd=%d %s)", k.FD, k.Interest)
}

// State is the lifecycle state of a registration.
type State uint8

const (
	StateArmed State = iota
	StateFiring
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateFiring:
		return "firing"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Fired is passed to a Handler when its registration triggers.
type Fired struct {
	ID   ID
	What What
}

// Handler is the interface for event callbacks.
//
// OnEvent runs on the dispatch goroutine with the base unlocked, so it may
// call any Base method. Returning a non-nil error stops the loop; Run then
// returns a *CallbackFault wrapping it.
type Handler interface {
	OnEvent(b *Base, ev Fired) error
}

// HandlerFunc is a function adapter for [Handler].
type HandlerFunc func(b *Base, ev Fired) error

// OnEvent implements [Handler].
func (f HandlerFunc) OnEvent(b *Base, ev Fired) error {
	return f(b, ev)
}

// Record is a snapshot of a registration, returned by Base.Lookup.
type Record struct {
	ID         ID
	Kind       Kind
	Persistent bool
	State      State
	Fires      uint64
	Deadline   time.Time
}

type record struct {
	id         ID
	kind       Kind
	persistent bool
	handler    Handler
	state      State
	fires      uint64

	// deadline of the armed timer task; zero for other kinds.
	deadline time.Time

	// internal records (loop exit) are hidden from IDs and Len.
	internal bool
}

func (r *record) snapshot() Record {
	return Record{
		ID:         r.id,
		Kind:       r.kind,
		Persistent: r.persistent,
		State:      r.state,
		Fires:      r.fires,
		Deadline:   r.deadline,
	}
}
