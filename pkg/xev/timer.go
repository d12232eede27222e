/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"errors"
	"fmt"
	"time"

	"github.com/crrow/evbridge/pkg/cxev"
)

var (
	// ErrCanceled is the result of a timer stopped by Cancel.
	ErrCanceled = errors.New("xev: timer canceled")

	// ErrTimerActive is returned when running a timer that has not completed.
	ErrTimerActive = errors.New("xev: timer already active")
)

// Timer is a one-shot or repeating libxev timer. Its storage must not be
// reused while active; create one Timer per concurrent timeout.
type Timer struct {
	watcher    cxev.Watcher
	completion cxev.Completion
	cancelComp cxev.Completion
	handler    TimerHandler
	callbackID uintptr
	cancelID   uintptr
	loop       *Loop
	active     bool
	canceling  bool

	// the cancel completion has not called back yet
	cancelPending bool
}

// NewTimer creates a new timer. Call Close when done.
func NewTimer() (*Timer, error) {
	t := &Timer{}
	if err := cxev.TimerInit(&t.watcher); err != nil {
		return nil, err
	}
	return t, nil
}

// Close releases the timer. It must not be active.
func (t *Timer) Close() {
	t.release()
	cxev.TimerDeinit(&t.watcher)
}

// Active reports whether the timer is waiting to fire or to finish
// cancelling.
func (t *Timer) Active() bool {
	return t.active || t.cancelPending
}

// RunWithHandler arms the timer to fire after delay. The delay is rounded
// up to whole milliseconds.
func (t *Timer) RunWithHandler(loop *Loop, delay time.Duration, handler TimerHandler) error {
	if handler == nil {
		return errors.New("xev: handler cannot be nil")
	}
	if t.Active() {
		return ErrTimerActive
	}
	t.release()
	t.handler = handler
	t.loop = loop
	t.active = true
	t.callbackID = cxev.TimerRunWithCallback(&t.watcher, &loop.inner, &t.completion, millis(delay), t.callback)
	return nil
}

// RunFunc arms the timer with a callback function.
//
// Return Stop to fire once, or Continue for a repeating timer.
func (t *Timer) RunFunc(loop *Loop, delay time.Duration, fn func(t *Timer, result error) Action) error {
	return t.RunWithHandler(loop, delay, TimerFunc(fn))
}

// Cancel stops an active timer. Its handler still runs once, with
// ErrCanceled, when the loop processes the cancellation. Cancelling an
// inactive timer is a no-op.
func (t *Timer) Cancel() {
	if !t.active || t.canceling {
		return
	}
	t.canceling = true
	t.cancelPending = true
	t.cancelID = cxev.TimerCancelWithCallback(&t.watcher, &t.loop.inner, &t.completion, &t.cancelComp,
		func(*cxev.Loop, *cxev.Completion, int32, uintptr) cxev.CbAction {
			t.cancelPending = false
			return cxev.Disarm
		})
}

func (t *Timer) callback(_ *cxev.Loop, _ *cxev.Completion, result int32, _ uintptr) cxev.CbAction {
	var err error
	switch {
	case result == 0:
	case t.canceling:
		err = ErrCanceled
	default:
		err = fmt.Errorf("xev: timer failed with code %d", result)
	}

	action := t.handler.OnTimer(t, err)
	if action == Continue && err == nil {
		return cxev.Rearm
	}
	t.active = false
	t.canceling = false
	return cxev.Disarm
}

func (t *Timer) release() {
	if t.callbackID != 0 {
		cxev.UnregisterCallback(t.callbackID)
		t.callbackID = 0
	}
	if t.cancelID != 0 {
		cxev.UnregisterCallback(t.cancelID)
		t.cancelID = 0
	}
}

func millis(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64((d + time.Millisecond - 1) / time.Millisecond)
}
