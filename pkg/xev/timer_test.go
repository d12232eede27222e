/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

import (
	"errors"
	"testing"
	"time"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	if !Available() {
		t.Skip("libxev not available; set LIBXEV_PATH")
	}
	loop, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}
	t.Cleanup(loop.Close)
	return loop
}

func newTestTimer(t *testing.T) *Timer {
	t.Helper()
	timer, err := NewTimer()
	if err != nil {
		t.Fatalf("NewTimer failed: %v", err)
	}
	t.Cleanup(timer.Close)
	return timer
}

func TestTimerWithHandler(t *testing.T) {
	loop := newTestLoop(t)
	timer := newTestTimer(t)

	fired := false
	handler := TimerFunc(func(timer *Timer, result error) Action {
		fired = true
		return Stop
	})
	if err := timer.RunWithHandler(loop, 10*time.Millisecond, handler); err != nil {
		t.Fatalf("RunWithHandler failed: %v", err)
	}
	if !timer.Active() {
		t.Error("timer should be active after RunWithHandler")
	}
	if err := timer.RunWithHandler(loop, time.Millisecond, handler); !errors.Is(err, ErrTimerActive) {
		t.Errorf("expected ErrTimerActive, got %v", err)
	}

	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run failed: %v", err)
	}
	if !fired {
		t.Error("timer was not fired")
	}
	if timer.Active() {
		t.Error("timer should be inactive after firing")
	}
}

func TestTimerRepeat(t *testing.T) {
	loop := newTestLoop(t)
	timer := newTestTimer(t)

	count := 0
	err := timer.RunFunc(loop, 5*time.Millisecond, func(t *Timer, result error) Action {
		count++
		if count == 3 {
			return Stop
		}
		return Continue
	})
	if err != nil {
		t.Fatalf("RunFunc failed: %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run failed: %v", err)
	}
	if count != 3 {
		t.Errorf("timer fired %d times, want 3", count)
	}
}

func TestTimerCancel(t *testing.T) {
	loop := newTestLoop(t)
	timer := newTestTimer(t)

	var got error
	err := timer.RunFunc(loop, time.Minute, func(t *Timer, result error) Action {
		got = result
		return Continue
	})
	if err != nil {
		t.Fatalf("RunFunc failed: %v", err)
	}
	timer.Cancel()
	timer.Cancel()

	if err := loop.Run(); err != nil {
		t.Fatalf("Loop.Run failed: %v", err)
	}
	if !errors.Is(got, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", got)
	}
	if timer.Active() {
		t.Error("timer should be inactive after cancellation")
	}
}

func TestMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want uint64
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{time.Second, 1000},
	}
	for _, tt := range tests {
		if got := millis(tt.in); got != tt.want {
			t.Errorf("millis(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
