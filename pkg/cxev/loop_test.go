/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package cxev

import "testing"

func requireLib(t *testing.T) {
	t.Helper()
	if !Loaded() {
		t.Skip("libxev not available; set LIBXEV_PATH")
	}
}

func TestLoopInitDeinit(t *testing.T) {
	requireLib(t)
	var loop Loop
	if err := LoopInit(&loop); err != nil {
		t.Fatalf("LoopInit failed: %v", err)
	}
	LoopDeinit(&loop)
}

func TestLoopNow(t *testing.T) {
	requireLib(t)
	var loop Loop
	if err := LoopInit(&loop); err != nil {
		t.Fatalf("LoopInit failed: %v", err)
	}
	defer LoopDeinit(&loop)

	LoopUpdateNow(&loop)
	if now := LoopNow(&loop); now < 0 {
		t.Errorf("LoopNow returned negative value: %d", now)
	}
}

func TestLoopRunNoWait(t *testing.T) {
	requireLib(t)
	var loop Loop
	if err := LoopInit(&loop); err != nil {
		t.Fatalf("LoopInit failed: %v", err)
	}
	defer LoopDeinit(&loop)

	if err := LoopRun(&loop, RunNoWait); err != nil {
		t.Fatalf("LoopRun failed: %v", err)
	}
}

func TestTimerCallback(t *testing.T) {
	requireLib(t)
	var (
		loop       Loop
		watcher    Watcher
		completion Completion
	)
	if err := LoopInit(&loop); err != nil {
		t.Fatalf("LoopInit failed: %v", err)
	}
	defer LoopDeinit(&loop)

	if err := TimerInit(&watcher); err != nil {
		t.Fatalf("TimerInit failed: %v", err)
	}
	defer TimerDeinit(&watcher)

	before := CallbackCount()
	fired := 0
	id := TimerRunWithCallback(&watcher, &loop, &completion, 10, func(l *Loop, c *Completion, result int32, userdata uintptr) CbAction {
		fired++
		if result != 0 {
			t.Errorf("unexpected result %d", result)
		}
		return Disarm
	})
	if CallbackCount() != before+1 {
		t.Errorf("callback not registered")
	}

	if err := LoopRun(&loop, RunUntilDone); err != nil {
		t.Fatalf("LoopRun failed: %v", err)
	}
	UnregisterCallback(id)

	if fired != 1 {
		t.Errorf("timer callback fired %d times, want 1", fired)
	}
	if CallbackCount() != before {
		t.Errorf("callback still registered")
	}
}

func TestTimerCancel(t *testing.T) {
	requireLib(t)
	var (
		loop             Loop
		watcher          Watcher
		completion       Completion
		cancelCompletion Completion
	)
	if err := LoopInit(&loop); err != nil {
		t.Fatalf("LoopInit failed: %v", err)
	}
	defer LoopDeinit(&loop)
	if err := TimerInit(&watcher); err != nil {
		t.Fatalf("TimerInit failed: %v", err)
	}
	defer TimerDeinit(&watcher)

	var timerResult int32
	cancelled := false
	id := TimerRunWithCallback(&watcher, &loop, &completion, 60_000, func(_ *Loop, _ *Completion, result int32, _ uintptr) CbAction {
		timerResult = result
		return Disarm
	})
	defer UnregisterCallback(id)

	cid := TimerCancelWithCallback(&watcher, &loop, &completion, &cancelCompletion, func(_ *Loop, _ *Completion, _ int32, _ uintptr) CbAction {
		cancelled = true
		return Disarm
	})
	defer UnregisterCallback(cid)

	if err := LoopRun(&loop, RunUntilDone); err != nil {
		t.Fatalf("LoopRun failed: %v", err)
	}
	if !cancelled {
		t.Error("cancel callback was not fired")
	}
	if timerResult == 0 {
		t.Error("cancelled timer reported success")
	}
}

func TestLoadMissingLibrary(t *testing.T) {
	if Loaded() {
		t.Skip("a library is already loaded")
	}
	if err := Load("/nonexistent/libxev.so"); err == nil {
		t.Fatal("expected an error for a missing library")
	}
}
