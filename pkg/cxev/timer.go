/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package cxev

import (
	"errors"
	"unsafe"

	"github.com/jupiterrider/ffi"
)

var (
	fnTimerInit   ffi.Fun
	fnTimerDeinit ffi.Fun
	fnTimerRun    ffi.Fun
	fnTimerCancel ffi.Fun
)

func timerBindings() []binding {
	p := &ffi.TypePointer
	return []binding{
		// int xev_timer_init(xev_watcher* w)
		{&fnTimerInit, "xev_timer_init", &ffi.TypeSint32, []*ffi.Type{p}},
		// void xev_timer_deinit(xev_watcher* w)
		{&fnTimerDeinit, "xev_timer_deinit", &ffi.TypeVoid, []*ffi.Type{p}},
		// void xev_timer_run(xev_watcher*, xev_loop*, xev_completion*, uint64_t next_ms, void* userdata, xev_timer_cb cb)
		{&fnTimerRun, "xev_timer_run", &ffi.TypeVoid, []*ffi.Type{p, p, p, &ffi.TypeUint64, p, p}},
		// void xev_timer_cancel(xev_watcher*, xev_loop*, xev_completion* c, xev_completion* c_cancel, void* userdata, xev_timer_cb cb)
		{&fnTimerCancel, "xev_timer_cancel", &ffi.TypeVoid, []*ffi.Type{p, p, p, p, p, p}},
	}
}

// TimerInit initializes a timer watcher.
func TimerInit(w *Watcher) error {
	if err := ensureLoaded(); err != nil {
		return err
	}
	var ret ffi.Arg
	ptr := unsafe.Pointer(w)
	fnTimerInit.Call(&ret, &ptr)
	if int32(ret) != 0 {
		return errors.New("xev_timer_init failed")
	}
	return nil
}

// TimerDeinit releases resources for a timer watcher.
func TimerDeinit(w *Watcher) {
	ptr := unsafe.Pointer(w)
	fnTimerDeinit.Call(nil, &ptr)
}

// TimerRun schedules c to complete delayMs milliseconds after the loop's
// current time. userdata is handed back to cb, which must have the
// signature
//
//	xev_cb_action cb(xev_loop*, xev_completion*, int result, void* userdata)
func TimerRun(w *Watcher, loop *Loop, c *Completion, delayMs uint64, userdata, cb uintptr) {
	wPtr := unsafe.Pointer(w)
	loopPtr := unsafe.Pointer(loop)
	cPtr := unsafe.Pointer(c)
	fnTimerRun.Call(nil, &wPtr, &loopPtr, &cPtr, &delayMs, &userdata, &cb)
}

// TimerCancel cancels the timer tracked by c. The callback of c runs with a
// non-zero result, then cb runs for cCancel.
func TimerCancel(w *Watcher, loop *Loop, c, cCancel *Completion, userdata, cb uintptr) {
	wPtr := unsafe.Pointer(w)
	loopPtr := unsafe.Pointer(loop)
	cPtr := unsafe.Pointer(c)
	cCancelPtr := unsafe.Pointer(cCancel)
	fnTimerCancel.Call(nil, &wPtr, &loopPtr, &cPtr, &cCancelPtr, &userdata, &cb)
}
