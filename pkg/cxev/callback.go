/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Go functions cannot be handed to libxev directly. A single libffi closure
// provides a C-callable address; libxev passes it our userdata, which is an
// ID into callbackRegistry, and the closure forwards to the Go callback
// stored under that ID.
//
//	libxev ──cb ptr──▶ ffi.Closure ──▶ timerTrampoline ──userdata──▶ callbackRegistry ──▶ TimerCallback

package cxev

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/jupiterrider/ffi"
)

// TimerCallback is invoked when a timer (or timer cancellation) completes.
// result is 0 on success and non-zero when the operation failed or was
// cancelled. Return Rearm to run the same completion again.
type TimerCallback func(loop *Loop, c *Completion, result int32, userdata uintptr) CbAction

var (
	callbackRegistry sync.Map // map[uintptr]TimerCallback

	// monotonic, so a stale userdata can never reach a newer callback
	callbackCounter atomic.Uint64
)

var (
	closureOnce      sync.Once
	timerClosure     *ffi.Closure
	timerClosureCode unsafe.Pointer
	timerCif         ffi.Cif
	timerCallbackPtr uintptr
)

// initTimerClosure allocates the closure once; it lives for the process.
func initTimerClosure() {
	closureOnce.Do(func() {
		timerClosure = ffi.ClosureAlloc(unsafe.Sizeof(ffi.Closure{}), &timerClosureCode)

		// int32_t cb(void* loop, void* completion, int32_t result, void* userdata)
		if status := ffi.PrepCif(&timerCif, ffi.DefaultAbi, 4,
			&ffi.TypeSint32,
			&ffi.TypePointer,
			&ffi.TypePointer,
			&ffi.TypeSint32,
			&ffi.TypePointer,
		); status != ffi.OK {
			panic("cxev: failed to prepare timer callback CIF")
		}

		fn := ffi.NewCallback(timerTrampoline)
		if status := ffi.PrepClosureLoc(timerClosure, &timerCif, fn, nil, timerClosureCode); status != ffi.OK {
			panic("cxev: failed to prepare timer closure")
		}
		timerCallbackPtr = uintptr(timerClosureCode)
	})
}

// timerTrampoline receives each C argument through a pointer to it.
func timerTrampoline(cif *ffi.Cif, ret unsafe.Pointer, args *unsafe.Pointer, userData unsafe.Pointer) uintptr {
	arguments := unsafe.Slice(args, 4)
	loop := *(*unsafe.Pointer)(arguments[0])
	completion := *(*unsafe.Pointer)(arguments[1])
	result := *(*int32)(arguments[2])
	userdata := *(*uintptr)(arguments[3])

	action := int32(Disarm)
	if cb, ok := callbackRegistry.Load(userdata); ok {
		action = int32(cb.(TimerCallback)((*Loop)(loop), (*Completion)(completion), result, userdata))
	}
	*(*int32)(ret) = action
	return 0
}

// RegisterCallback stores cb and returns the userdata to pass to libxev.
func RegisterCallback(cb TimerCallback) uintptr {
	id := uintptr(callbackCounter.Add(1))
	callbackRegistry.Store(id, cb)
	return id
}

// UnregisterCallback forgets a callback. Call it once the completion is
// disarmed for good.
func UnregisterCallback(id uintptr) {
	callbackRegistry.Delete(id)
}

// CallbackCount returns the number of registered callbacks.
func CallbackCount() int {
	n := 0
	callbackRegistry.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// TimerCallbackPtr returns the C function pointer shared by every timer.
func TimerCallbackPtr() uintptr {
	initTimerClosure()
	return timerCallbackPtr
}

// TimerRunWithCallback registers cb and starts the timer. It returns the
// callback ID for UnregisterCallback.
func TimerRunWithCallback(w *Watcher, loop *Loop, c *Completion, delayMs uint64, cb TimerCallback) uintptr {
	id := RegisterCallback(cb)
	TimerRun(w, loop, c, delayMs, id, TimerCallbackPtr())
	return id
}

// TimerCancelWithCallback cancels the timer tracked by c and registers cb
// for the cancellation completion. It returns the callback ID.
func TimerCancelWithCallback(w *Watcher, loop *Loop, c, cCancel *Completion, cb TimerCallback) uintptr {
	id := RegisterCallback(cb)
	TimerCancel(w, loop, c, cCancel, id, TimerCallbackPtr())
	return id
}
