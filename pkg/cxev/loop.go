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
	fnLoopInit      ffi.Fun
	fnLoopDeinit    ffi.Fun
	fnLoopRun       ffi.Fun
	fnLoopNow       ffi.Fun
	fnLoopUpdateNow ffi.Fun
)

// loopBindings lists the loop functions.
//
//	C type          Go type           ffi.Type
//	-------         -------           --------
//	int             int32             TypeSint32
//	int64_t         int64             TypeSint64
//	uint64_t        uint64            TypeUint64
//	void*           unsafe.Pointer    TypePointer
//	void            (no return)       TypeVoid
func loopBindings() []binding {
	return []binding{
		// int xev_loop_init(xev_loop* loop)
		{&fnLoopInit, "xev_loop_init", &ffi.TypeSint32, []*ffi.Type{&ffi.TypePointer}},
		// void xev_loop_deinit(xev_loop* loop)
		{&fnLoopDeinit, "xev_loop_deinit", &ffi.TypeVoid, []*ffi.Type{&ffi.TypePointer}},
		// int xev_loop_run(xev_loop* loop, xev_run_mode_t mode)
		{&fnLoopRun, "xev_loop_run", &ffi.TypeSint32, []*ffi.Type{&ffi.TypePointer, &ffi.TypeSint32}},
		// int64_t xev_loop_now(xev_loop* loop)
		{&fnLoopNow, "xev_loop_now", &ffi.TypeSint64, []*ffi.Type{&ffi.TypePointer}},
		// void xev_loop_update_now(xev_loop* loop)
		{&fnLoopUpdateNow, "xev_loop_update_now", &ffi.TypeVoid, []*ffi.Type{&ffi.TypePointer}},
	}
}

// LoopInit initializes an event loop.
//
// Arguments are passed to Call by pointer because libffi reads them from
// known memory locations:
//
//	var ret ffi.Arg
//	ptr := unsafe.Pointer(loop)
//	fnLoopInit.Call(&ret, &ptr)
func LoopInit(loop *Loop) error {
	if err := ensureLoaded(); err != nil {
		return err
	}
	var ret ffi.Arg
	ptr := unsafe.Pointer(loop)
	fnLoopInit.Call(&ret, &ptr)
	if int32(ret) != 0 {
		return errors.New("xev_loop_init failed")
	}
	return nil
}

// LoopDeinit releases resources for an event loop.
func LoopDeinit(loop *Loop) {
	ptr := unsafe.Pointer(loop)
	fnLoopDeinit.Call(nil, &ptr)
}

// LoopRun runs the event loop with the specified mode.
func LoopRun(loop *Loop, mode RunMode) error {
	var ret ffi.Arg
	ptr := unsafe.Pointer(loop)
	m := int32(mode)
	fnLoopRun.Call(&ret, &ptr, &m)
	if int32(ret) != 0 {
		return errors.New("xev_loop_run failed")
	}
	return nil
}

// LoopNow returns the loop's cached timestamp in milliseconds.
func LoopNow(loop *Loop) int64 {
	var ret int64
	ptr := unsafe.Pointer(loop)
	fnLoopNow.Call(&ret, &ptr)
	return ret
}

// LoopUpdateNow refreshes the loop's cached timestamp.
func LoopUpdateNow(loop *Loop) {
	ptr := unsafe.Pointer(loop)
	fnLoopUpdateNow.Call(nil, &ptr)
}
