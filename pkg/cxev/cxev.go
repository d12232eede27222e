/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package cxev contains low-level bindings to the libxev C API, loaded at
// runtime through libffi. No cgo is involved: the library is opened with
// dlopen the first time a binding is used.
//
// Only the loop and timer APIs are bound. Most users want package xev.
package cxev

// Sizes of the opaque libxev structs, as published in xev.h. The Go types
// below only reserve storage; libxev owns their layout.
const (
	SizeofLoop       = 512
	SizeofCompletion = 320
	SizeofWatcher    = 256
)

// Loop is the opaque event loop type.
type Loop struct {
	_ [SizeofLoop / 8]uint64
}

// Completion tracks one in-flight operation. It must stay at a fixed
// address until its callback returned Disarm.
type Completion struct {
	_ [SizeofCompletion / 8]uint64
}

// Watcher is the storage shared by timers and other watcher kinds.
type Watcher struct {
	_ [SizeofWatcher / 8]uint64
}

// RunMode specifies how the event loop should run.
type RunMode int32

const (
	RunNoWait    RunMode = 0
	RunOnce      RunMode = 1
	RunUntilDone RunMode = 2
)

// CbAction is the return value from callbacks indicating what to do next.
type CbAction int32

const (
	Disarm CbAction = 0
	Rearm  CbAction = 1
)
