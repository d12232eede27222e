/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package xev is a small Go API over the libxev loop and timer bindings in
// package cxev: error returns instead of codes, time.Duration instead of
// milliseconds, and handler interfaces instead of raw callbacks.
//
//	loop, _ := xev.NewLoop()
//	defer loop.Close()
//
//	timer, _ := xev.NewTimer()
//	defer timer.Close()
//
//	timer.RunFunc(loop, 100*time.Millisecond, func(t *xev.Timer, err error) xev.Action {
//	    fmt.Println("Timer fired!")
//	    return xev.Stop
//	})
//
//	loop.Run()
//
// A Loop is not safe for concurrent use; drive it and its timers from one
// goroutine.
package xev

import (
	"time"

	"github.com/crrow/evbridge/pkg/cxev"
)

// Available reports whether libxev can be loaded.
func Available() bool {
	return cxev.Loaded()
}

// Loop wraps the libxev event loop.
type Loop struct {
	inner  cxev.Loop
	closed bool
}

// NewLoop creates and initializes a new event loop.
func NewLoop() (*Loop, error) {
	l := &Loop{}
	if err := cxev.LoopInit(&l.inner); err != nil {
		return nil, err
	}
	return l, nil
}

// Close releases the loop. Calling it twice is a no-op.
func (l *Loop) Close() {
	if l.closed {
		return
	}
	l.closed = true
	cxev.LoopDeinit(&l.inner)
}

// Run processes events until no completions remain.
func (l *Loop) Run() error {
	return cxev.LoopRun(&l.inner, cxev.RunUntilDone)
}

// RunOnce blocks until at least one completion fired and returns.
func (l *Loop) RunOnce() error {
	return cxev.LoopRun(&l.inner, cxev.RunOnce)
}

// Poll processes completions that are ready without blocking.
func (l *Loop) Poll() error {
	return cxev.LoopRun(&l.inner, cxev.RunNoWait)
}

// Now returns the loop's cached timestamp.
func (l *Loop) Now() time.Duration {
	return time.Duration(cxev.LoopNow(&l.inner)) * time.Millisecond
}

// UpdateNow refreshes the cached timestamp.
func (l *Loop) UpdateNow() {
	cxev.LoopUpdateNow(&l.inner)
}
