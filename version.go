/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

// Package evbridge runs libevent-style callback registration (timers,
// signals, I/O readiness) on top of an injected reactor.
//
// The core lives in [github.com/crrow/evbridge/pkg/event]. Reactors are
// plugged in through the event.Scheduler interface; see pkg/asyncsched for
// the default backend and pkg/xevsched for the libxev one.
package evbridge

// Version is the semantic version of the module.
const Version = "0.1.0"
