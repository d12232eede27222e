/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package asyncsched

import (
	"os"
	"os/signal"

	"github.com/crrow/evbridge/pkg/event"
)

// signalHub subscribes to one signal for as long as any task references it.
// Every armed watch receives a delivery; signals that arrive while nothing
// is armed are kept and handed to the next watches, one each.
type signalHub struct {
	s       *Scheduler
	sig     os.Signal
	ch      chan os.Signal
	stop    chan struct{}
	armed   map[event.Task]struct{}
	refs    int
	pending int
}

func newSignalHub(s *Scheduler, sig os.Signal) *signalHub {
	h := &signalHub{
		s:     s,
		sig:   sig,
		ch:    make(chan os.Signal, 1),
		stop:  make(chan struct{}),
		armed: make(map[event.Task]struct{}),
	}
	signal.Notify(h.ch, sig)
	go h.run()
	return h
}

func (h *signalHub) run() {
	for {
		select {
		case <-h.ch:
			h.deliver()
		case <-h.stop:
			return
		}
	}
}

func (h *signalHub) deliver() {
	h.s.mu.Lock()
	if len(h.armed) == 0 {
		h.pending++
		h.s.mu.Unlock()
		return
	}
	ids := make([]event.Task, 0, len(h.armed))
	for id := range h.armed {
		ids = append(ids, id)
	}
	clear(h.armed)
	h.s.mu.Unlock()

	h.s.log.Debug().Stringer("signal", h.sig).Int("watchers", len(ids)).Msg("signal caught")
	for _, id := range ids {
		h.s.post(id, event.WhatSignal)
	}
}

// watchLocked adds a task. It reports true when a pending signal was
// consumed and the task must be completed right away.
func (h *signalHub) watchLocked(id event.Task) bool {
	h.refs++
	if h.pending > 0 {
		h.pending--
		return true
	}
	h.armed[id] = struct{}{}
	return false
}

// releaseLocked drops a task and reports whether the hub is now unused and
// has been stopped.
func (h *signalHub) releaseLocked(id event.Task) bool {
	delete(h.armed, id)
	h.refs--
	if h.refs > 0 {
		return false
	}
	h.stopLocked()
	return true
}

func (h *signalHub) stopLocked() {
	select {
	case <-h.stop:
		return
	default:
	}
	signal.Stop(h.ch)
	close(h.stop)
}
