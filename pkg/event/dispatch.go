/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"context"
	"fmt"
	"runtime/debug"
)

// LoopFlags modify how Loop runs.
type LoopFlags uint8

const (
	// LoopOnce blocks until at least one callback ran, runs whatever else is
	// ready, then returns.
	LoopOnce LoopFlags = 1 << iota

	// LoopNonBlock runs the callbacks that are ready now and returns.
	// The reason is ExitOnce when at least one ran and ExitNothingReady
	// when none was ready.
	LoopNonBlock

	// LoopNoExitOnEmpty keeps the loop waiting when nothing is registered,
	// until BreakLoop, LoopExit, Destroy or context cancellation.
	LoopNoExitOnEmpty
)

// ExitReason tells why Loop returned.
type ExitReason uint8

const (
	ExitNoPendingEvents ExitReason = iota
	ExitGotBreak
	ExitGotExit
	ExitOnce
	ExitDestroyed
	ExitCanceled
	ExitError
	ExitNothingReady
)

func (r ExitReason) String() string {
	switch r {
	case ExitNoPendingEvents:
		return "no pending events"
	case ExitGotBreak:
		return "break"
	case ExitGotExit:
		return "exit"
	case ExitOnce:
		return "once"
	case ExitDestroyed:
		return "destroyed"
	case ExitCanceled:
		return "canceled"
	case ExitError:
		return "error"
	case ExitNothingReady:
		return "nothing ready"
	default:
		return fmt.Sprintf("ExitReason(%d)", uint8(r))
	}
}

// drained is handed to PollReady to collect ready tasks without blocking.
var drained = func() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}()

// Run dispatches callbacks until nothing is registered, the loop is broken
// or exited, the base is destroyed, or ctx is done. It returns nil unless a
// callback faulted, the scheduler failed, or ctx ended the loop.
func (b *Base) Run(ctx context.Context) error {
	_, err := b.Loop(ctx, 0)
	return err
}

// Loop is Run with flags, also reporting why it returned.
func (b *Base) Loop(ctx context.Context, flags LoopFlags) (ExitReason, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ExitDestroyed, ErrInvalidHandle
	}
	if b.running {
		b.mu.Unlock()
		return ExitError, ErrReentrant
	}
	b.running = true
	b.gotBreak, b.gotExit = false, false
	b.cancelRun = cancel
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.cancelRun = nil
		b.mu.Unlock()
	}()

	reason, err := b.dispatch(ctx, runCtx, flags)
	if err != nil {
		b.log.Error().Err(err).Stringer("reason", reason).Msg("loop stopped")
	} else {
		b.log.Debug().Stringer("reason", reason).Msg("loop stopped")
	}
	return reason, err
}

func (b *Base) dispatch(parent, runCtx context.Context, flags LoopFlags) (ExitReason, error) {
	ran := false
	for {
		b.mu.Lock()
		if reason, stop := b.stopLocked(flags, ran); stop {
			b.mu.Unlock()
			return reason, nil
		}
		ready, queued := b.popBacklogLocked()
		b.mu.Unlock()

		if !queued {
			draining := flags&LoopNonBlock != 0 || (flags&LoopOnce != 0 && ran)
			pollCtx := runCtx
			if draining {
				pollCtx = drained
			}

			var err error
			ready, err = b.adapter.waitNext(pollCtx)
			if err != nil {
				b.mu.Lock()
				reason, stop := b.stopLocked(flags, ran)
				b.mu.Unlock()
				switch {
				case stop:
					return reason, nil
				case draining && pollCtx.Err() != nil:
					if !ran {
						return ExitNothingReady, nil
					}
					return ExitOnce, nil
				case parent.Err() != nil:
					return ExitCanceled, parent.Err()
				default:
					return ExitError, fmt.Errorf("%w: %w", ErrSchedulerUnavailable, err)
				}
			}
		}

		b.mu.Lock()
		if b.destroyed {
			b.mu.Unlock()
			continue
		}
		if b.gotBreak || b.gotExit {
			b.backlog = append(b.backlog, ready)
			b.mu.Unlock()
			continue
		}
		id, ok := b.adapter.resolve(ready.Task)
		if !ok {
			b.mu.Unlock()
			continue
		}
		r, ok := b.table.lookup(id)
		if !ok {
			b.mu.Unlock()
			continue
		}
		r.state = StateFiring
		r.fires++
		b.mu.Unlock()

		fault := b.invoke(r, Fired{ID: id, What: ready.What})
		ran = true

		b.mu.Lock()
		err := b.finishLocked(r)
		b.mu.Unlock()

		if fault != nil {
			return ExitError, fault
		}
		if err != nil {
			return ExitError, err
		}
	}
}

// stopLocked decides whether the loop must return before waiting again.
func (b *Base) stopLocked(flags LoopFlags, ran bool) (ExitReason, bool) {
	switch {
	case b.destroyed:
		return ExitDestroyed, true
	case b.gotExit:
		return ExitGotExit, true
	case b.gotBreak:
		return ExitGotBreak, true
	case b.table.len() == 0 && flags&LoopNoExitOnEmpty == 0:
		b.backlog = nil
		if ran && flags&(LoopOnce|LoopNonBlock) != 0 {
			return ExitOnce, true
		}
		return ExitNoPendingEvents, true
	}
	return 0, false
}

func (b *Base) popBacklogLocked() (Ready, bool) {
	if len(b.backlog) == 0 {
		return Ready{}, false
	}
	r := b.backlog[0]
	b.backlog = b.backlog[1:]
	return r, true
}

// invoke runs the handler, turning errors and panics into a CallbackFault.
func (b *Base) invoke(r *record, ev Fired) (fault error) {
	defer func() {
		if p := recover(); p != nil {
			fault = &CallbackFault{ID: ev.ID, Panic: p, Stack: debug.Stack()}
			b.log.Error().Uint64("id", uint64(ev.ID)).Interface("panic", p).Msg("callback panicked")
		}
	}()
	if err := r.handler.OnEvent(b, ev); err != nil {
		b.log.Error().Err(err).Uint64("id", uint64(ev.ID)).Msg("callback failed")
		return &CallbackFault{ID: ev.ID, Err: err}
	}
	return nil
}

// finishLocked re-arms a persistent record after its callback, or removes a
// one-shot one. Records cancelled during the callback are left alone.
func (b *Base) finishLocked(r *record) error {
	if r.state == StateCancelled {
		return nil
	}
	if !r.persistent {
		b.table.remove(r.id)
		b.adapter.disarm(r.id)
		return nil
	}
	r.state = StateArmed
	if err := b.adapter.rearm(r); err != nil {
		b.table.remove(r.id)
		b.adapter.disarm(r.id)
		b.log.Error().Err(err).Uint64("id", uint64(r.id)).Msg("re-arm failed")
		return err
	}
	b.log.Debug().Uint64("id", uint64(r.id)).Time("deadline", r.deadline).Msg("event re-armed")
	return nil
}
