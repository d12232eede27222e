/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Base is an event base: a set of registrations dispatched by one loop on
// top of a Scheduler.
//
// All methods are safe for concurrent use. Callbacks only ever run on the
// goroutine inside Run or Loop, one at a time.
type Base struct {
	mu      sync.Mutex
	log     zerolog.Logger
	sched   Scheduler
	owned   bool
	table   *table
	adapter *adapter

	running   bool
	gotBreak  bool
	gotExit   bool
	destroyed bool

	// cancelRun wakes a PollReady blocked inside the running loop.
	cancelRun context.CancelFunc

	// ready tasks received after a break, handled by the next loop.
	backlog []Ready
}

// New creates a base. A scheduler must be supplied with WithScheduler or
// WithSchedulerFactory; otherwise New fails with ErrSchedulerUnavailable.
func New(opts ...Option) (*Base, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.sched != nil && cfg.factory != nil {
		return nil, fmt.Errorf("%w: both scheduler and scheduler factory set", ErrInvalidArgument)
	}

	sched, owned := cfg.sched, false
	if cfg.factory != nil {
		sched, err = cfg.factory()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchedulerUnavailable, err)
		}
		if sched == nil {
			return nil, fmt.Errorf("%w: factory returned nil", ErrSchedulerUnavailable)
		}
		owned = true
	}
	if sched == nil {
		return nil, fmt.Errorf("%w: no scheduler configured", ErrSchedulerUnavailable)
	}

	return &Base{
		log:     cfg.logger,
		sched:   sched,
		owned:   owned,
		table:   newTable(cfg.maxEvents),
		adapter: newAdapter(sched),
	}, nil
}

// Destroy cancels every registration, stops a running loop and releases the
// scheduler if the base owns it. A callback that is already running
// completes, but nothing fires afterwards. Destroy does not wait for the
// loop to return.
func (b *Base) Destroy() error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrDoubleDestroy
	}
	b.destroyed = true
	b.gotBreak = true
	if b.cancelRun != nil {
		b.cancelRun()
	}
	recs := b.table.drain()
	for _, r := range recs {
		b.adapter.disarm(r.id)
	}
	b.backlog = nil
	sched, owned := b.sched, b.owned
	b.mu.Unlock()

	b.log.Debug().Int("cancelled", len(recs)).Msg("base destroyed")

	if !owned {
		return nil
	}
	if c, ok := sched.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close scheduler: %w", err)
		}
	}
	return nil
}

// Register adds a registration of the given kind. Persistent registrations
// stay armed after firing; others fire at most once.
func (b *Base) Register(kind Kind, persistent bool, h Handler) (ID, error) {
	if kind == nil || h == nil {
		return 0, fmt.Errorf("%w: nil kind or handler", ErrInvalidArgument)
	}
	if err := kind.validate(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return 0, ErrInvalidHandle
	}
	return b.registerLocked(&record{kind: kind, persistent: persistent, handler: h})
}

func (b *Base) registerLocked(r *record) (ID, error) {
	id, err := b.table.add(r)
	if err != nil {
		return 0, err
	}
	if err := b.adapter.arm(r); err != nil {
		b.table.remove(id)
		b.log.Error().Err(err).Uint64("id", uint64(id)).Msg("arm failed")
		return 0, err
	}
	b.log.Debug().
		Uint64("id", uint64(id)).
		Stringer("kind", r.kind).
		Bool("persistent", r.persistent).
		Msg("event added")
	return id, nil
}

// RegisterTimer fires h after delay. A persistent timer then fires every
// interval, or every delay when interval is zero.
func (b *Base) RegisterTimer(delay, interval time.Duration, persistent bool, h Handler) (ID, error) {
	return b.Register(KindTimer{Delay: delay, Interval: interval}, persistent, h)
}

// RegisterSignal fires h when the process receives sig.
func (b *Base) RegisterSignal(sig os.Signal, persistent bool, h Handler) (ID, error) {
	return b.Register(KindSignal{Signal: sig}, persistent, h)
}

// RegisterIO fires h when fd becomes ready for interest.
func (b *Base) RegisterIO(fd int, interest Interest, persistent bool, h Handler) (ID, error) {
	return b.Register(KindIO{FD: fd, Interest: interest}, persistent, h)
}

// Once fires h a single time after delay.
func (b *Base) Once(delay time.Duration, h Handler) (ID, error) {
	return b.Register(KindTimer{Delay: delay}, false, h)
}

// Cancel removes a registration. Cancelling an ID that already fired or was
// cancelled is a no-op; an ID this base never issued, or one it uses
// internally for LoopExit, is ErrInvalidHandle.
// Cancelling from inside the registration's own callback prevents any
// further firing.
func (b *Base) Cancel(id ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed || !b.table.issued(id) {
		return ErrInvalidHandle
	}
	r, ok := b.table.lookup(id)
	if !ok {
		return nil
	}
	if r.internal {
		return ErrInvalidHandle
	}
	b.table.remove(id)
	b.adapter.disarm(id)
	b.log.Debug().Uint64("id", uint64(id)).Stringer("kind", r.kind).Msg("event deleted")
	return nil
}

// BreakLoop makes the running loop return after the current callback.
// A later Run starts with the flag cleared.
func (b *Base) BreakLoop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrInvalidHandle
	}
	b.gotBreak = true
	if b.cancelRun != nil {
		b.cancelRun()
	}
	return nil
}

// LoopExit makes the loop return once delay has elapsed, after running the
// callbacks that are ready at that point.
func (b *Base) LoopExit(delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrInvalidHandle
	}
	_, err := b.registerLocked(&record{
		kind:     KindTimer{Delay: delay},
		handler:  HandlerFunc(exitLoop),
		internal: true,
	})
	return err
}

func exitLoop(b *Base, _ Fired) error {
	b.mu.Lock()
	b.gotExit = true
	b.mu.Unlock()
	return nil
}

// GotBreak reports whether the last loop was stopped by BreakLoop.
func (b *Base) GotBreak() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gotBreak
}

// GotExit reports whether the last loop was stopped by LoopExit.
func (b *Base) GotExit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gotExit
}

// Pending reports whether id is registered and will fire again.
func (b *Base) Pending(id ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.table.lookup(id)
	return ok && !r.internal && (r.state == StateArmed || r.persistent)
}

// Lookup returns a snapshot of a live registration.
func (b *Base) Lookup(id ID) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.table.lookup(id)
	if !ok || r.internal {
		return Record{}, false
	}
	return r.snapshot(), true
}

// Len returns the number of live registrations.
func (b *Base) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.user
}

// IDs returns the live registration IDs in ascending order.
func (b *Base) IDs() []ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table.ids()
}

// Now returns the scheduler's current time.
func (b *Base) Now() time.Time {
	return b.sched.Now()
}

// Destroyed reports whether Destroy was called.
func (b *Base) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}
