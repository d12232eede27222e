/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"context"
	"errors"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

var errSpawnFailed = errors.New("spawn failed")

type fakeIOWatch struct {
	fd       int
	interest Interest
}

// fakeScheduler is a deterministic scheduler with a virtual clock. Polling
// with nothing ready advances the clock to the earliest timer; ties are
// broken by task number.
type fakeScheduler struct {
	mu      sync.Mutex
	now     time.Time
	last    Task
	timers  map[Task]time.Time
	signals map[Task]os.Signal
	ios     map[Task]fakeIOWatch
	pending map[os.Signal]int
	live    map[Task]struct{}
	ready   []Ready
	notify  chan struct{}

	spawnErr error
	closed   int

	// beforeReturn runs right before PollReady hands out a task.
	beforeReturn func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		now:     time.Unix(1_700_000_000, 0),
		timers:  make(map[Task]time.Time),
		signals: make(map[Task]os.Signal),
		ios:     make(map[Task]fakeIOWatch),
		pending: make(map[os.Signal]int),
		live:    make(map[Task]struct{}),
		notify:  make(chan struct{}),
	}
}

func (f *fakeScheduler) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeScheduler) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeScheduler) failSpawn(err error) {
	f.mu.Lock()
	f.spawnErr = err
	f.mu.Unlock()
}

func (f *fakeScheduler) newTaskLocked() (Task, error) {
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	f.last++
	f.live[f.last] = struct{}{}
	return f.last, nil
}

func (f *fakeScheduler) SpawnTimer(deadline time.Time) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.newTaskLocked()
	if err != nil {
		return 0, err
	}
	f.timers[t] = deadline
	f.wakeLocked()
	return t, nil
}

func (f *fakeScheduler) SpawnSignalWatch(sig os.Signal) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.newTaskLocked()
	if err != nil {
		return 0, err
	}
	if f.pending[sig] > 0 {
		f.pending[sig]--
		f.ready = append(f.ready, Ready{Task: t, What: WhatSignal})
		f.wakeLocked()
		return t, nil
	}
	f.signals[t] = sig
	return t, nil
}

func (f *fakeScheduler) SpawnIOWatch(fd int, interest Interest) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.newTaskLocked()
	if err != nil {
		return 0, err
	}
	f.ios[t] = fakeIOWatch{fd: fd, interest: interest}
	return t, nil
}

// Cancel forgets a task. A task that is already in the ready list stays
// there, like a completion that raced with the cancellation.
func (f *fakeScheduler) Cancel(t Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, t)
	delete(f.timers, t)
	delete(f.signals, t)
	delete(f.ios, t)
}

func (f *fakeScheduler) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Raise delivers sig to every watch, or keeps it pending for the next one.
func (f *fakeScheduler) Raise(sig os.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delivered := false
	for _, t := range sortedTasks(f.signals) {
		if f.signals[t] == sig {
			delete(f.signals, t)
			f.ready = append(f.ready, Ready{Task: t, What: WhatSignal})
			delivered = true
		}
	}
	if !delivered {
		f.pending[sig]++
	}
	f.wakeLocked()
}

// MakeReady completes every watch on fd interested in what.
func (f *fakeScheduler) MakeReady(fd int, what What) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range sortedTasks(f.ios) {
		w := f.ios[t]
		if w.fd != fd {
			continue
		}
		got := What(0)
		if what&WhatRead != 0 && w.interest&Readable != 0 {
			got |= WhatRead
		}
		if what&WhatWrite != 0 && w.interest&Writable != 0 {
			got |= WhatWrite
		}
		if got != 0 {
			delete(f.ios, t)
			f.ready = append(f.ready, Ready{Task: t, What: got})
		}
	}
	f.wakeLocked()
}

func (f *fakeScheduler) outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeScheduler) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeScheduler) wakeLocked() {
	close(f.notify)
	f.notify = make(chan struct{})
}

func (f *fakeScheduler) PollReady(ctx context.Context) (Ready, error) {
	for {
		f.mu.Lock()
		if r, ok := f.nextLocked(ctx.Err() == nil); ok {
			hook := f.beforeReturn
			f.mu.Unlock()
			if hook != nil {
				hook()
			}
			return r, nil
		}
		if err := ctx.Err(); err != nil {
			f.mu.Unlock()
			return Ready{}, err
		}
		ch := f.notify
		f.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
		}
	}
}

// nextLocked pops a ready task, firing the earliest timer. The clock only
// moves forward when advance is set.
func (f *fakeScheduler) nextLocked(advance bool) (Ready, bool) {
	if len(f.ready) > 0 {
		r := f.ready[0]
		f.ready = f.ready[1:]
		return r, true
	}
	var (
		best   Task
		bestDL time.Time
	)
	for t, dl := range f.timers {
		if best == 0 || dl.Before(bestDL) || (dl.Equal(bestDL) && t < best) {
			best, bestDL = t, dl
		}
	}
	if best == 0 {
		return Ready{}, false
	}
	if bestDL.After(f.now) {
		if !advance {
			return Ready{}, false
		}
		f.now = bestDL
	}
	delete(f.timers, best)
	return Ready{Task: best, What: WhatTimeout}, true
}

func sortedTasks[V any](m map[Task]V) []Task {
	return slices.Sorted(maps.Keys(m))
}
