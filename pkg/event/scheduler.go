/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"context"
	"os"
	"time"
)

// Task is an opaque token for one unit of work spawned on a Scheduler.
type Task uint64

// Ready reports a task that completed and which condition completed it.
type Ready struct {
	Task Task
	What What
}

// Scheduler is the reactor a Base runs on.
//
// Every spawned task completes at most once. Cancel must be called for
// every task the caller spawned, whether or not it completed, so the
// scheduler can release its resources; cancelling a finished or unknown
// task is a silent no-op.
//
// PollReady blocks until a task is ready or ctx is done. Tasks that are
// already ready are returned even when ctx is done, which lets callers
// drain without blocking by passing a cancelled context. Ordering among
// simultaneously ready tasks is up to the implementation.
//
// A Base calls PollReady from one goroutine at a time. Spawn and Cancel
// may be called from any goroutine. If the scheduler implements io.Closer
// and was created through WithSchedulerFactory, the Base closes it on
// Destroy.
type Scheduler interface {
	Now() time.Time
	SpawnTimer(deadline time.Time) (Task, error)
	SpawnSignalWatch(sig os.Signal) (Task, error)
	SpawnIOWatch(fd int, interest Interest) (Task, error)
	Cancel(t Task)
	PollReady(ctx context.Context) (Ready, error)
}

// SchedulerFactory creates a Scheduler owned by the Base.
type SchedulerFactory func() (Scheduler, error)
