/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"context"
	"fmt"
	"time"
)

// adapter keeps the one-to-one mapping between live records and scheduler
// tasks. Callers hold the base lock, except for waitNext.
type adapter struct {
	sched  Scheduler
	byID   map[ID]Task
	byTask map[Task]ID
}

func newAdapter(s Scheduler) *adapter {
	return &adapter{
		sched:  s,
		byID:   make(map[ID]Task),
		byTask: make(map[Task]ID),
	}
}

// arm spawns the first task for r.
func (a *adapter) arm(r *record) error {
	if k, ok := r.kind.(KindTimer); ok {
		r.deadline = a.sched.Now().Add(k.Delay)
	}
	task, err := a.spawn(r)
	if err != nil {
		return err
	}
	a.bind(r.id, task)
	return nil
}

// rearm spawns the next task for a persistent record that just fired and
// only then releases the fired one, so signal subscriptions are never
// dropped in between.
func (a *adapter) rearm(r *record) error {
	if k, ok := r.kind.(KindTimer); ok {
		r.deadline = nextDeadline(r.deadline, a.sched.Now(), k.period())
	}
	task, err := a.spawn(r)
	if err != nil {
		return err
	}
	if old, ok := a.byID[r.id]; ok {
		delete(a.byTask, old)
		a.sched.Cancel(old)
	}
	a.bind(r.id, task)
	return nil
}

// nextDeadline keeps a fixed rate measured from the previous deadline.
// When the loop fell behind by a whole period it restarts from now instead
// of firing a burst of late callbacks.
func nextDeadline(prev, now time.Time, period time.Duration) time.Time {
	next := prev.Add(period)
	if !next.After(now) {
		next = now.Add(period)
	}
	return next
}

func (a *adapter) spawn(r *record) (Task, error) {
	var (
		task Task
		err  error
	)
	switch k := r.kind.(type) {
	case KindTimer:
		task, err = a.sched.SpawnTimer(r.deadline)
	case KindSignal:
		task, err = a.sched.SpawnSignalWatch(k.Signal)
	case KindIO:
		task, err = a.sched.SpawnIOWatch(k.FD, k.Interest)
	default:
		return 0, fmt.Errorf("%w: unknown kind %T", ErrInvalidArgument, r.kind)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: spawn %s: %w", ErrSchedulerUnavailable, r.kind, err)
	}
	return task, nil
}

func (a *adapter) bind(id ID, task Task) {
	a.byID[id] = task
	a.byTask[task] = id
}

// disarm cancels the task of id and forgets it.
func (a *adapter) disarm(id ID) {
	task, ok := a.byID[id]
	if !ok {
		return
	}
	delete(a.byID, id)
	delete(a.byTask, task)
	a.sched.Cancel(task)
}

// resolve maps a ready task back to its record ID. The ID keeps its task
// until the record is re-armed or disarmed. A task with no mapping lost a
// race against Cancel and is dropped.
func (a *adapter) resolve(task Task) (ID, bool) {
	id, ok := a.byTask[task]
	if !ok {
		return 0, false
	}
	delete(a.byTask, task)
	return id, true
}

func (a *adapter) waitNext(ctx context.Context) (Ready, error) {
	return a.sched.PollReady(ctx)
}
