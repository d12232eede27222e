/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package event implements a libevent-style event base whose readiness
// sources are provided by an injected [Scheduler].
//
// A [Base] owns a table of registrations (timers, signals and file
// descriptor readiness) and a dispatch loop. Each registration is backed by
// exactly one scheduler task at a time; when the task becomes ready the loop
// resolves it back to its registration and invokes the registered
// [Handler] on the goroutine that called [Base.Run].
//
// Basic usage:
//
//	base, err := event.New(event.WithScheduler(sched))
//	if err != nil {
//	    return err
//	}
//	defer base.Destroy()
//
//	base.RegisterTimer(time.Second, 0, true, event.HandlerFunc(func(b *event.Base, ev event.Fired) error {
//	    fmt.Println("tick")
//	    return nil
//	}))
//
//	if err := base.Run(ctx); err != nil {
//	    return err
//	}
//
// Persistent registrations stay armed after each firing until cancelled;
// one-shot registrations fire at most once and their ID becomes invalid
// afterwards. Handlers may register, cancel, break the loop or destroy the
// base from inside a callback.
package event
