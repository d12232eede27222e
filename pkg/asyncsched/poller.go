/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package asyncsched

import "github.com/crrow/evbridge/pkg/event"

// ioPoller reports file descriptor readiness through the callback given at
// construction. The callback is invoked without any poller lock held.
type ioPoller interface {
	add(id event.Task, fd int, interest event.Interest) error
	remove(id event.Task)
	close() error
}
