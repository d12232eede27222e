/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"fmt"

	"github.com/rs/zerolog"
)

type options struct {
	sched     Scheduler
	factory   SchedulerFactory
	logger    zerolog.Logger
	maxEvents int
}

// Option configures a Base.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(o *options) error { return f(o) }

// WithScheduler runs the base on an existing scheduler. The base never
// closes it; several bases must not share one scheduler.
func WithScheduler(s Scheduler) Option {
	return optionFunc(func(o *options) error {
		if s == nil {
			return fmt.Errorf("%w: nil scheduler", ErrInvalidArgument)
		}
		o.sched = s
		return nil
	})
}

// WithSchedulerFactory creates the scheduler when the base is created.
// The base owns the result and closes it on Destroy if it implements
// io.Closer.
func WithSchedulerFactory(f SchedulerFactory) Option {
	return optionFunc(func(o *options) error {
		if f == nil {
			return fmt.Errorf("%w: nil scheduler factory", ErrInvalidArgument)
		}
		o.factory = f
		return nil
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return optionFunc(func(o *options) error {
		o.logger = l
		return nil
	})
}

// WithMaxEvents caps the number of live registrations. Zero means no cap.
func WithMaxEvents(n int) Option {
	return optionFunc(func(o *options) error {
		if n < 0 {
			return fmt.Errorf("%w: max events %d", ErrInvalidArgument, n)
		}
		o.maxEvents = n
		return nil
	})
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
