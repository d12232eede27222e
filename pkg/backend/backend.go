/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package backend turns a config.Config into an event base running on the
// selected scheduler.
package backend

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/crrow/evbridge/pkg/asyncsched"
	"github.com/crrow/evbridge/pkg/config"
	"github.com/crrow/evbridge/pkg/cxev"
	"github.com/crrow/evbridge/pkg/event"
	"github.com/crrow/evbridge/pkg/xevsched"
)

// New creates the scheduler cfg selects. The caller owns it.
func New(cfg config.Config, log zerolog.Logger) (event.Scheduler, error) {
	log = log.With().Str("backend", string(cfg.Backend)).Logger()
	switch cfg.Backend {
	case config.BackendAsync, "":
		return asyncsched.New(asyncsched.WithLogger(log)), nil
	case config.BackendXev:
		if cfg.LibxevPath != "" {
			if err := cxev.Load(cfg.LibxevPath); err != nil {
				return nil, fmt.Errorf("backend: load %s: %w", cfg.LibxevPath, err)
			}
		}
		s, err := xevsched.New(xevsched.WithLogger(log), xevsched.WithTick(cfg.XevTick))
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, cfg.Backend)
	}
}

// Factory defers New until a base is created.
func Factory(cfg config.Config, log zerolog.Logger) event.SchedulerFactory {
	return func() (event.Scheduler, error) {
		return New(cfg, log)
	}
}

// NewBase creates a base that owns a scheduler built from cfg.
func NewBase(cfg config.Config, log zerolog.Logger, opts ...event.Option) (*event.Base, error) {
	all := []event.Option{
		event.WithSchedulerFactory(Factory(cfg, log)),
		event.WithLogger(log),
		event.WithMaxEvents(cfg.MaxEvents),
	}
	return event.New(append(all, opts...)...)
}
