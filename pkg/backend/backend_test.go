/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crrow/evbridge/pkg/asyncsched"
	"github.com/crrow/evbridge/pkg/config"
	"github.com/crrow/evbridge/pkg/event"
	"github.com/crrow/evbridge/pkg/xev"
)

func TestNewAsync(t *testing.T) {
	s, err := New(config.Default(), zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &asyncsched.Scheduler{}, s)
	require.NoError(t, s.(*asyncsched.Scheduler).Close())
}

func TestNewUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "kqueue"
	_, err := New(cfg, zerolog.Nop())
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestNewXevMissingLibrary(t *testing.T) {
	if xev.Available() {
		t.Skip("libxev already loaded")
	}
	cfg := config.Default()
	cfg.Backend = config.BackendXev
	cfg.LibxevPath = filepath.Join(t.TempDir(), "libxev-missing.so")
	_, err := New(cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestNewBase(t *testing.T) {
	cfg := config.Default()
	cfg.MaxEvents = 1
	base, err := NewBase(cfg, zerolog.Nop())
	require.NoError(t, err)

	fired := 0
	_, err = base.RegisterTimer(time.Millisecond, 0, false, event.HandlerFunc(func(*event.Base, event.Fired) error {
		fired++
		return nil
	}))
	require.NoError(t, err)
	_, err = base.RegisterTimer(time.Millisecond, 0, false, event.HandlerFunc(func(*event.Base, event.Fired) error { return nil }))
	require.ErrorIs(t, err, event.ErrResourceExhausted)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, base.Run(ctx))
	assert.Equal(t, 1, fired)
	require.NoError(t, base.Destroy())
}
