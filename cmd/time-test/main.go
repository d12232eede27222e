//go:build unix

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Command time-test exercises timers and signals together. A long timer
// fires every -long (re-added from its callback unless -p makes it
// persistent). A SIGALRM raised every second arms a zero-delay timer, which
// re-arms the signal watch and raises the next alarm. Ctrl-C breaks the loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/crrow/evbridge/pkg/backend"
	"github.com/crrow/evbridge/pkg/config"
	"github.com/crrow/evbridge/pkg/event"
)

type timeTest struct {
	log        zerolog.Logger
	persistent bool
	long       time.Duration

	lastLong  time.Time
	lastAlarm time.Time
	alarm     *time.Timer
}

func main() {
	persistent := flag.Bool("p", false, "make the long timer persistent")
	long := flag.Duration("long", 10*time.Second, "long timer period")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	// SIGALRM needs a backend with signal support.
	cfg.Backend = config.BackendAsync
	log := cfg.Logger(os.Stderr)

	base, err := backend.NewBase(cfg, log)
	if err != nil {
		fatal(err)
	}

	tt := &timeTest{log: log, persistent: *persistent, long: *long}
	if err := tt.install(base); err != nil {
		fatal(err)
	}

	runErr := base.Run(context.Background())
	if tt.alarm != nil {
		tt.alarm.Stop()
	}
	if err := base.Destroy(); err != nil {
		log.Error().Err(err).Msg("destroy base")
	}
	if runErr != nil {
		fatal(runErr)
	}
}

func (tt *timeTest) install(base *event.Base) error {
	if _, err := base.RegisterTimer(tt.long, 0, tt.persistent, event.HandlerFunc(tt.onLong)); err != nil {
		return err
	}
	if _, err := base.RegisterSignal(unix.SIGALRM, false, event.HandlerFunc(tt.onAlarm)); err != nil {
		return err
	}
	if _, err := base.RegisterSignal(os.Interrupt, false, event.HandlerFunc(func(b *event.Base, _ event.Fired) error {
		fmt.Println("interrupted")
		return b.BreakLoop()
	})); err != nil {
		return err
	}

	tt.lastLong = time.Now()
	tt.raiseAlarm()
	return nil
}

func (tt *timeTest) onLong(b *event.Base, ev event.Fired) error {
	now := time.Now()
	fmt.Printf("long_timeout_cb called at %d: %.3f seconds elapsed.\n", now.Unix(), now.Sub(tt.lastLong).Seconds())
	tt.lastLong = now
	if tt.persistent {
		return nil
	}
	_, err := b.RegisterTimer(tt.long, 0, false, event.HandlerFunc(tt.onLong))
	return err
}

func (tt *timeTest) onAlarm(b *event.Base, _ event.Fired) error {
	tt.lastAlarm = time.Now()
	fmt.Printf("sigalrm_cb called at %d\n", tt.lastAlarm.Unix())
	_, err := b.Once(0, event.HandlerFunc(tt.onShort))
	return err
}

func (tt *timeTest) onShort(b *event.Base, _ event.Fired) error {
	now := time.Now()
	fmt.Printf("short_timeout_cb called at %d: %.3f seconds elapsed.\n", now.Unix(), now.Sub(tt.lastAlarm).Seconds())
	if _, err := b.RegisterSignal(unix.SIGALRM, false, event.HandlerFunc(tt.onAlarm)); err != nil {
		return err
	}
	tt.raiseAlarm()
	return nil
}

// raiseAlarm sends SIGALRM to this process after one second.
func (tt *timeTest) raiseAlarm() {
	tt.alarm = time.AfterFunc(time.Second, func() {
		if err := unix.Kill(os.Getpid(), unix.SIGALRM); err != nil {
			tt.log.Error().Err(err).Msg("raise SIGALRM")
		}
	})
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "time-test: %v\n", err)
	os.Exit(1)
}
