/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Command hello runs the classic hello demo on an event base: a one second
// "forever" timer, a 100ms timer that removes itself after 31 firings, a
// two second greeting and a six second interval counter. The loop is run in
// bounded rounds with LoopExit; -forever keeps it running until Ctrl-C.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"github.com/crrow/evbridge/pkg/backend"
	"github.com/crrow/evbridge/pkg/config"
	"github.com/crrow/evbridge/pkg/event"
)

const temporaryLimit = 31

func main() {
	rounds := flag.Int("rounds", 3, "number of bounded loop rounds")
	round := flag.Duration("round", 5*time.Second, "length of each round")
	forever := flag.Bool("forever", false, "keep dispatching after the rounds until interrupted")
	backendName := flag.String("backend", "", "scheduler backend (async or xev); overrides EVBRIDGE_BACKEND")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if *backendName != "" {
		if cfg.Backend, err = config.ParseBackend(*backendName); err != nil {
			fatal(err)
		}
	}
	log := cfg.Logger(os.Stderr)

	if err := run(cfg, log, *rounds, *round, *forever); err != nil {
		fatal(err)
	}
}

func run(cfg config.Config, log zerolog.Logger, rounds int, round time.Duration, forever bool) error {
	fmt.Println("Hello, world!")

	base, err := backend.NewBase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := base.Destroy(); err != nil {
			log.Error().Err(err).Msg("destroy base")
		}
	}()

	if err := install(base); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for i := 0; i < rounds; i++ {
		if err := base.LoopExit(round); err != nil {
			return err
		}
		start := time.Now()
		err := base.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Ran event loop for %s\n", time.Since(start).Round(time.Millisecond))
	}
	if !forever {
		return nil
	}
	if err := base.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// install registers the demo events.
func install(base *event.Base) error {
	_, err := base.RegisterTimer(time.Second, 0, true, event.HandlerFunc(func(*event.Base, event.Fired) error {
		fmt.Println("hi from forever callback")
		return nil
	}))
	if err != nil {
		return err
	}

	counter := 0
	_, err = base.RegisterTimer(100*time.Millisecond, 0, true, event.HandlerFunc(func(b *event.Base, ev event.Fired) error {
		fmt.Println("hi from temporary callback")
		counter++
		if counter >= temporaryLimit {
			return b.Cancel(ev.ID)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	_, err = base.RegisterTimer(2*time.Second, 0, true, event.HandlerFunc(func(*event.Base, event.Fired) error {
		fmt.Println("Go callback says hello")
		return nil
	}))
	if err != nil {
		return err
	}

	intervals := 0
	_, err = base.RegisterTimer(6*time.Second, 0, true, event.HandlerFunc(func(_ *event.Base, ev event.Fired) error {
		intervals++
		fmt.Printf("interval count: %d, what: %s\n", intervals, ev.What)
		return nil
	}))
	return err
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "hello: %v\n", err)
	os.Exit(1)
}
