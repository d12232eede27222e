//go:build unix

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package asyncsched

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/crrow/evbridge/pkg/event"
)

type ioWatch struct {
	fd       int
	interest event.Interest
}

// pollPoller waits for readiness with poll(2) on its own goroutine. A
// self-pipe interrupts the wait whenever the watch set changes. Every watch
// completes at most once and is removed when it does.
type pollPoller struct {
	log     zerolog.Logger
	onReady func(event.Task, event.What)
	wakeR   int
	wakeW   int
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	watches map[event.Task]ioWatch
}

func newIOPoller(onReady func(event.Task, event.What), log zerolog.Logger) (ioPoller, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, err
		}
	}
	p := &pollPoller{
		log:     log,
		onReady: onReady,
		wakeR:   fds[0],
		wakeW:   fds[1],
		done:    make(chan struct{}),
		watches: make(map[event.Task]ioWatch),
	}
	go p.run()
	return p, nil
}

func (p *pollPoller) add(id event.Task, fd int, interest event.Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.watches[id] = ioWatch{fd: fd, interest: interest}
	p.wakeup()
	return nil
}

func (p *pollPoller) remove(id event.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.watches[id]; !ok {
		return
	}
	delete(p.watches, id)
	p.wakeup()
}

func (p *pollPoller) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	clear(p.watches)
	p.wakeup()
	p.mu.Unlock()

	<-p.done
	return errors.Join(unix.Close(p.wakeR), unix.Close(p.wakeW))
}

func (p *pollPoller) wakeup() {
	// EAGAIN means a wake-up is already pending.
	_, _ = unix.Write(p.wakeW, []byte{1})
}

func (p *pollPoller) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *pollPoller) run() {
	defer close(p.done)

	var (
		fds []unix.PollFd
		ids []event.Task
	)
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		fds = append(fds[:0], unix.PollFd{Fd: int32(p.wakeR), Events: unix.POLLIN})
		ids = append(ids[:0], 0)
		for id, w := range p.watches {
			var events int16
			if w.interest&event.Readable != 0 {
				events |= unix.POLLIN
			}
			if w.interest&event.Writable != 0 {
				events |= unix.POLLOUT
			}
			fds = append(fds, unix.PollFd{Fd: int32(w.fd), Events: events})
			ids = append(ids, id)
		}
		p.mu.Unlock()

		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			p.log.Error().Err(err).Msg("poll failed")
			return
		}
		if fds[0].Revents != 0 {
			p.drain()
		}

		type hit struct {
			id   event.Task
			what event.What
		}
		var hits []hit
		p.mu.Lock()
		for i := 1; i < len(fds); i++ {
			if fds[i].Revents == 0 {
				continue
			}
			w, ok := p.watches[ids[i]]
			if !ok {
				continue
			}
			if what := readiness(fds[i].Revents, w.interest); what != 0 {
				delete(p.watches, ids[i])
				hits = append(hits, hit{ids[i], what})
			}
		}
		p.mu.Unlock()

		for _, h := range hits {
			p.onReady(h.id, h.what)
		}
	}
}

// readiness maps poll results to the conditions the watch asked for.
// Errors and hang-ups wake every requested direction.
func readiness(revents int16, interest event.Interest) event.What {
	const fault = unix.POLLERR | unix.POLLHUP | unix.POLLNVAL
	var what event.What
	if interest&event.Readable != 0 && revents&(unix.POLLIN|fault) != 0 {
		what |= event.WhatRead
	}
	if interest&event.Writable != 0 && revents&(unix.POLLOUT|fault) != 0 {
		what |= event.WhatWrite
	}
	return what
}
