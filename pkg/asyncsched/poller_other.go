//go:build !unix

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package asyncsched

import (
	"github.com/rs/zerolog"

	"github.com/crrow/evbridge/pkg/event"
)

func newIOPoller(func(event.Task, event.What), zerolog.Logger) (ioPoller, error) {
	return nil, ErrUnsupported
}
