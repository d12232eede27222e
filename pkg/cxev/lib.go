/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cxev

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jupiterrider/ffi"
)

// ErrNotLoaded is returned by bindings when libxev could not be opened.
var ErrNotLoaded = errors.New("libxev not loaded; set LIBXEV_PATH")

var (
	loadMu  sync.Mutex
	loaded  atomic.Bool
	lib     ffi.Lib
	loadErr error
)

// binding describes one C function to prepare after the library is opened.
type binding struct {
	fn   *ffi.Fun
	name string
	ret  *ffi.Type
	args []*ffi.Type
}

// Load opens libxev from path and prepares every binding. It is a no-op
// once a library has been loaded.
func Load(path string) error {
	loadMu.Lock()
	defer loadMu.Unlock()
	if loaded.Load() {
		return nil
	}
	if err := open(path); err != nil {
		loadErr = err
		return err
	}
	return nil
}

// Loaded reports whether libxev is usable, trying the default locations on
// first call.
func Loaded() bool {
	return ensureLoaded() == nil
}

func ensureLoaded() error {
	if loaded.Load() {
		return nil
	}
	loadMu.Lock()
	defer loadMu.Unlock()
	if loaded.Load() {
		return nil
	}
	if loadErr != nil {
		return loadErr
	}
	var errs []error
	for _, path := range defaultPaths() {
		err := open(path)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	loadErr = fmt.Errorf("%w: %w", ErrNotLoaded, errors.Join(errs...))
	return loadErr
}

func open(path string) error {
	l, err := ffi.Load(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	for _, b := range append(loopBindings(), timerBindings()...) {
		fn, err := l.Prep(b.name, b.ret, b.args...)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", b.name, err)
		}
		*b.fn = fn
	}
	lib = l
	loadErr = nil
	loaded.Store(true)
	return nil
}

func defaultPaths() []string {
	if p := os.Getenv("LIBXEV_PATH"); p != "" {
		return []string{p}
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"libxev.dylib", "/opt/homebrew/lib/libxev.dylib", "/usr/local/lib/libxev.dylib"}
	case "windows":
		return []string{"xev.dll"}
	default:
		return []string{"libxev.so", "/usr/local/lib/libxev.so", "/usr/lib/libxev.so"}
	}
}
