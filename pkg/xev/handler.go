/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package xev

// Action tells the loop what to do with a timer once its callback returns.
type Action int

const (
	// Stop disarms the timer.
	Stop Action = iota

	// Continue fires the timer again after the same delay.
	Continue
)

// TimerHandler handles timer completions. result is nil when the timer
// expired, ErrCanceled when it was cancelled, and another error otherwise.
//
// For simple use cases, [TimerFunc] is more convenient.
type TimerHandler interface {
	OnTimer(t *Timer, result error) Action
}

// TimerFunc is a function adapter for [TimerHandler].
type TimerFunc func(t *Timer, result error) Action

// OnTimer implements [TimerHandler].
func (f TimerFunc) OnTimer(t *Timer, result error) Action {
	return f(t, result)
}
