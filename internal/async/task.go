// Package async runs backend round trips off the game thread.
//
// Tasks are ticked by a single worker goroutine until they report
// completion. Completed tasks and passive events are handed back to the game
// thread, which finalizes them and fires their delegates. Only Finalize and
// TriggerDelegates may touch state owned by the game thread.
package async

import (
	"sync/atomic"
	"time"
)

type (
	// Item is anything delivered to the game thread.
	Item interface {
		// String describes the item for logs and metrics.
		String() string

		// Finalize applies the outcome to game thread state.
		Finalize()

		// TriggerDelegates fires the caller visible callbacks.
		TriggerDelegates()
	}

	// Task is a unit of deferred work ticked by the worker goroutine.
	Task interface {
		Item

		// Tick advances the task. It must not block and must be safe to call
		// repeatedly until the task reports completion.
		Tick(elapsed time.Duration)

		IsComplete() bool
		WasSuccessful() bool
	}

	// Event is a passive notification. It is complete when queued and only
	// needs Finalize and TriggerDelegates.
	Event interface {
		Item
	}

	// BaseTask carries the completion flags shared by every task. The flags
	// are written by the worker goroutine and read by the game thread.
	BaseTask struct {
		complete atomic.Bool
		success  atomic.Bool
	}

	// InactivityTimer expires once Timeout elapses without a Reset.
	InactivityTimer struct {
		Timeout time.Duration
		elapsed time.Duration
	}
)

// IsComplete reports whether the task finished.
func (t *BaseTask) IsComplete() bool {
	return t.complete.Load()
}

// WasSuccessful reports whether the task finished successfully.
func (t *BaseTask) WasSuccessful() bool {
	return t.success.Load()
}

// Complete marks the task finished. The success flag is published before the
// completion flag so a reader that sees completion sees the final result.
func (t *BaseTask) Complete(success bool) {
	t.success.Store(success)
	t.complete.Store(true)
}

// Advance adds elapsed to the timer and reports whether it expired.
func (t *InactivityTimer) Advance(elapsed time.Duration) bool {
	t.elapsed += elapsed

	return t.elapsed >= t.Timeout
}

// Reset restarts the timer after progress was made.
func (t *InactivityTimer) Reset() {
	t.elapsed = 0
}

// Elapsed returns the time since the last reset.
func (t *InactivityTimer) Elapsed() time.Duration {
	return t.elapsed
}
