// SPDX-License-Identifier: MIT
// Package torjob implements the enqueued-job state machine shared by every
// asynchronous operation the manager hands off to the Tor process loader
// (start, reconnect, vanity-address generation): a job is born Enqueued,
// moves at most once to Executing, and terminates at most once into
// Cancelled, Success or Error.
//
// The shape is grounded on server/service/scheduler/scheduler.go's
// ScheduledTask (a single mutex guarding state plus a slice of completion
// callbacks drained outside the lock) generalized from a recurring task to
// a single-use job, and on tor/service.go's vanityStatus.Active cancel-flag
// for the "cancel only while still queued" guard.
package torjob

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torexc"
)

// State is one of the job's five lifecycle states.
type State uint8

const (
	Enqueued State = iota
	Executing
	Cancelled
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Enqueued:
		return "enqueued"
	case Executing:
		return "executing"
	case Cancelled:
		return "cancelled"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the three terminal states.
func (s State) Terminal() bool {
	return s == Cancelled || s == Success || s == Error
}

// ErrCancellation is the sentinel every cancellation cause wraps, so
// IsCancellation can distinguish "this job was cancelled" from an ordinary
// failure reaching Fail.
var ErrCancellation = errors.New("torjob: cancelled")

// NewCancellationCause builds a cancellation cause carrying reason, usable
// as the argument to Cancel or Fail.
func NewCancellationCause(reason string) error {
	if reason == "" {
		return ErrCancellation
	}
	return fmt.Errorf("%w: %s", ErrCancellation, reason)
}

// IsCancellation reports whether err is (or wraps) ErrCancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancellation)
}

type completionEntry struct {
	id uint64
	fn torcallback.Executable
}

// Job is a single enqueued unit of work carrying a terminal response of
// type T on success.
type Job[T any] struct {
	mu sync.Mutex

	name    string
	state   State
	handler torexc.Handler

	onFailure      torcallback.OnFailure
	onCancellation func(cause error)

	cancellationCause error
	isCompleting      bool
	response          T

	completions []completionEntry
	nextID      uint64
}

// Option configures a Job at construction time.
type Option[T any] func(*Job[T])

// WithCancellationHook installs a callback run (outside the lock, inside
// the same suppression scope as onFailure and the completion handles)
// whenever the job terminates by cancellation.
func WithCancellationHook[T any](fn func(cause error)) Option[T] {
	return func(j *Job[T]) { j.onCancellation = fn }
}

// New constructs an Enqueued job. handler must not itself be a
// suppression-scope handler (WithSuppression's return value) — wrapping a
// scope in another scope is a construction-time error, not a runtime one.
func New[T any](name string, onFailure torcallback.OnFailure, handler torexc.Handler, opts ...Option[T]) (*Job[T], error) {
	if handler == nil {
		handler = torexc.Print()
	}
	if torexc.IsSuppressionScope(handler) {
		return nil, fmt.Errorf("torjob: %s: handler must not be a suppression-scope handler", name)
	}
	j := &Job[T]{
		name:           name,
		state:          Enqueued,
		handler:        handler,
		onFailure:      onFailure,
		onCancellation: func(error) {},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// ImmediateSuccess builds a job already in the terminal Success state,
// carrying response. No callbacks fire: there is nothing subscribed yet,
// so InvokeOnCompletion's immediate-delivery path handles any later
// registration.
func ImmediateSuccess[T any](name string, response T, handler torexc.Handler) (*Job[T], error) {
	j, err := New[T](name, torcallback.NoopFailure(), handler)
	if err != nil {
		return nil, err
	}
	j.state = Success
	j.response = response
	return j, nil
}

// ImmediateError builds a job already in the terminal Error state, carrying
// cause.
func ImmediateError[T any](name string, cause error, handler torexc.Handler) (*Job[T], error) {
	j, err := New[T](name, torcallback.NoopFailure(), handler)
	if err != nil {
		return nil, err
	}
	j.state = Error
	if IsCancellation(cause) {
		j.cancellationCause = cause
	}
	return j, nil
}

// Name returns the job's name, fixed at construction.
func (j *Job[T]) Name() string { return j.name }

// State returns the job's current state.
func (j *Job[T]) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// CancellationCause returns the cause recorded by Cancel, or by Fail when
// given a cancellation cause; nil otherwise.
func (j *Job[T]) CancellationCause() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancellationCause
}

// Response returns the job's terminal response and true, once it has
// completed with Success; otherwise the zero value and false.
func (j *Job[T]) Response() (T, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Success {
		var zero T
		return zero, false
	}
	return j.response, true
}

// InvokeOnCompletion registers handle to run when the job terminates, and
// returns a Disposable that un-registers it. If the job is already
// terminal, handle runs immediately (on the calling goroutine, through the
// Throw handler so a panic inside it propagates to the caller rather than
// being swallowed) and the returned Disposable is a noop.
//
// Go's func values are not comparable, so unlike a registry keyed by
// object identity this does not detect "the exact same handle registered
// twice" — each call to InvokeOnCompletion always adds a new entry. The
// invariants that matter (fires at most once, fires immediately if already
// terminal) hold regardless.
func (j *Job[T]) InvokeOnCompletion(handle torcallback.Executable) torcallback.Disposable {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		torexc.TryCatch(torexc.Throw(), "completion-handle:"+j.name, func() error {
			handle.Run()
			return nil
		})
		return torcallback.NoopDisposable()
	}

	id := j.nextID
	j.nextID++
	j.completions = append(j.completions, completionEntry{id: id, fn: handle})
	j.mu.Unlock()

	return torcallback.NewDisposable(func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.isCompleting {
			// Draining has already snapshotted the list; removing now
			// would not stop the handle from firing.
			return
		}
		for i, e := range j.completions {
			if e.id == id {
				j.completions = append(j.completions[:i], j.completions[i+1:]...)
				return
			}
		}
	})
}

// Begin transitions the job from Enqueued to Executing. Intended to be
// called only by the executor that claimed the job off the queue (the
// loader/manager), never by arbitrary callers.
func (j *Job[T]) Begin() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != Enqueued || j.isCompleting {
		return fmt.Errorf("torjob: %s: cannot begin executing from state %s", j.name, j.state)
	}
	j.state = Executing
	return nil
}

// Cancel transitions the job to Cancelled. It succeeds only if the job is
// still Enqueued and not already completing; Cancel on an Executing or
// already-terminal job returns false and has no effect.
//
// On success: the cancellation cause is recorded, the failure callback and
// cancellation hook run, then every registered completion handle runs, all
// inside one suppression scope so at most one UncaughtException reaches
// the job's handler for this termination.
func (j *Job[T]) Cancel(cause error) bool {
	j.mu.Lock()
	if j.state != Enqueued || j.isCompleting {
		j.mu.Unlock()
		return false
	}
	if cause == nil {
		cause = NewCancellationCause("")
	}
	j.cancellationCause = cause
	j.isCompleting = true
	j.state = Cancelled
	entries := j.completions
	j.completions = nil
	j.mu.Unlock()

	j.drain(func(scope torexc.Handler) {
		torexc.TryCatch(scope, "on-failure:"+j.name, func() error {
			j.onFailure.Invoke(cause)
			return nil
		})
		torexc.TryCatch(scope, "on-cancellation:"+j.name, func() error {
			j.onCancellation(cause)
			return nil
		})
	}, entries)

	return true
}

// Complete transitions the job to Success carrying response. withLock, if
// non-nil, runs while still holding the job's lock — atomically with the
// state transition — and is expected to do no more than read/write state
// guarded by the same lock (it must not call back into this job). onSuccess
// then runs outside the lock, followed by every registered completion
// handle, all inside one suppression scope.
//
// Returns an error without effect if the job is already terminal or
// already completing.
func (j *Job[T]) Complete(response T, onSuccess torcallback.OnSuccess[T], withLock func()) error {
	j.mu.Lock()
	if j.state.Terminal() || j.isCompleting {
		j.mu.Unlock()
		return fmt.Errorf("torjob: %s: already terminal (%s)", j.name, j.state)
	}
	if withLock != nil {
		withLock()
	}
	j.isCompleting = true
	j.state = Success
	j.response = response
	entries := j.completions
	j.completions = nil
	j.mu.Unlock()

	j.drain(func(scope torexc.Handler) {
		torexc.TryCatch(scope, "on-success:"+j.name, func() error {
			onSuccess.Invoke(response)
			return nil
		})
	}, entries)

	return nil
}

// Fail transitions the job to Error carrying cause. If cause wraps
// ErrCancellation (e.g. built via NewCancellationCause), the cancellation
// cause is recorded and the cancellation hook fires alongside the failure
// callback, exactly as Cancel does — this is the path the loader uses when
// a cancellation request arrives mid-execution, after Begin has already
// moved the job past Enqueued where Cancel itself no longer applies.
func (j *Job[T]) Fail(cause error, withLock func()) error {
	j.mu.Lock()
	if j.state.Terminal() || j.isCompleting {
		j.mu.Unlock()
		return fmt.Errorf("torjob: %s: already terminal (%s)", j.name, j.state)
	}
	if withLock != nil {
		withLock()
	}
	isCancel := IsCancellation(cause)
	if isCancel {
		j.cancellationCause = cause
	}
	j.isCompleting = true
	j.state = Error
	entries := j.completions
	j.completions = nil
	j.mu.Unlock()

	j.drain(func(scope torexc.Handler) {
		torexc.TryCatch(scope, "on-failure:"+j.name, func() error {
			j.onFailure.Invoke(cause)
			return nil
		})
		if isCancel {
			torexc.TryCatch(scope, "on-cancellation:"+j.name, func() error {
				j.onCancellation(cause)
				return nil
			})
		}
	}, entries)

	return nil
}

// drain runs body (the termination-specific callbacks) followed by every
// entry in entries, all under a single suppression scope rooted at the
// job's handler, then clears isCompleting.
func (j *Job[T]) drain(body func(scope torexc.Handler), entries []completionEntry) {
	_ = torexc.WithSuppression(j.handler, func(scope torexc.Handler) {
		body(scope)
		for _, e := range entries {
			entry := e
			torexc.TryCatch(scope, "completion:"+j.name, func() error {
				entry.fn.Run()
				return nil
			})
		}
	})

	j.mu.Lock()
	j.isCompleting = false
	j.mu.Unlock()
}
