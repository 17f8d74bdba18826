// SPDX-License-Identifier: MIT
package torjob

import (
	"errors"
	"sync"
	"testing"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torexc"
)

func TestCancelBeforeExecuteSucceeds(t *testing.T) {
	var failCause error
	onFailure := torcallback.NewOnFailure(func(cause error) { failCause = cause })

	j, err := New[int]("vanity-gen", onFailure, torexc.Print())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var completed int
	disp := j.InvokeOnCompletion(torcallback.NewExecutable(func() { completed++ }))
	_ = disp

	cause := NewCancellationCause("user requested stop")
	if !j.Cancel(cause) {
		t.Fatalf("expected Cancel to succeed on an Enqueued job")
	}

	if got := j.State(); got != Cancelled {
		t.Fatalf("expected state Cancelled, got %s", got)
	}
	if !errors.Is(j.CancellationCause(), ErrCancellation) {
		t.Fatalf("expected cancellation cause to wrap ErrCancellation, got %v", j.CancellationCause())
	}
	if !errors.Is(failCause, ErrCancellation) {
		t.Fatalf("expected on-failure to receive the cancellation cause, got %v", failCause)
	}
	if completed != 1 {
		t.Fatalf("expected the completion handle to fire exactly once, got %d", completed)
	}
}

func TestCancelFailsOnceExecuting(t *testing.T) {
	j, err := New[int]("job", torcallback.NoopFailure(), torexc.Print())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := j.Begin(); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	if j.Cancel(nil) {
		t.Fatalf("expected Cancel to fail once the job has begun executing")
	}
	if got := j.State(); got != Executing {
		t.Fatalf("expected state to remain Executing, got %s", got)
	}
}

func TestCancelFailsOnAlreadyTerminalJob(t *testing.T) {
	j, err := New[int]("job", torcallback.NoopFailure(), torexc.Print())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := j.Complete(42, torcallback.NoopSuccess[int](), nil); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	if j.Cancel(nil) {
		t.Fatalf("expected Cancel to fail on an already-terminal job")
	}
}

func TestCompleteDeliversResponseAndDrainsCompletions(t *testing.T) {
	j, err := New[string]("job", torcallback.NoopFailure(), torexc.Print())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	j.InvokeOnCompletion(torcallback.NewExecutable(func() { record("completion-1") }))
	j.InvokeOnCompletion(torcallback.NewExecutable(func() { record("completion-2") }))

	onSuccess := torcallback.NewOnSuccess(func(response string) { record("success:" + response) })
	if err := j.Complete("ready", onSuccess, nil); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	resp, ok := j.Response()
	if !ok || resp != "ready" {
		t.Fatalf("expected Response() to return (%q, true), got (%q, %v)", "ready", resp, ok)
	}
	if got := j.State(); got != Success {
		t.Fatalf("expected state Success, got %s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "success:ready" || order[1] != "completion-1" || order[2] != "completion-2" {
		t.Fatalf("expected [success:ready, completion-1, completion-2] in order, got %v", order)
	}
}

func TestInvokeOnCompletionFiresImmediatelyOnTerminalJob(t *testing.T) {
	j, err := ImmediateSuccess[int]("already-done", 7, torexc.Print())
	if err != nil {
		t.Fatalf("ImmediateSuccess returned error: %v", err)
	}

	var calls int
	j.InvokeOnCompletion(torcallback.NewExecutable(func() { calls++ }))
	j.InvokeOnCompletion(torcallback.NewExecutable(func() { calls++ }))

	if calls != 2 {
		t.Fatalf("expected both late registrations to fire immediately, got %d", calls)
	}
}

func TestDisposeRemovesCompletionBeforeTermination(t *testing.T) {
	j, err := New[int]("job", torcallback.NoopFailure(), torexc.Print())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var calls int
	disp := j.InvokeOnCompletion(torcallback.NewExecutable(func() { calls++ }))
	disp.Dispose()

	if err := j.Complete(0, torcallback.NoopSuccess[int](), nil); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected disposed completion handle to not fire, got %d calls", calls)
	}
}

func TestFailWithCancellationCauseInvokesCancellationHook(t *testing.T) {
	var hookCause error
	j, err := New[int]("job", torcallback.NoopFailure(), torexc.Print(),
		WithCancellationHook[int](func(cause error) { hookCause = cause }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := j.Begin(); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	cause := NewCancellationCause("context canceled mid-execution")
	if err := j.Fail(cause, nil); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}

	if got := j.State(); got != Error {
		t.Fatalf("expected state Error, got %s", got)
	}
	if !errors.Is(hookCause, ErrCancellation) {
		t.Fatalf("expected cancellation hook to fire with the cancellation cause, got %v", hookCause)
	}
}

func TestFailWithOrdinaryCauseSkipsCancellationHook(t *testing.T) {
	var hookCalled bool
	j, err := New[int]("job", torcallback.NoopFailure(), torexc.Print(),
		WithCancellationHook[int](func(error) { hookCalled = true }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := j.Fail(errors.New("connection refused"), nil); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}
	if hookCalled {
		t.Fatalf("expected cancellation hook not to fire for a non-cancellation failure")
	}
	if j.CancellationCause() != nil {
		t.Fatalf("expected no cancellation cause recorded for an ordinary failure")
	}
}

func TestNewRejectsSuppressionScopeHandler(t *testing.T) {
	var scope torexc.Handler
	_ = torexc.WithSuppression(torexc.Print(), func(s torexc.Handler) {
		scope = s
	})

	if _, err := New[int]("job", torcallback.NoopFailure(), scope); err == nil {
		t.Fatalf("expected New to reject a suppression-scope handler")
	}
}

func TestSecondCompletionAttemptIsRejected(t *testing.T) {
	j, err := New[int]("job", torcallback.NoopFailure(), torexc.Print())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := j.Complete(1, torcallback.NoopSuccess[int](), nil); err != nil {
		t.Fatalf("first Complete returned error: %v", err)
	}
	if err := j.Complete(2, torcallback.NoopSuccess[int](), nil); err == nil {
		t.Fatalf("expected second Complete on an already-terminal job to fail")
	}
	if resp, _ := j.Response(); resp != 1 {
		t.Fatalf("expected response to remain 1 from the first completion, got %d", resp)
	}
}
