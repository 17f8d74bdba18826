// SPDX-License-Identifier: MIT
package torexc

import (
	"errors"
	"testing"
)

type recordingHandler struct {
	got []*UncaughtException
}

func (r *recordingHandler) Handle(exc *UncaughtException) {
	r.got = append(r.got, exc)
}

func TestSuppressionFoldsThreeFailuresIntoOne(t *testing.T) {
	rec := &recordingHandler{}

	e1 := errors.New("e1")
	e2 := errors.New("e2")
	e3 := errors.New("e3")

	err := WithSuppression(rec, func(scope Handler) {
		TryCatch(scope, "block-1", func() error { return e1 })
		TryCatch(scope, "block-2", func() error { return e2 })
		TryCatch(scope, "block-3", func() error { return e3 })
	})
	if err != nil {
		t.Fatalf("WithSuppression returned error: %v", err)
	}

	if len(rec.got) != 1 {
		t.Fatalf("expected exactly 1 delivered exception, got %d", len(rec.got))
	}

	root := rec.got[0]
	if !errors.Is(root.Cause, e1) {
		t.Fatalf("expected root cause to be e1, got %v", root.Cause)
	}

	suppressed := Suppressed(root.Cause)
	if len(suppressed) != 2 || suppressed[0] != e2 || suppressed[1] != e3 {
		t.Fatalf("expected suppressed [e2, e3] in order, got %v", suppressed)
	}
}

func TestSuppressionDeliversNothingOnZeroFailures(t *testing.T) {
	rec := &recordingHandler{}
	err := WithSuppression(rec, func(scope Handler) {
		TryCatch(scope, "ok", func() error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.got) != 0 {
		t.Fatalf("expected no delivered exceptions, got %d", len(rec.got))
	}
}

func TestNestedSuppressionReusesOutermostScope(t *testing.T) {
	rec := &recordingHandler{}
	e1 := errors.New("outer")
	e2 := errors.New("inner")

	_ = WithSuppression(rec, func(scope Handler) {
		TryCatch(scope, "a", func() error { return e1 })
		_ = WithSuppression(scope, func(inner Handler) {
			TryCatch(inner, "b", func() error { return e2 })
		})
	})

	if len(rec.got) != 1 {
		t.Fatalf("expected exactly 1 delivered exception from the outer scope, got %d", len(rec.got))
	}
	if !errors.Is(rec.got[0].Cause, e1) {
		t.Fatalf("expected root cause e1, got %v", rec.got[0].Cause)
	}
	if s := Suppressed(rec.got[0].Cause); len(s) != 1 || s[0] != e2 {
		t.Fatalf("expected e2 suppressed by reuse of the outer scope, got %v", s)
	}
}

func TestLeakedSuppressedHandlerFallsBackToOriginal(t *testing.T) {
	rec := &recordingHandler{}
	var leaked Handler

	_ = WithSuppression(rec, func(scope Handler) {
		leaked = scope
	})

	// Scope already closed; using it now must go straight to rec.
	leaked.Handle(&UncaughtException{Context: "late", Cause: errors.New("late failure")})

	if len(rec.got) != 1 {
		t.Fatalf("expected the leaked handler to deliver directly, got %d deliveries", len(rec.got))
	}
}

func TestIgnoreHandlerSkipsWrap(t *testing.T) {
	// Should not panic and should not allocate an UncaughtException.
	TryCatch(Ignore(), "ctx", func() error { return errors.New("boom") })
}

func TestTryCatchDoesNotDoubleWrapUncaught(t *testing.T) {
	rec := &recordingHandler{}
	inner := &UncaughtException{Context: "inner-ctx", Cause: errors.New("boom")}
	TryCatch(rec, "outer-ctx", func() error { return inner })

	if len(rec.got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(rec.got))
	}
	if rec.got[0] != inner {
		t.Fatalf("expected the already-wrapped exception to pass through unchanged")
	}
}
