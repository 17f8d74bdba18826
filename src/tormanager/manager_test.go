// SPDX-License-Identifier: MIT
package tormanager

import (
	"sync"
	"testing"
	"time"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torctrl"
	"github.com/apimgr/torsentry/src/torevent"
	"github.com/apimgr/torsentry/src/torexc"
)

func TestUnsubscribeAllByTagRemovesFromBothFamilies(t *testing.T) {
	m := New("test-instance", nil, nil, nil, nil)

	m.torEvents.Subscribe(torevent.NewObserver(EventTorControl, "sweep", nil,
		torcallback.NewOnEvent(func(ev torctrl.Event) {})))
	m.runtimeEvents.Subscribe(torevent.NewObserver(EventBootstrap, "sweep", nil,
		torcallback.NewOnEvent(func(p RuntimePayload) {})))

	if m.torEvents.Count() != 1 || m.runtimeEvents.Count() != 1 {
		t.Fatalf("expected one observer registered per family before sweep")
	}

	m.UnsubscribeAllByTag("sweep")

	if m.torEvents.Count() != 0 {
		t.Fatalf("torEvents still has %d observers after UnsubscribeAllByTag", m.torEvents.Count())
	}
	if m.runtimeEvents.Count() != 0 {
		t.Fatalf("runtimeEvents still has %d observers after UnsubscribeAllByTag", m.runtimeEvents.Count())
	}
}

func TestPublishRuntimeDeliversToSubscriber(t *testing.T) {
	m := New("test-instance-2", nil, nil, nil, nil)

	var mu sync.Mutex
	var got []RuntimePayload
	m.runtimeEvents.Subscribe(torevent.NewObserver(EventBootstrap, "", nil,
		torcallback.NewOnEvent(func(p RuntimePayload) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, p)
		})))

	m.publishRuntime(EventBootstrap, RuntimePayload{Kind: KindBootstrap, Percent: 42})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Percent != 42 {
		t.Fatalf("got %+v, want one payload with Percent=42", got)
	}
}

func TestCommandWithoutActiveSessionFails(t *testing.T) {
	m := New("test-instance-3", nil, nil, nil, nil)

	job := m.Signal("NEWNYM")
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		default:
		}
		if st := job.State(); st.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if job.State().String() != "error" {
		t.Fatalf("state = %s, want error (no active session)", job.State())
	}
}

func TestManagerErrorUnwrapsToCause(t *testing.T) {
	cause := &torexc.UncaughtException{Context: "ctx", Cause: nil}
	err := wrapManagerErr("op", cause)
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	var me *Error
	if e, ok := err.(*Error); ok {
		me = e
	} else {
		t.Fatalf("expected *Error, got %T", err)
	}
	if me.Unwrap() != cause {
		t.Fatal("Unwrap did not return the original cause")
	}
}

func TestWrapManagerErrNilReturnsNil(t *testing.T) {
	if err := wrapManagerErr("op", nil); err != nil {
		t.Fatalf("wrapManagerErr(nil) = %v, want nil", err)
	}
}
