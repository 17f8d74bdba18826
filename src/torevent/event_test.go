// SPDX-License-Identifier: MIT
package torevent

import (
	"sync"
	"testing"

	"github.com/apimgr/torsentry/src/torcallback"
)

type payload struct{ n int }

var testEvent = NewEvent[payload]("TEST")
var otherEvent = NewEvent[payload]("OTHER")

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)

	var order []int
	p.Subscribe(NewObserver(testEvent, "", Immediate, torcallback.NewOnEvent(func(d payload) {
		order = append(order, d.n)
	})))
	p.Subscribe(NewObserver(testEvent, "", Immediate, torcallback.NewOnEvent(func(d payload) {
		order = append(order, d.n*10)
	})))

	p.Publish(testEvent, payload{n: 1})

	if len(order) != 2 || order[0] != 1 || order[1] != 10 {
		t.Fatalf("expected ordered delivery [1, 10], got %v", order)
	}
}

func TestUnsubscribeAllByTagRemovesOnlyMatching(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)

	var aCount, bCount int
	p.Subscribe(NewObserver(testEvent, "group-a", Immediate, torcallback.NewOnEvent(func(payload) { aCount++ })))
	p.Subscribe(NewObserver(testEvent, "group-b", Immediate, torcallback.NewOnEvent(func(payload) { bCount++ })))

	p.UnsubscribeAllByTag("group-a")
	p.Publish(testEvent, payload{})

	if aCount != 0 {
		t.Fatalf("expected group-a observer removed, got %d calls", aCount)
	}
	if bCount != 1 {
		t.Fatalf("expected group-b observer to still fire, got %d calls", bCount)
	}
}

func TestBlankTagNormalizedToNull(t *testing.T) {
	o := NewObserver(testEvent, "   ", Immediate, torcallback.NoopEvent[payload]())
	if o.Tag() != "" {
		t.Fatalf("expected whitespace-only tag normalized to empty, got %q", o.Tag())
	}
}

func TestClearObserversPreservesStatic(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)

	var staticCount, dynamicCount int
	p.SubscribeStatic(testEvent, Immediate, torcallback.NewOnEvent(func(payload) { staticCount++ }))
	p.Subscribe(NewObserver(testEvent, "", Immediate, torcallback.NewOnEvent(func(payload) { dynamicCount++ })))

	p.ClearObservers()
	p.Publish(testEvent, payload{})

	if staticCount != 1 {
		t.Fatalf("expected static observer to survive ClearObservers, got %d calls", staticCount)
	}
	if dynamicCount != 0 {
		t.Fatalf("expected dynamic observer removed by ClearObservers, got %d calls", dynamicCount)
	}
}

func TestStaticTagImmuneToUnsubscribeAllByTag(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)
	var calls int
	p.SubscribeStatic(testEvent, Immediate, torcallback.NewOnEvent(func(payload) { calls++ }))

	p.UnsubscribeAllByTag(StaticTag)
	p.Publish(testEvent, payload{})

	if calls != 1 {
		t.Fatalf("expected static observer immune to UnsubscribeAllByTag(StaticTag), got %d calls", calls)
	}
}

func TestDisposableRemovesObserver(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)
	var calls int
	d := p.Subscribe(NewObserver(testEvent, "", Immediate, torcallback.NewOnEvent(func(payload) { calls++ })))

	d.Dispose()
	p.Publish(testEvent, payload{})

	if calls != 0 {
		t.Fatalf("expected disposed observer to not fire, got %d calls", calls)
	}
}

func TestPublishOnlyMatchesOwnEvent(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)
	var calls int
	p.Subscribe(NewObserver(otherEvent, "", Immediate, torcallback.NewOnEvent(func(payload) { calls++ })))

	p.Publish(testEvent, payload{})

	if calls != 0 {
		t.Fatalf("expected no delivery to observer of a different event, got %d", calls)
	}
}

func TestCustomExecutorRunsConcurrentDeliverySafely(t *testing.T) {
	p := NewProcessor[payload](Immediate, nil)

	var mu sync.Mutex
	var seen []int
	async := ExecutorFunc(func(task torcallback.Executable) {
		go task.Run()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	p.Subscribe(NewObserver(testEvent, "", async, torcallback.NewOnEvent(func(d payload) {
		defer wg.Done()
		mu.Lock()
		seen = append(seen, d.n)
		mu.Unlock()
	})))

	p.Publish(testEvent, payload{n: 7})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != 7 {
		t.Fatalf("expected single async delivery of 7, got %v", seen)
	}
}
