// SPDX-License-Identifier: MIT
// Package torevent implements the polymorphic observer/event-bus layer:
// typed event families (a closed set of named singletons sharing one
// payload type), observers with an optional tag and executor, and a
// Processor exposing subscribe/unsubscribe/unsubscribeAll/clearObservers.
//
// The teacher has no generic pub/sub of its own — it wires handlers
// directly into net/http and cron — so the dispatch-loop shape here is
// grounded on server/service/scheduler/scheduler.go's task-callback
// storage generalized to many observers per key, and on
// tor/service.go's monitorProcess cancel-aware goroutine loop.
package torevent

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torexc"
)

// Event is a singleton, named member of a closed event family. All events
// sharing a family carry the same payload type T.
type Event[T any] struct {
	name string
}

// NewEvent declares a new event singleton. Event families are expected to
// be built once, at package init, as a fixed set of package-level vars.
func NewEvent[T any](name string) Event[T] { return Event[T]{name: name} }

// Name returns the event's wire/identifier name.
func (e Event[T]) Name() string { return e.name }

// StaticTag is the reserved tag used for observers registered internally
// by the runtime itself. It is never returned by introspection and is
// immune to ClearObservers and UnsubscribeAllByTag.
const StaticTag = "\x00static"

// normalizeTag maps a blank/whitespace-only tag to "" (no tag), per spec.
func normalizeTag(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return ""
	}
	return tag
}

// Executor decides how/where an observer's callback runs.
type Executor interface {
	Execute(task torcallback.Executable)
}

// immediateExecutor runs the callback inline, synchronously, on the
// publishing goroutine. Forming event loops through it (an observer that,
// directly or indirectly, re-publishes the event it's handling) can stack
// overflow — the same caveat the spec calls out for the platform UI
// dispatcher's immediate-if-already-on-it fast path.
type immediateExecutor struct{}

func (immediateExecutor) Execute(task torcallback.Executable) { task.Run() }

// Immediate is the executor that dispatches synchronously on the caller's
// goroutine.
var Immediate Executor = immediateExecutor{}

// MainDispatcher is the pluggable "platform UI context" the spec
// describes: something with its own run loop that callbacks should be
// marshalled onto. client/tui registers bubbletea's Program.Send as a
// MainDispatcher, since a tea.Program's update loop is this backend's
// closest analogue to a UI thread.
type MainDispatcher interface {
	// Dispatch schedules fn to run on the dispatcher's loop.
	Dispatch(fn func())
	// IsAvailable reports whether the dispatcher is currently attached.
	IsAvailable() bool
}

var mainDispatcherMu sync.RWMutex
var mainDispatcher MainDispatcher

// SetMainDispatcher installs (or, with nil, removes) the process-wide main
// dispatcher used by the Main executor.
func SetMainDispatcher(d MainDispatcher) {
	mainDispatcherMu.Lock()
	defer mainDispatcherMu.Unlock()
	mainDispatcher = d
}

type mainExecutor struct{}

func (mainExecutor) Execute(task torcallback.Executable) {
	mainDispatcherMu.RLock()
	d := mainDispatcher
	mainDispatcherMu.RUnlock()
	if d != nil && d.IsAvailable() {
		d.Dispatch(task.Run)
		return
	}
	// No UI context attached: best-effort inline delivery rather than
	// silently dropping the event.
	task.Run()
}

// Main is the executor that dispatches through the installed
// MainDispatcher if one is available, per IsAvailable.
var Main Executor = mainExecutor{}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(task torcallback.Executable)

func (f ExecutorFunc) Execute(task torcallback.Executable) { f(task) }

// Observer binds an event to a callback, with an optional grouping tag and
// an optional dispatch executor (falling back to the Processor's default).
type Observer[T any] struct {
	event    Event[T]
	tag      string
	executor Executor
	callback torcallback.OnEvent[T]
}

// NewObserver constructs an Observer. A blank/whitespace-only tag is
// normalized to "" (ungrouped). A nil executor means "use the processor's
// default".
func NewObserver[T any](event Event[T], tag string, executor Executor, callback torcallback.OnEvent[T]) Observer[T] {
	return Observer[T]{
		event:    event,
		tag:      normalizeTag(tag),
		executor: executor,
		callback: callback,
	}
}

// Tag returns the observer's grouping tag, or "" if ungrouped.
func (o Observer[T]) Tag() string { return o.tag }

type registration[T any] struct {
	id       uint64
	event    Event[T]
	tag      string
	static   bool
	executor Executor
	callback torcallback.OnEvent[T]
}

var regIDs uint64

// Processor is the subscribe/unsubscribe surface for one event family
// sharing payload type T.
type Processor[T any] struct {
	mu        sync.Mutex
	regs      []*registration[T]
	defaultEx Executor
	handler   torexc.Handler
}

// NewProcessor builds a Processor. defaultExecutor is used for observers
// that didn't specify one; handler receives any exception escaping an
// observer's callback.
func NewProcessor[T any](defaultExecutor Executor, handler torexc.Handler) *Processor[T] {
	if defaultExecutor == nil {
		defaultExecutor = Immediate
	}
	if handler == nil {
		handler = torexc.Print()
	}
	return &Processor[T]{defaultEx: defaultExecutor, handler: handler}
}

// Subscribe registers an observer and returns a Disposable that removes
// it. Subscribing the same Observer value twice registers it twice (the
// spec's dedup guarantee is per-job, not per-observer).
func (p *Processor[T]) Subscribe(o Observer[T]) torcallback.Disposable {
	return p.subscribe(o, false)
}

// SubscribeStatic registers an observer carrying the reserved static tag.
// Static observers are invisible to tag introspection and survive
// ClearObservers/UnsubscribeAllByTag.
func (p *Processor[T]) SubscribeStatic(event Event[T], executor Executor, callback torcallback.OnEvent[T]) torcallback.Disposable {
	return p.subscribe(Observer[T]{event: event, tag: StaticTag, executor: executor, callback: callback}, true)
}

func (p *Processor[T]) subscribe(o Observer[T], static bool) torcallback.Disposable {
	reg := &registration[T]{
		id:       atomic.AddUint64(&regIDs, 1),
		event:    o.event,
		tag:      o.tag,
		static:   static,
		executor: o.executor,
		callback: o.callback,
	}

	p.mu.Lock()
	p.regs = append(p.regs, reg)
	p.mu.Unlock()

	return torcallback.NewDisposable(func() {
		p.unsubscribeID(reg.id)
	})
}

func (p *Processor[T]) unsubscribeID(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.regs {
		if r.id == id {
			p.regs = append(p.regs[:i], p.regs[i+1:]...)
			return
		}
	}
}

// UnsubscribeAllByEvent removes every observer registered for event,
// including static ones.
func (p *Processor[T]) UnsubscribeAllByEvent(event Event[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.regs[:0]
	for _, r := range p.regs {
		if r.event.Name() != event.Name() {
			kept = append(kept, r)
		}
	}
	p.regs = kept
}

// UnsubscribeAllByTag removes every non-static observer whose tag equals
// tag (after normalization). O(n) over registrations.
func (p *Processor[T]) UnsubscribeAllByTag(tag string) {
	tag = normalizeTag(tag)
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.regs[:0]
	for _, r := range p.regs {
		if !r.static && r.tag == tag {
			continue
		}
		kept = append(kept, r)
	}
	p.regs = kept
}

// ClearObservers removes every non-static observer across all events.
func (p *Processor[T]) ClearObservers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.regs[:0]
	for _, r := range p.regs {
		if r.static {
			kept = append(kept, r)
		}
	}
	p.regs = kept
}

// Publish delivers data to every observer registered for event, in
// registration order, each through its own executor (or the processor
// default). Exceptions thrown by a callback are routed to the processor's
// handler rather than propagating to the publisher.
func (p *Processor[T]) Publish(event Event[T], data T) {
	p.mu.Lock()
	matches := make([]*registration[T], 0, len(p.regs))
	for _, r := range p.regs {
		if r.event.Name() == event.Name() {
			matches = append(matches, r)
		}
	}
	handler := p.handler
	defaultEx := p.defaultEx
	p.mu.Unlock()

	for _, r := range matches {
		ex := r.executor
		if ex == nil {
			ex = defaultEx
		}
		cb := r.callback
		ctxName := "observer:" + event.Name()

		if _, ok := ex.(immediateExecutor); ok {
			torexc.TryCatch(handler, ctxName, func() error {
				cb.Invoke(data)
				return nil
			})
			continue
		}

		task, _ := torcallback.NewExecutable(func() {
			torexc.TryCatch(handler, ctxName, func() error {
				cb.Invoke(data)
				return nil
			})
		}).Once()
		ex.Execute(task)
	}
}

// Count returns the number of currently registered observers, including
// static ones; exposed for tests and diagnostics.
func (p *Processor[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}
