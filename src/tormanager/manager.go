// SPDX-License-Identifier: MIT
// Package tormanager is the façade: it wires a torloader.Loader to the
// torevent bus and exposes a command surface backed by torjob, turning
// the loader's single Start/Close lifecycle into the "bring up Tor,
// observe it, send it commands" API a consumer actually wants.
//
// Grounded on tor/service.go's TorService — a mutex-guarded struct
// exposing Start/Stop/Restart/GetStatus/GetOnionAddress over one hardcoded
// hidden service — generalized from that single fixed command set to a
// general enqueue-any-control-command surface backed by torjob.Job, and
// from direct field reads to the typed event families in events.go.
package tormanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torctrl"
	"github.com/apimgr/torsentry/src/torevent"
	"github.com/apimgr/torsentry/src/torexc"
	"github.com/apimgr/torsentry/src/torjob"
	"github.com/apimgr/torsentry/src/torloader"
)

// Error wraps a failure surfaced by the manager, tagging it with the
// loader's abstract kind per spec.md §7 ("surfaced from the loader as a
// typed TorManager error wrapping the cause") without re-deriving the
// taxonomy — torloader.Kind is reused directly rather than mirrored.
type Error struct {
	Kind torloader.Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tormanager: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapManagerErr(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := torloader.KindIO
	var le *torloader.Error
	if ok := asLoaderError(err, &le); ok {
		kind = le.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func asLoaderError(err error, target **torloader.Error) bool {
	for err != nil {
		if le, ok := err.(*torloader.Error); ok {
			*target = le
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// state implements torloader.BootstrapState, publishing every update onto
// the runtime event family instead of storing it locally — observers are
// expected to track bootstrap percentage themselves if they need it.
type state struct {
	publish func(torevent.Event[RuntimePayload], RuntimePayload)
}

func (s state) UpdateOn(percent int) {
	s.publish(EventBootstrap, RuntimePayload{Kind: KindBootstrap, Percent: percent})
}

func (s state) UpdateOff(disabled bool) {
	s.publish(EventBootstrap, RuntimePayload{Kind: KindBootstrap, Disabled: disabled})
}

// sink implements torloader.EventSink, publishing every forwarded tor log
// line onto the runtime event family.
type sink struct {
	publish func(torevent.Event[RuntimePayload], RuntimePayload)
}

func (s sink) EmitLog(line string) {
	s.publish(EventLog, RuntimePayload{Kind: KindLog, Line: line})
}

// Manager is the public façade: one per managed Tor instance.
type Manager struct {
	loader *torloader.Loader

	torEvents     *torevent.Processor[torctrl.Event]
	runtimeEvents *torevent.Processor[RuntimePayload]
	handler       torexc.Handler

	mu      sync.Mutex
	session *torctrl.Session

	cmdMu sync.Mutex
}

// New builds a Manager. id is the per-instance mutex key (the natural
// choice is the instance's data directory); locks is shared across every
// Manager in the process, per spec.md §3's "process-wide state" invariant.
func New(id string, locks *torloader.InstanceLocks, provider torloader.ConfigProvider, portAvailable torloader.PortAvailable, handler torexc.Handler) *Manager {
	if handler == nil {
		handler = torexc.Print()
	}
	m := &Manager{
		torEvents:     torevent.NewProcessor[torctrl.Event](torevent.Immediate, handler),
		runtimeEvents: torevent.NewProcessor[RuntimePayload](torevent.Immediate, handler),
		handler:       handler,
	}
	m.loader = torloader.NewLoader(id, locks, provider, portAvailable,
		state{publish: m.publishRuntime}, sink{publish: m.publishRuntime}, handler)
	return m
}

func (m *Manager) publishRuntime(event torevent.Event[RuntimePayload], payload RuntimePayload) {
	m.runtimeEvents.Publish(event, payload)
}

// Start brings Tor up (re-attaching to an already-running instance when
// possible) and begins forwarding its async control events onto
// TorEvents. Safe to call again after Close.
func (m *Manager) Start(ctx context.Context) (torloader.ValidatedTorConfig, error) {
	session, vcfg, err := m.loader.Start(ctx)
	if err != nil {
		return torloader.ValidatedTorConfig{}, wrapManagerErr("start", err)
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	if err := session.SetEvents(torctrl.EventStatusClient, torctrl.EventStatusGeneral); err != nil {
		return vcfg, wrapManagerErr("subscribe events", err)
	}
	go m.pumpTorEvents(session)

	return vcfg, nil
}

func (m *Manager) pumpTorEvents(session *torctrl.Session) {
	for ev := range session.Events() {
		m.torEvents.Publish(EventTorControl, ev)
	}
}

// TorEvents returns the processor observers subscribe to for raw Tor
// async control events (CIRC, STREAM, STATUS_CLIENT, ...).
func (m *Manager) TorEvents() *torevent.Processor[torctrl.Event] { return m.torEvents }

// RuntimeEvents returns the processor observers subscribe to for the
// manager's own bootstrap-progress and forwarded-log events.
func (m *Manager) RuntimeEvents() *torevent.Processor[RuntimePayload] { return m.runtimeEvents }

// UnsubscribeAllByTag removes every non-static observer carrying tag from
// both the Tor-event and runtime-event families — the cross-family
// removal spec.md §4.3 requires of a processor that is "both a Tor-event
// processor and a runtime-event processor".
func (m *Manager) UnsubscribeAllByTag(tag string) {
	m.torEvents.UnsubscribeAllByTag(tag)
	m.runtimeEvents.UnsubscribeAllByTag(tag)
}

// currentSession returns the active control session, or an error if Tor has not
// been started.
func (m *Manager) currentSession() (*torctrl.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, fmt.Errorf("tormanager: no active session")
	}
	return m.session, nil
}

// enqueue runs fn against the live control session as a torjob.Job,
// serialized against every other enqueued command on this manager (the
// control connection is not safe for concurrent commands), and returns
// the job already Complete/Fail'd.
func enqueue[T any](m *Manager, name string, fn func(*torctrl.Session) (T, error)) *torjob.Job[T] {
	job, err := torjob.New[T](name, torcallback.NoopFailure(), m.handler)
	if err != nil {
		j, _ := torjob.ImmediateError[T](name, err, m.handler)
		return j
	}
	if err := job.Begin(); err != nil {
		j, _ := torjob.ImmediateError[T](name, err, m.handler)
		return j
	}

	go func() {
		m.cmdMu.Lock()
		defer m.cmdMu.Unlock()

		session, err := m.currentSession()
		if err != nil {
			_ = job.Fail(wrapManagerErr(name, err), nil)
			return
		}
		resp, err := fn(session)
		if err != nil {
			_ = job.Fail(wrapManagerErr(name, err), nil)
			return
		}
		_ = job.Complete(resp, torcallback.NoopSuccess[T](), nil)
	}()

	return job
}

// Signal enqueues a SIGNAL command as a job.
func (m *Manager) Signal(sig string) *torjob.Job[struct{}] {
	return enqueue(m, "signal:"+sig, func(s *torctrl.Session) (struct{}, error) {
		return struct{}{}, s.Signal(sig)
	})
}

// GetInfo enqueues a GETINFO command as a job.
func (m *Manager) GetInfo(keys ...string) *torjob.Job[map[string]string] {
	return enqueue(m, "getinfo", func(s *torctrl.Session) (map[string]string, error) {
		return s.GetInfo(keys...)
	})
}

// BootstrapPercent enqueues a bootstrap-percentage probe as a job.
func (m *Manager) BootstrapPercent() *torjob.Job[int] {
	return enqueue(m, "bootstrap-percent", func(s *torctrl.Session) (int, error) {
		return s.BootstrapPercent()
	})
}

// Close cancels the tor job and tears down the control session. It does
// not release the per-instance mutex registry entry — call
// ReleaseInstanceLock explicitly when this Manager is being destroyed,
// per spec.md §3's "removed when the manager is destroyed".
func (m *Manager) Close() error {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	return m.loader.Close()
}

// ReleaseInstanceLock removes this manager's entry from the shared
// per-instance mutex registry. Call once, at manager destruction.
func (m *Manager) ReleaseInstanceLock() {
	m.loader.ReleaseInstanceLock()
}
