// SPDX-License-Identifier: MIT
// Package torctrl is a thin control-port session: dialing, cookie
// authentication, TAKEOWNERSHIP, SIGNAL, GETINFO, SETEVENTS and the
// asynchronous event reader the loader and manager drive. The control
// protocol's wire-level framing (line continuation, reply-code parsing,
// the async-reply dispatch loop) is out of scope per spec.md §1 and is
// delegated to cretz/bine's control subpackage, the direct descendant of
// the `bulb` library cypherbits' internal/tor/tor.go drives the same way
// (bulb.Dial, ctrl.Authenticate, ctrl.Request("TAKEOWNERSHIP"),
// ctrl.StartAsyncReader/NextEvent) and the dependency the teacher already
// requires for embedding a Tor daemon (tor/service.go's
// t.Control.GetInfo("version")).
package torctrl

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/cretz/bine/control"
)

// ErrClosed is returned by any Session operation attempted after Close.
var ErrClosed = errors.New("torctrl: session is closed")

// ControlConn is the subset of *control.Conn this package drives. Session
// is built against this interface rather than the concrete bine type so
// tests can supply a fake wire connection without a live Tor process.
type ControlConn interface {
	SendRequest(format string, args ...interface{}) (*control.Response, error)
	StartAsyncReader()
	StopAsyncReader()
	AddEventListener(ch chan<- *control.Event, events ...control.EventCode) error
	RemoveEventListener(ch chan<- *control.Event, events ...control.EventCode) error
	Close() error
}

// Event is one asynchronous message pushed by Tor after SetEvents
// registers interest in it.
type Event struct {
	Name  string
	Lines []string
}

// Session is a single authenticated control-port connection. Not safe for
// concurrent use of SetEvents against concurrent Close, though command
// methods (Signal, GetInfo, TakeOwnership) may be called from any
// goroutine while the session is open.
type Session struct {
	mu     sync.Mutex
	conn   ControlConn
	closed bool

	events     chan Event
	eventConn  chan *control.Event
	registered []control.EventCode
}

// Dial opens network/address (e.g. "tcp"/"127.0.0.1:9051" or
// "unix"/"/run/tor/control") and wraps it in an unauthenticated Session.
func Dial(network, address string) (*Session, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("torctrl: dial %s %s: %w", network, address, err)
	}
	return NewSession(control.NewConn(conn)), nil
}

// NewSession wraps an already-established control connection.
func NewSession(conn ControlConn) *Session {
	return &Session{conn: conn, events: make(chan Event, 32)}
}

// Authenticate sends AUTHENTICATE with cookie hex-encoded, or with no
// argument if cookie is empty, per spec.md §4.6 step 10.
func (s *Session) Authenticate(cookie []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	var err error
	if len(cookie) == 0 {
		_, err = s.conn.SendRequest("AUTHENTICATE")
	} else {
		_, err = s.conn.SendRequest("AUTHENTICATE %s", hex.EncodeToString(cookie))
	}
	if err != nil {
		return fmt.Errorf("torctrl: authenticate: %w", err)
	}
	return nil
}

// TakeOwnership issues TAKEOWNERSHIP, so tor self-terminates when this
// connection closes.
func (s *Session) TakeOwnership() error {
	return s.simpleCommand("TAKEOWNERSHIP")
}

// Signal issues SIGNAL <sig> (e.g. "SHUTDOWN", "NEWNYM", "RELOAD").
func (s *Session) Signal(sig string) error {
	return s.simpleCommand(fmt.Sprintf("SIGNAL %s", sig))
}

func (s *Session) simpleCommand(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.conn.SendRequest(cmd); err != nil {
		return fmt.Errorf("torctrl: %s: %w", cmd, err)
	}
	return nil
}

// GetInfo issues GETINFO for the given keys and returns the key/value
// pairs from the reply's data lines.
func (s *Session) GetInfo(keys ...string) (map[string]string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	resp, err := s.conn.SendRequest("GETINFO %s", strings.Join(keys, " "))
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("torctrl: getinfo %s: %w", strings.Join(keys, " "), err)
	}

	out := make(map[string]string, len(resp.Data))
	for _, line := range resp.Data {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// BootstrapPercent issues GETINFO status/bootstrap-phase and extracts the
// bootstrap percentage, the fallback poll the loader and the re-attach
// fast path use (spec.md §4.6 steps 6 and 8's fallback).
func (s *Session) BootstrapPercent() (int, error) {
	info, err := s.GetInfo("status/bootstrap-phase")
	if err != nil {
		return 0, err
	}
	raw, ok := info["status/bootstrap-phase"]
	if !ok {
		return 0, errors.New("torctrl: status/bootstrap-phase missing from GETINFO reply")
	}
	return ParseBootstrapPercent(raw)
}

// ParseBootstrapPercent extracts the first integer following "PROGRESS="
// in a bootstrap-phase status line, e.g.
// `NOTICE BOOTSTRAP PROGRESS=75 TAG=... SUMMARY="..."` or the bare
// `status/bootstrap-phase=NOTICE BOOTSTRAP PROGRESS=75 ...` GETINFO form.
func ParseBootstrapPercent(phase string) (int, error) {
	const marker = "PROGRESS="
	idx := strings.Index(phase, marker)
	if idx < 0 {
		return 0, fmt.Errorf("torctrl: no %s in bootstrap phase %q", marker, phase)
	}
	rest := phase[idx+len(marker):]
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0, fmt.Errorf("torctrl: malformed PROGRESS value in %q", phase)
	}
	if end < 0 {
		end = len(rest)
	}
	return strconv.Atoi(rest[:end])
}

// SetEvents replaces the session's event registration with exactly names,
// starting the async reader on first use. Calling SetEvents with no
// arguments squelches delivery without tearing down the reader.
func (s *Session) SetEvents(names ...EventName) error {
	codes := make([]control.EventCode, len(names))
	for i, n := range names {
		codes[i] = control.EventCode(n.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.eventConn == nil {
		s.eventConn = make(chan *control.Event, 64)
		s.conn.StartAsyncReader()
		go s.pump(s.eventConn)
	} else if len(s.registered) > 0 {
		if err := s.conn.RemoveEventListener(s.eventConn, s.registered...); err != nil {
			return fmt.Errorf("torctrl: remove previous event registration: %w", err)
		}
	}
	s.registered = nil

	if len(codes) == 0 {
		return nil
	}
	if err := s.conn.AddEventListener(s.eventConn, codes...); err != nil {
		return fmt.Errorf("torctrl: setevents: %w", err)
	}
	s.registered = codes
	return nil
}

func (s *Session) pump(raw chan *control.Event) {
	for ev := range raw {
		if ev == nil {
			continue
		}
		s.events <- Event{Name: string(ev.Type), Lines: ev.Raw}
	}
	close(s.events)
}

// Events returns the channel asynchronous Tor events are delivered on. It
// only carries traffic once SetEvents has registered at least one name;
// it is closed when the session is closed.
func (s *Session) Events() <-chan Event { return s.events }

// Shutdown best-effort signals SIGNAL SHUTDOWN before Close — the
// graceful-degradation path spec.md §4.6 takes when authentication fails
// during a full start, or when authentication or TAKEOWNERSHIP fails
// during a re-attach.
func (s *Session) Shutdown() error {
	_ = s.Signal("SHUTDOWN")
	return s.Close()
}

// Close releases the underlying connection. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.eventConn != nil {
		s.conn.StopAsyncReader()
	}
	return s.conn.Close()
}
