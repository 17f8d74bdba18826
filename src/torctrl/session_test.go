// SPDX-License-Identifier: MIT
package torctrl

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cretz/bine/control"
)

// fakeConn is an in-memory ControlConn standing in for a live tor process.
type fakeConn struct {
	mu sync.Mutex

	requests    []string
	nextErr     error
	responses   map[string]*control.Response
	listenerCh  chan<- *control.Event
	listenedFor []control.EventCode
	asyncStarts int
	asyncStops  int
	closed      bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{responses: map[string]*control.Response{}}
}

func (f *fakeConn) SendRequest(format string, args ...interface{}) (*control.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := format
	if len(args) > 0 {
		cmd = sprintfCompat(format, args...)
	}
	f.requests = append(f.requests, cmd)
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, err
	}
	if resp, ok := f.responses[cmd]; ok {
		return resp, nil
	}
	return &control.Response{}, nil
}

// sprintfCompat avoids importing fmt twice at call sites that already
// build their command text through SendRequest's own formatting.
func sprintfCompat(format string, args ...interface{}) string {
	out := format
	for _, a := range args {
		out = strings.Replace(out, "%s", a.(string), 1)
	}
	return out
}

func (f *fakeConn) StartAsyncReader() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asyncStarts++
}

func (f *fakeConn) StopAsyncReader() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asyncStops++
}

func (f *fakeConn) AddEventListener(ch chan<- *control.Event, events ...control.EventCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listenerCh = ch
	f.listenedFor = events
	return nil
}

func (f *fakeConn) RemoveEventListener(ch chan<- *control.Event, events ...control.EventCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listenedFor = nil
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestAuthenticateWithCookieHexEncodes(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	cookie := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := s.Authenticate(cookie); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if len(fc.requests) != 1 || fc.requests[0] != "AUTHENTICATE deadbeef" {
		t.Fatalf("expected hex-encoded AUTHENTICATE request, got %v", fc.requests)
	}
}

func TestAuthenticateWithEmptyCookie(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	if err := s.Authenticate(nil); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if len(fc.requests) != 1 || fc.requests[0] != "AUTHENTICATE" {
		t.Fatalf("expected bare AUTHENTICATE request, got %v", fc.requests)
	}
}

func TestTakeOwnershipAndSignal(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	if err := s.TakeOwnership(); err != nil {
		t.Fatalf("TakeOwnership returned error: %v", err)
	}
	if err := s.Signal("NEWNYM"); err != nil {
		t.Fatalf("Signal returned error: %v", err)
	}
	if len(fc.requests) != 2 || fc.requests[0] != "TAKEOWNERSHIP" || fc.requests[1] != "SIGNAL NEWNYM" {
		t.Fatalf("unexpected requests: %v", fc.requests)
	}
}

func TestGetInfoParsesKeyValueLines(t *testing.T) {
	fc := newFakeConn()
	fc.responses["GETINFO version"] = &control.Response{Data: []string{"version=0.4.8.10"}}
	s := NewSession(fc)

	info, err := s.GetInfo("version")
	if err != nil {
		t.Fatalf("GetInfo returned error: %v", err)
	}
	if info["version"] != "0.4.8.10" {
		t.Fatalf("expected version 0.4.8.10, got %v", info)
	}
}

func TestBootstrapPercentExtractsProgress(t *testing.T) {
	fc := newFakeConn()
	fc.responses["GETINFO status/bootstrap-phase"] = &control.Response{
		Data: []string{"status/bootstrap-phase=NOTICE BOOTSTRAP PROGRESS=75 TAG=done SUMMARY=\"Done\""},
	}
	s := NewSession(fc)

	pct, err := s.BootstrapPercent()
	if err != nil {
		t.Fatalf("BootstrapPercent returned error: %v", err)
	}
	if pct != 75 {
		t.Fatalf("expected 75, got %d", pct)
	}
}

func TestParseBootstrapPercentRejectsMissingMarker(t *testing.T) {
	if _, err := ParseBootstrapPercent("NOTICE BOOTSTRAP TAG=done"); err == nil {
		t.Fatalf("expected an error when PROGRESS= is absent")
	}
}

func TestSendRequestErrorIsWrapped(t *testing.T) {
	fc := newFakeConn()
	fc.nextErr = errors.New("connection reset")
	s := NewSession(fc)

	if err := s.TakeOwnership(); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSetEventsStartsAsyncReaderOnce(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)

	if err := s.SetEvents(EventStatusClient); err != nil {
		t.Fatalf("SetEvents returned error: %v", err)
	}
	if fc.asyncStarts != 1 {
		t.Fatalf("expected the async reader to start exactly once, got %d", fc.asyncStarts)
	}
	if len(fc.listenedFor) != 1 || fc.listenedFor[0] != control.EventCode("STATUS_CLIENT") {
		t.Fatalf("expected registration for STATUS_CLIENT, got %v", fc.listenedFor)
	}

	if err := s.SetEvents(); err != nil {
		t.Fatalf("squelching SetEvents returned error: %v", err)
	}
	if fc.asyncStarts != 1 {
		t.Fatalf("expected the async reader not to restart, got %d starts", fc.asyncStarts)
	}
}

func TestEventPumpForwardsToEventsChannel(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	if err := s.SetEvents(EventCirc); err != nil {
		t.Fatalf("SetEvents returned error: %v", err)
	}

	fc.listenerCh <- &control.Event{Type: control.EventCode("CIRC"), Raw: []string{"CIRC 1 LAUNCHED"}}
	ev := <-s.Events()
	if ev.Name != "CIRC" || len(ev.Lines) != 1 || ev.Lines[0] != "CIRC 1 LAUNCHED" {
		t.Fatalf("unexpected event delivered: %+v", ev)
	}
}

func TestCloseIsIdempotentAndStopsAsyncReader(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	if err := s.SetEvents(EventCirc); err != nil {
		t.Fatalf("SetEvents returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if fc.asyncStops != 1 {
		t.Fatalf("expected StopAsyncReader called exactly once, got %d", fc.asyncStops)
	}
	if !fc.closed {
		t.Fatalf("expected underlying connection closed")
	}
}

func TestOperationsAfterCloseReturnErrClosed(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := s.TakeOwnership(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.GetInfo("version"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Authenticate(nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLookupEventNameResolvesRegisteredNames(t *testing.T) {
	e, ok := LookupEventName("HS_DESC")
	if !ok || e.String() != "HS_DESC" {
		t.Fatalf("expected to resolve HS_DESC, got %v, %v", e, ok)
	}
	if _, ok := LookupEventName("NOT_A_REAL_EVENT"); ok {
		t.Fatalf("expected an unregistered name to miss")
	}
}

func TestShutdownSignalsBeforeClosing(t *testing.T) {
	fc := newFakeConn()
	s := NewSession(fc)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if len(fc.requests) != 1 || fc.requests[0] != "SIGNAL SHUTDOWN" {
		t.Fatalf("expected a SIGNAL SHUTDOWN request, got %v", fc.requests)
	}
	if !fc.closed {
		t.Fatalf("expected the connection to be closed after Shutdown")
	}
}
