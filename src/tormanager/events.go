// SPDX-License-Identifier: MIT
package tormanager

import (
	"github.com/apimgr/torsentry/src/torctrl"
	"github.com/apimgr/torsentry/src/torevent"
)

// RuntimePayload is the shared payload type for the manager's own runtime
// event family (distinct from the raw Tor control-port events the daemon
// itself emits). Kind discriminates which of the family's two members
// produced a given delivery, since a torevent family is, by design, one
// payload type shared across a closed set of named singletons rather than
// one type per event.
type RuntimePayload struct {
	Kind     string
	Percent  int
	Disabled bool
	Line     string
}

const (
	// KindBootstrap marks a RuntimePayload carrying bootstrap progress.
	KindBootstrap = "bootstrap"
	// KindLog marks a RuntimePayload carrying a forwarded tor log line.
	KindLog = "log"
)

var (
	// EventBootstrap fires on every bootstrap-percentage update and on
	// the transition to Off/Disabled when the process exits.
	EventBootstrap = torevent.NewEvent[RuntimePayload]("bootstrap")
	// EventLog fires once per line the tor process writes to stdout/stderr.
	EventLog = torevent.NewEvent[RuntimePayload]("log")
)

// EventTorControl is the single member of the raw-control-event family:
// every asynchronous event the control connection delivers (CIRC, STREAM,
// STATUS_CLIENT, ...) is published under this one name, with the original
// Tor event name preserved on the payload for observers that care which
// kind it was.
var EventTorControl = torevent.NewEvent[torctrl.Event]("tor-control-event")
