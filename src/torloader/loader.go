// SPDX-License-Identifier: MIT
// Package torloader implements the Tor process loader: it starts tor,
// races to a usable authenticated control-port connection, and recovers
// an already-running daemon when its artifacts (control-port file, cookie
// file) already exist on disk.
//
// Grounded on tor/service.go's Start/loadOrGenerateKeys directory setup
// and chown-recursive logic, and cypherbits' internal/tor/tor.go's
// DoBootstrap (control-port-file polling loop, TAKEOWNERSHIP,
// STATUS_CLIENT bootstrap tracking) adapted to spec.md §4.6's 250ms/10s
// and 500ms budgets. Process launch and log forwarding follow
// tor/service.go's exec.LookPath("tor")/exec.Command pattern rather than
// bine's own tor.Start, since the loader — not bine — owns directory
// prep, the control-port/cookie race and re-attach.
package torloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torconfig"
	"github.com/apimgr/torsentry/src/torctrl"
	"github.com/apimgr/torsentry/src/torexc"
	"github.com/apimgr/torsentry/src/torjob"
)

const (
	fullStartFileTimeout = 10 * time.Second
	reattachFileTimeout  = 500 * time.Millisecond
)

// ValidatedTorConfig is what a ConfigProvider yields: the config itself,
// its command-line-arguments rendering, and the paths the loader reads
// back to find the control port and (optionally) its cookie.
type ValidatedTorConfig struct {
	Config          torconfig.TorConfig
	Args            []string
	ControlPortFile string
	CookieAuthFile  string
}

// PortAvailable probes whether network/address is free to bind.
type PortAvailable func(network, address string) bool

// ConfigProvider validates and produces a ValidatedTorConfig, consulting
// portAvailable to decide whether a configured port needs reassignment.
type ConfigProvider interface {
	Provide(portAvailable PortAvailable) (ValidatedTorConfig, error)
}

// BootstrapState receives bootstrap-progress updates from the loader.
type BootstrapState interface {
	UpdateOn(percent int)
	UpdateOff(disabled bool)
}

// EventSink receives the tor process's forwarded log lines.
type EventSink interface {
	EmitLog(line string)
}

// Loader drives one Tor instance's process lifecycle.
type Loader struct {
	id            string
	locks         *InstanceLocks
	provider      ConfigProvider
	portAvailable PortAvailable
	state         BootstrapState
	events        EventSink
	handler       torexc.Handler

	mu            sync.Mutex
	cmd           *exec.Cmd
	torJob        *torjob.Job[struct{}]
	lastValidated ValidatedTorConfig
	hasValidated  bool
}

// NewLoader builds a Loader. id identifies this Tor instance in the
// shared InstanceLocks registry (the data directory is the natural
// choice). handler, if nil, defaults to torexc.Print().
func NewLoader(id string, locks *InstanceLocks, provider ConfigProvider, portAvailable PortAvailable, state BootstrapState, events EventSink, handler torexc.Handler) *Loader {
	if handler == nil {
		handler = torexc.Print()
	}
	return &Loader{
		id:            id,
		locks:         locks,
		provider:      provider,
		portAvailable: portAvailable,
		state:         state,
		events:        events,
		handler:       handler,
	}
}

// Start attempts the re-attach fast path against a previously validated
// config on file, falling back to a full start on any failure or if no
// prior config exists.
func (l *Loader) Start(ctx context.Context) (*torctrl.Session, ValidatedTorConfig, error) {
	l.mu.Lock()
	prev := l.lastValidated
	hasPrev := l.hasValidated
	l.mu.Unlock()

	if hasPrev && fileExists(prev.ControlPortFile) && (prev.CookieAuthFile == "" || fileExists(prev.CookieAuthFile)) {
		if sess, err := l.reattach(ctx, prev); err == nil {
			return sess, prev, nil
		}
	}
	return l.fullStart(ctx)
}

// reattach implements spec.md §4.6's six re-attach steps.
func (l *Loader) reattach(ctx context.Context, vcfg ValidatedTorConfig) (*torctrl.Session, error) {
	host, port, err := readControlPortFile(ctx, vcfg.ControlPortFile, reattachFileTimeout, nil)
	if err != nil {
		return nil, err
	}
	cookie, err := readCookieFile(ctx, vcfg.CookieAuthFile, reattachFileTimeout, nil)
	if err != nil {
		return nil, err
	}

	session, err := torctrl.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, wrap(KindIO, "connect control port", err)
	}
	if err := session.Authenticate(cookie); err != nil {
		_ = session.Shutdown()
		return nil, wrap(KindAuthentication, "re-attach authenticate", err)
	}
	if err := session.TakeOwnership(); err != nil {
		_ = session.Shutdown()
		return nil, wrap(KindAuthentication, "re-attach take ownership", err)
	}
	if pct, err := session.BootstrapPercent(); err == nil {
		l.state.UpdateOn(pct)
	}
	return session, nil
}

// fullStart implements spec.md §4.6's ten full-start steps.
func (l *Loader) fullStart(ctx context.Context) (*torctrl.Session, ValidatedTorConfig, error) {
	l.CancelTorJob()

	vcfg, err := l.provider.Provide(l.portAvailable)
	if err != nil {
		return nil, ValidatedTorConfig{}, wrap(KindConfiguration, "validate config", err)
	}

	if err := prepareDirectories(vcfg.Config); err != nil {
		return nil, ValidatedTorConfig{}, err
	}
	removeStale(vcfg.ControlPortFile)
	removeStale(vcfg.CookieAuthFile)
	for _, p := range torrcPaths(vcfg.Config) {
		if err := ensureFileExists(p); err != nil {
			return nil, ValidatedTorConfig{}, wrap(KindIO, "ensure "+p, err)
		}
	}

	job, err := l.launchProcess(vcfg)
	if err != nil {
		return nil, ValidatedTorConfig{}, err
	}
	dead := deadSignal(job)

	host, port, err := readControlPortFile(ctx, vcfg.ControlPortFile, fullStartFileTimeout, dead)
	if err != nil {
		l.CancelTorJob()
		return nil, ValidatedTorConfig{}, err
	}
	cookie, err := readCookieFile(ctx, vcfg.CookieAuthFile, fullStartFileTimeout, dead)
	if err != nil {
		l.CancelTorJob()
		return nil, ValidatedTorConfig{}, err
	}

	session, err := torctrl.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		l.CancelTorJob()
		return nil, ValidatedTorConfig{}, wrap(KindIO, "connect control port", err)
	}
	if err := session.Authenticate(cookie); err != nil {
		_ = session.Shutdown()
		l.CancelTorJob()
		return nil, ValidatedTorConfig{}, wrap(KindAuthentication, "authenticate control port", err)
	}

	l.mu.Lock()
	l.torJob = job
	l.lastValidated = vcfg
	l.hasValidated = true
	l.mu.Unlock()

	return session, vcfg, nil
}

// launchProcess starts the tor binary under the per-instance mutex
// (serializing process starts across loaders sharing l.id), forwards its
// stdout/stderr as events, and returns a job that fails with a synthetic
// "stopped early" error when the process exits.
func (l *Loader) launchProcess(vcfg ValidatedTorConfig) (*torjob.Job[struct{}], error) {
	torPath, err := exec.LookPath("tor")
	if err != nil {
		return nil, wrap(KindIO, "locate tor binary", err)
	}

	cmd := exec.Command(torPath, vcfg.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, wrap(KindIO, "attach tor stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, wrap(KindIO, "attach tor stderr", err)
	}

	job, err := torjob.New[struct{}]("tor-process", torcallback.NoopFailure(), l.handler)
	if err != nil {
		return nil, err
	}
	if err := job.Begin(); err != nil {
		return nil, err
	}

	release := l.locks.Lock(l.id)
	startErr := cmd.Start()
	release()
	if startErr != nil {
		_ = job.Fail(wrap(KindIO, "start tor process", startErr), nil)
		return nil, wrap(KindIO, "start tor process", startErr)
	}

	l.mu.Lock()
	l.cmd = cmd
	l.mu.Unlock()

	go l.forwardLines(stdout)
	go l.forwardLines(stderr)

	go func() {
		waitErr := cmd.Wait()
		if waitErr == nil {
			waitErr = errors.New("tor process exited")
		}
		_ = job.Fail(fmt.Errorf("tor process stopped early - bad config?: %w", waitErr), nil)
	}()

	job.InvokeOnCompletion(torcallback.NewExecutable(func() {
		l.state.UpdateOff(true)
	}))

	return job, nil
}

func (l *Loader) forwardLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l.events.EmitLog(scanner.Text())
	}
}

// deadSignal returns a channel that receives one error the moment job
// terminates in any state but Success: the job's cancellation cause, or a
// generic "tor process terminated" error when it ended any other way (the
// process's own exit error is not forwarded). It is the "tor job has
// exited" signal the file-polling loops select on to stop immediately
// rather than waiting out their timeout.
func deadSignal(job *torjob.Job[struct{}]) <-chan error {
	ch := make(chan error, 1)
	job.InvokeOnCompletion(torcallback.NewExecutable(func() {
		if job.State() == torjob.Success {
			return
		}
		cause := job.CancellationCause()
		if cause == nil {
			cause = errors.New("torloader: tor process terminated")
		}
		select {
		case ch <- cause:
		default:
		}
	}))
	return ch
}

// CancelTorJob cancels the tracked tor job if still enqueued, or kills
// the underlying process if it is already running — "cancel_tor_job only
// cancels" per spec.md §4.6's Close contract.
func (l *Loader) CancelTorJob() {
	l.mu.Lock()
	job := l.torJob
	cmd := l.cmd
	l.torJob = nil
	l.cmd = nil
	l.mu.Unlock()

	if job != nil && job.Cancel(torjob.NewCancellationCause("loader: cancelled before execution")) {
		return
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Close cancels the tor job and releases everything owned by this loader
// except the shared instance-mutex registry entry, which is an explicit
// operation tied to manager destruction (ReleaseInstanceLock).
func (l *Loader) Close() error {
	l.CancelTorJob()
	return nil
}

// ReleaseInstanceLock removes this loader's entry from the shared
// InstanceLocks registry. Call once, when the owning manager is
// destroyed.
func (l *Loader) ReleaseInstanceLock() {
	l.locks.Remove(l.id)
}
