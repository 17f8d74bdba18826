// SPDX-License-Identifier: MIT
package torloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/apimgr/torsentry/src/torconfig"
)

func TestErrorKindWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := wrap(KindIO, "doing thing", cause)
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if te.Kind != KindIO {
		t.Fatalf("kind = %q, want %q", te.Kind, KindIO)
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error does not unwrap to cause")
	}
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if err := wrap(KindIO, "context", nil); err != nil {
		t.Fatalf("wrap(nil) = %v, want nil", err)
	}
}

func TestInstanceLocksMutualExclusion(t *testing.T) {
	locks := NewInstanceLocks()
	release := locks.Lock("alpha")

	acquired := make(chan struct{})
	go func() {
		release2 := locks.Lock("alpha")
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on same key acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after release")
	}
}

func TestInstanceLocksDistinctKeysDoNotContend(t *testing.T) {
	locks := NewInstanceLocks()
	release := locks.Lock("alpha")
	defer release()

	done := make(chan struct{})
	go func() {
		release2 := locks.Lock("beta")
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on distinct key blocked unexpectedly")
	}
}

func TestInstanceLocksRemove(t *testing.T) {
	locks := NewInstanceLocks()
	release := locks.Lock("gamma")
	release()
	locks.Remove("gamma")

	locks.mu.Lock()
	_, exists := locks.locks["gamma"]
	locks.mu.Unlock()
	if exists {
		t.Fatal("Remove did not delete the registry entry")
	}
}

func TestReadControlPortFileRejectsSubMinimumTimeout(t *testing.T) {
	_, _, err := readControlPortFile(context.Background(), "/nonexistent", 100*time.Millisecond, nil)
	if err == nil {
		t.Fatal("expected error for sub-minimum timeout")
	}
}

func TestReadControlPortFileParsesHostPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control-port")
	if err := os.WriteFile(path, []byte("PORT=127.0.0.1:9051\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	host, port, err := readControlPortFile(context.Background(), path, minReadTimeout, nil)
	if err != nil {
		t.Fatalf("readControlPortFile: %v", err)
	}
	if host != "127.0.0.1" || port != "9051" {
		t.Fatalf("got %s:%s, want 127.0.0.1:9051", host, port)
	}
}

func TestReadControlPortFileTimesOutWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-created")
	start := time.Now()
	_, _, err := readControlPortFile(context.Background(), path, minReadTimeout, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed < minReadTimeout {
		t.Fatalf("returned after %s, want at least %s", elapsed, minReadTimeout)
	}
}

func TestReadControlPortFileRespondsToDeadChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-created")
	dead := make(chan error, 1)
	dead <- errors.New("process exited")

	start := time.Now()
	_, _, err := readControlPortFile(context.Background(), path, 10*time.Second, dead)
	if err == nil {
		t.Fatal("expected error from dead channel")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("took %s, expected near-immediate return on dead signal", elapsed)
	}
}

func TestReadControlPortFileRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control-port")
	if err := os.WriteFile(path, []byte("GARBAGE\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := readControlPortFile(context.Background(), path, minReadTimeout, nil); err == nil {
		t.Fatal("expected parse error for malformed line")
	}
}

func TestReadCookieFileEmptyPathReturnsNil(t *testing.T) {
	cookie, err := readCookieFile(context.Background(), "", minReadTimeout, nil)
	if err != nil {
		t.Fatalf("readCookieFile: %v", err)
	}
	if cookie != nil {
		t.Fatalf("expected nil cookie for empty path, got %v", cookie)
	}
}

func TestReadCookieFileReadsExactLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control_auth_cookie")
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}
	if err := os.WriteFile(path, want, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := readCookieFile(context.Background(), path, minReadTimeout, nil)
	if err != nil {
		t.Fatalf("readCookieFile: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %x, want %x", i, got[i], want[i])
		}
	}
}

func TestReadCookieFileDeadChannelWrapsInterrupted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-created")
	dead := make(chan error, 1)
	dead <- errors.New("process exited early")

	_, err := readCookieFile(context.Background(), path, 10*time.Second, dead)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !contains(got, "interrupted") {
		t.Fatalf("error %q does not mention interruption", got)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestEnsureDirRemovesBlockingFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "datadir")
	if err := os.WriteFile(target, []byte("not a directory"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := ensureDir(target); err != nil {
		t.Fatalf("ensureDir: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected target to become a directory")
	}
}

func TestEnsureFileExistsCreatesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "torrc")
	if err := ensureFileExists(path); err != nil {
		t.Fatalf("ensureFileExists: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty file, got size %d", info.Size())
	}

	if err := os.WriteFile(path, []byte("existing content"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := ensureFileExists(path); err != nil {
		t.Fatalf("ensureFileExists (existing): %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "existing content" {
		t.Fatal("ensureFileExists overwrote an existing file")
	}
}

func TestRemoveStaleIgnoresMissingAndEmptyPath(t *testing.T) {
	removeStale("")
	removeStale(filepath.Join(t.TempDir(), "does-not-exist"))
}

func dataDirSetting(t *testing.T, dir string) torconfig.Setting {
	t.Helper()
	item, err := torconfig.NewLineItem(torconfig.DataDirectory, dir)
	if err != nil {
		t.Fatalf("NewLineItem: %v", err)
	}
	s, err := torconfig.NewSetting(item)
	if err != nil {
		t.Fatalf("NewSetting: %v", err)
	}
	return s
}

func TestTorrcPathsDerivedFromDataDirectory(t *testing.T) {
	cfg := torconfig.NewBuilder().
		Put(dataDirSetting(t, "/var/lib/tor")).
		Build()
	paths := torrcPaths(cfg)
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2", len(paths))
	}
	if paths[0] != filepath.Join("/var/lib/tor", "torrc") {
		t.Fatalf("paths[0] = %s", paths[0])
	}
	if paths[1] != filepath.Join("/var/lib/tor", "torrc-defaults") {
		t.Fatalf("paths[1] = %s", paths[1])
	}
}

func TestTorrcPathsNilWithoutDataDirectory(t *testing.T) {
	cfg := torconfig.NewBuilder().Build()
	if paths := torrcPaths(cfg); paths != nil {
		t.Fatalf("expected nil paths, got %v", paths)
	}
}

func TestPrepareDirectoriesCreatesDataDirectory(t *testing.T) {
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	cfg := torconfig.NewBuilder().
		Put(dataDirSetting(t, dataDir)).
		Build()
	if err := prepareDirectories(cfg); err != nil {
		t.Fatalf("prepareDirectories: %v", err)
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected data directory to be created")
	}
}

type fakeBootstrapState struct {
	mu   sync.Mutex
	on   []int
	offs int
}

func (f *fakeBootstrapState) UpdateOn(percent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = append(f.on, percent)
}

func (f *fakeBootstrapState) UpdateOff(disabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offs++
}

type fakeEventSink struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeEventSink) EmitLog(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

type staticProvider struct {
	vcfg ValidatedTorConfig
	err  error
}

func (p staticProvider) Provide(PortAvailable) (ValidatedTorConfig, error) {
	return p.vcfg, p.err
}

func TestFullStartPropagatesProviderError(t *testing.T) {
	loader := NewLoader(
		"instance-a",
		NewInstanceLocks(),
		staticProvider{err: errors.New("invalid torrc")},
		func(string, string) bool { return true },
		&fakeBootstrapState{},
		&fakeEventSink{},
		nil,
	)

	_, _, err := loader.fullStart(context.Background())
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	var te *Error
	if !errors.As(err, &te) || te.Kind != KindConfiguration {
		t.Fatalf("expected KindConfiguration error, got %v", err)
	}
}

func TestStartFallsBackToFullStartWithoutPriorConfig(t *testing.T) {
	loader := NewLoader(
		"instance-b",
		NewInstanceLocks(),
		staticProvider{err: errors.New("no tor binary in test environment")},
		func(string, string) bool { return true },
		&fakeBootstrapState{},
		&fakeEventSink{},
		nil,
	)

	_, _, err := loader.Start(context.Background())
	if err == nil {
		t.Fatal("expected error since no prior validated config exists and provider fails")
	}
}

func TestCancelTorJobNoopWithoutTrackedJob(t *testing.T) {
	loader := NewLoader(
		"instance-c",
		NewInstanceLocks(),
		staticProvider{},
		func(string, string) bool { return true },
		&fakeBootstrapState{},
		&fakeEventSink{},
		nil,
	)
	loader.CancelTorJob()
	if err := loader.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReleaseInstanceLockRemovesRegistryEntry(t *testing.T) {
	locks := NewInstanceLocks()
	loader := NewLoader(
		"instance-d",
		locks,
		staticProvider{},
		func(string, string) bool { return true },
		&fakeBootstrapState{},
		&fakeEventSink{},
		nil,
	)
	release := locks.Lock("instance-d")
	release()
	loader.ReleaseInstanceLock()

	locks.mu.Lock()
	_, exists := locks.locks["instance-d"]
	locks.mu.Unlock()
	if exists {
		t.Fatal("ReleaseInstanceLock did not remove the entry")
	}
}
