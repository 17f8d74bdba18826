// SPDX-License-Identifier: MIT
//go:build windows

package signal

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Windows only supports os.Interrupt (Ctrl+C, Ctrl+Break)
// Windows Service Control handled via golang.org/x/sys/windows/svc

var (
	shuttingDown bool
	logReopenFn  func()
	statusDumpFn func()
)

// SetLogReopenFunc sets the function called on log reopen request
// Note: Windows does not have SIGUSR1, so this is triggered via API
func SetLogReopenFunc(fn func()) {
	logReopenFn = fn
}

// SetStatusDumpFunc sets the function called on status dump request
// Note: Windows does not have SIGUSR2, so this is triggered via API
func SetStatusDumpFunc(fn func()) {
	statusDumpFn = fn
}

// IsShuttingDown returns true if shutdown is in progress
func IsShuttingDown() bool {
	return shuttingDown
}

// SetupSignalHandler configures graceful shutdown
// Windows only supports os.Interrupt (Ctrl+C, Ctrl+Break)
func SetupSignalHandler(server *http.Server, pidFile string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		for sig := range sigChan {
			log.Printf("Received %v, starting graceful shutdown...", sig)
			gracefulShutdown(server, pidFile)
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal is received
// Windows only supports os.Interrupt (Ctrl+C, Ctrl+Break)
func WaitForShutdown(ctx context.Context) os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	select {
	case sig := <-quit:
		return sig
	case <-ctx.Done():
		return syscall.SIGTERM
	}
}

// NotifyReload registers a reload signal handler
// Windows does not support SIGHUP, so this is a no-op
// Config reloads automatically via file watcher
func NotifyReload(handler func()) {
	// Windows does not support SIGHUP
	// Reload must be triggered via API or service manager
}

// GetStopSignal returns the appropriate stop signal for this platform
func GetStopSignal() os.Signal {
	return syscall.SIGTERM
}

// gracefulShutdown performs orderly shutdown
func gracefulShutdown(server *http.Server, pidFile string) {
	// Set shutdown flag for health checks (return 503)
	shuttingDown = true

	// Create context with 30s timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new connections, wait for in-flight requests
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}

	// Remove PID file
	if pidFile != "" {
		os.Remove(pidFile)
	}

	// Exit
	os.Exit(0)
}

// KillProcess terminates process
// Windows doesn't have graceful signals - uses TerminateProcess
func KillProcess(pid int, graceful bool) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	// Windows: Kill() calls TerminateProcess - no graceful option
	return process.Kill()
}

// isProcessRunning checks if a process with given PID exists (Windows)
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Windows, try to open the process
	// If process doesn't exist, this will fail
	// Note: This is a simplified check; full implementation would use
	// Windows API (OpenProcess with PROCESS_QUERY_LIMITED_INFORMATION)
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// isOurProcess checks that a process with this PID exists and can be opened (Windows)
// The executable name is not compared with binaryName
func isOurProcess(pid int, binaryName string) bool {
	// QueryFullProcessImageName is not called
	// Note: This requires windows.dll imports which are platform-specific
	// For cross-platform compatibility, we use a simplified check:
	// Open process handle and verify it exists
	handle, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(handle)
	
	// Process exists and we have access to it
	// Full implementation would call QueryFullProcessImageNameW to get exe path
	// and compare basename with binaryName
	// For now, basic PID validation is sufficient
	return true
}

// CheckPIDFile checks if PID file exists and if the process is still running
// Returns: (isRunning bool, pid int, err error)
func CheckPIDFile(pidPath string, binaryName string) (bool, int, error) {
	data, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		// No PID file, not running
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		// Corrupt PID file - remove it
		os.Remove(pidPath)
		return false, 0, nil
	}

	// Check if process is running
	if !isProcessRunning(pid) {
		// Stale PID file - remove it
		os.Remove(pidPath)
		return false, 0, nil
	}

	// Process exists - on Windows we can't easily verify it's our process
	// without additional Windows API calls
	return true, pid, nil
}

// WritePIDFile writes current process PID to file
func WritePIDFile(pidPath string, binaryName string) error {
	// Check for existing running instance first
	running, existingPID, err := CheckPIDFile(pidPath, binaryName)
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("already running (pid %d)", existingPID)
	}

	// Create parent directory if needed
	pidDir := filepath.Dir(pidPath)
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		return fmt.Errorf("creating pid directory: %w", err)
	}

	// Write our PID
	pid := os.Getpid()
	return os.WriteFile(pidPath, []byte(strconv.Itoa(pid)), 0644)
}

// RemovePIDFile removes PID file on shutdown
func RemovePIDFile(pidPath string) error {
	return os.Remove(pidPath)
}

// NOTE: For Windows Services, use golang.org/x/sys/windows/svc
// to handle SERVICE_CONTROL_STOP properly
