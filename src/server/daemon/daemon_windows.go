// SPDX-License-Identifier: MIT
//go:build windows

package daemon

import (
	"fmt"
	"os"
)

// Daemonize on Windows is not supported
// Windows does not support traditional Unix daemonization
// The process keeps running in the foreground instead
func Daemonize() error {
	// On Windows, --daemon flag is ignored with a warning
	fmt.Fprintln(os.Stderr, "Warning: --daemon is not supported on Windows")
	fmt.Fprintln(os.Stderr, "Continuing in the foreground")
	// Continue in foreground
	return nil
}
