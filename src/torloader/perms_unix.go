// SPDX-License-Identifier: MIT
//go:build unix

package torloader

import "os"

// applyHiddenServicePermissions enforces the 0700 mode Tor requires on a
// hidden-service directory.
func applyHiddenServicePermissions(dir string) error {
	return os.Chmod(dir, 0o700)
}
