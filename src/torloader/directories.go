// SPDX-License-Identifier: MIT
package torloader

import (
	"os"
	"path/filepath"

	"github.com/apimgr/torsentry/src/torconfig"
)

// prepareDirectories implements spec.md §4.6 full-start step 3: for every
// Directory-attributed setting, create the directory (removing a
// same-named plain file first, if one is in the way), then — for
// hidden-service directories specifically — apply platform permissions.
// Grounded on tor/service.go's os.MkdirAll(0700) directory setup.
func prepareDirectories(cfg torconfig.TorConfig) error {
	for _, s := range torconfig.FilterByAttribute(cfg, torconfig.Directory) {
		root := s.Root()
		dir := root.Argument
		if err := ensureDir(dir); err != nil {
			return wrap(KindIO, "create directory "+dir, err)
		}
		if root.Keyword.Has(torconfig.HiddenService) {
			if err := applyHiddenServicePermissions(dir); err != nil {
				return wrap(KindIO, "set permissions on "+dir, err)
			}
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		if err := os.Remove(dir); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, 0o700)
}

// ensureFileExists creates an empty file at path if nothing is there yet,
// for the torrc/torrc-defaults files full start step 5 requires exist
// before tor is launched against them.
func ensureFileExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}

// dataDirectory returns the argument of cfg's DataDirectory setting, if
// present — the directory torrc/torrc-defaults are written alongside.
func dataDirectory(cfg torconfig.TorConfig) (string, bool) {
	matches := torconfig.FilterByKeyword(cfg, torconfig.DataDirectory)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Root().Argument, true
}

func removeStale(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

func torrcPaths(cfg torconfig.TorConfig) []string {
	dir, ok := dataDirectory(cfg)
	if !ok {
		return nil
	}
	return []string{filepath.Join(dir, "torrc"), filepath.Join(dir, "torrc-defaults")}
}
