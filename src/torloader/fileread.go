// SPDX-License-Identifier: MIT
package torloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const pollInterval = 250 * time.Millisecond
const minReadTimeout = 500 * time.Millisecond

// readControlPortFile implements spec.md §4.6/§6's control-port file read
// contract: poll every 250ms until timeout (>= 500ms, enforced), reading
// the first line, splitting on "=" then ":" to recover host and port. If
// dead fires first (the tor job exited before the file appeared), that
// failure is surfaced immediately rather than waiting out the timeout.
func readControlPortFile(ctx context.Context, path string, timeout time.Duration, dead <-chan error) (host, port string, err error) {
	if timeout < minReadTimeout {
		return "", "", fmt.Errorf("torloader: control-port file read timeout must be >= %s", minReadTimeout)
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			return parseControlPortLine(firstLine(data))
		}
		if !os.IsNotExist(readErr) {
			return "", "", wrap(KindIO, "read control-port file", readErr)
		}
		if time.Now().After(deadline) {
			return "", "", wrap(KindTimeout, "control-port file", fmt.Errorf("%s not present after %s", path, timeout))
		}
		select {
		case <-ctx.Done():
			return "", "", wrap(KindCancellation, "control-port file", ctx.Err())
		case cause := <-dead:
			return "", "", wrap(KindProcessDiedEarly, "control-port file", cause)
		case <-ticker.C:
		}
	}
}

func parseControlPortLine(line string) (host, port string, err error) {
	kv := strings.SplitN(line, "=", 2)
	if len(kv) != 2 || kv[0] != "PORT" {
		return "", "", wrap(KindIO, "parse control-port file", fmt.Errorf("malformed control-port line %q", line))
	}
	idx := strings.LastIndex(kv[1], ":")
	if idx < 0 {
		return "", "", wrap(KindIO, "parse control-port file", fmt.Errorf("malformed host:port %q", kv[1]))
	}
	return kv[1][:idx], kv[1][idx+1:], nil
}

func firstLine(data []byte) string {
	if idx := strings.IndexByte(string(data), '\n'); idx >= 0 {
		data = data[:idx]
	}
	return strings.TrimRight(string(data), "\r")
}

// readCookieFile implements the cookie-auth file read contract: poll for
// existence, then read exactly the file's reported length into a buffer,
// failing if an intermediate read hits EOF before the length is covered
// (io.ReadFull's own contract). An empty path means no cookie file is
// expected, returning (nil, nil) immediately. Failures surfaced via dead
// are wrapped as "interrupted", per spec.md §7.
func readCookieFile(ctx context.Context, path string, timeout time.Duration, dead <-chan error) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	if timeout < minReadTimeout {
		return nil, fmt.Errorf("torloader: cookie file read timeout must be >= %s", minReadTimeout)
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		info, statErr := os.Stat(path)
		if statErr == nil {
			return readExact(path, info.Size())
		}
		if !os.IsNotExist(statErr) {
			return nil, wrap(KindIO, "stat cookie file", statErr)
		}
		if time.Now().After(deadline) {
			return nil, wrap(KindTimeout, "cookie file", fmt.Errorf("%s not present after %s", path, timeout))
		}
		select {
		case <-ctx.Done():
			return nil, wrap(KindCancellation, "cookie file", ctx.Err())
		case cause := <-dead:
			return nil, wrap(KindProcessDiedEarly, "cookie file", fmt.Errorf("interrupted: %w", cause))
		case <-ticker.C:
		}
	}
}

func readExact(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrap(KindIO, "open cookie file", err)
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, wrap(KindIO, "read cookie file", fmt.Errorf("truncated before reaching reported length %d: %w", size, err))
		}
		return nil, wrap(KindIO, "read cookie file", err)
	}
	return buf, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
