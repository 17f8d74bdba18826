// SPDX-License-Identifier: MIT
package torconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// HiddenServicePortMapping is one "virtual port -> target" entry in a
// hidden-service group. Target may be a bare TCP port, a "host:port"
// address, or a "unix:/path" socket; an empty Target means "same as
// Virtual".
type HiddenServicePortMapping struct {
	Virtual int
	Target  string
}

// NewHiddenServicePortMapping constructs a port mapping.
func NewHiddenServicePortMapping(virtual int, target string) HiddenServicePortMapping {
	return HiddenServicePortMapping{Virtual: virtual, Target: target}
}

// HiddenServiceOptions configures BuildHiddenService. Construct with
// NewHiddenServiceOptions to get the documented defaults.
type HiddenServiceOptions struct {
	Dir     string
	Version int
	Ports   []HiddenServicePortMapping

	AllowUnknownPorts      bool
	MaxStreams             int
	MaxStreamsCloseCircuit bool
	DirGroupReadable       bool
	NumIntroductionPoints  int
}

// NewHiddenServiceOptions returns options for dir/version/ports with the
// spec's defaults: AllowUnknownPorts=false, MaxStreams=0,
// MaxStreamsCloseCircuit=false, DirGroupReadable=false,
// NumIntroductionPoints=3.
func NewHiddenServiceOptions(dir string, version int, ports ...HiddenServicePortMapping) *HiddenServiceOptions {
	return &HiddenServiceOptions{
		Dir:                   dir,
		Version:               version,
		Ports:                 ports,
		NumIntroductionPoints: 3,
	}
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// BuildHiddenService renders opts into a multi-line Setting rooted at
// HiddenServiceDir, or (_, false) if a directory, a supported version
// (only 3), or at least one port mapping is missing.
// NumIntroductionPoints is clamped to 1..20; MaxStreams is clamped to
// 0..65535, the general port range — per spec.md §9's open question, the
// true tor-side limit is unconfirmed, so this bound is preserved rather
// than guessed tighter.
func BuildHiddenService(opts *HiddenServiceOptions) (Setting, bool) {
	if opts == nil || strings.TrimSpace(opts.Dir) == "" || opts.Version != 3 || len(opts.Ports) == 0 {
		return Setting{}, false
	}

	n := opts.NumIntroductionPoints
	if n < 1 {
		n = 1
	}
	if n > 20 {
		n = 20
	}
	maxStreams := opts.MaxStreams
	if maxStreams < 0 {
		maxStreams = 0
	}
	if maxStreams > 65535 {
		maxStreams = 65535
	}

	items := []LineItem{
		rawLineItem(HiddenServiceDir, opts.Dir),
		rawLineItem(HiddenServiceVersion, strconv.Itoa(opts.Version)),
	}
	for _, p := range opts.Ports {
		target := p.Target
		if target == "" {
			target = strconv.Itoa(p.Virtual)
		}
		items = append(items, rawLineItem(HiddenServicePort, fmt.Sprintf("%d %s", p.Virtual, target)))
	}
	items = append(items,
		rawLineItem(HiddenServiceAllowUnknownPorts, boolArg(opts.AllowUnknownPorts)),
		rawLineItem(HiddenServiceMaxStreams, strconv.Itoa(maxStreams)),
		rawLineItem(HiddenServiceMaxStreamsCloseCircuit, boolArg(opts.MaxStreamsCloseCircuit)),
		rawLineItem(HiddenServiceDirGroupReadable, boolArg(opts.DirGroupReadable)),
		rawLineItem(HiddenServiceNumIntroductionPoints, strconv.Itoa(n)),
	)

	s, err := NewSetting(items...)
	if err != nil {
		return Setting{}, false
	}
	return s, true
}
