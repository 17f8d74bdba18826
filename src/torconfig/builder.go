// SPDX-License-Identifier: MIT
package torconfig

import "strings"

// TorConfig is an ordered, immutable set of Setting, safe to share freely
// once built.
type TorConfig struct {
	settings []Setting
}

// Settings returns a copy of the config's settings, in build order.
func (c TorConfig) Settings() []Setting { return append([]Setting{}, c.settings...) }

// String renders every setting, joined by blank-line-free newlines.
func (c TorConfig) String() string {
	lines := make([]string, len(c.settings))
	for i, s := range c.settings {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}

// Equal compares two configs as sets of settings under §3 root-item
// equality, ignoring build order.
func (c TorConfig) Equal(other TorConfig) bool {
	if len(c.settings) != len(other.settings) {
		return false
	}
	seen := map[string]bool{}
	for _, s := range other.settings {
		seen[dedupKey(s.Root())] = true
	}
	for _, s := range c.settings {
		if !seen[dedupKey(s.Root())] {
			return false
		}
	}
	return true
}

// Builder assembles a TorConfig. Not safe for concurrent use; the
// TorConfig it produces is immutable and freely shareable.
//
// dedupKey (lineitem.go) encodes each LineItem independently from its own
// keyword's attributes, never comparing two items directly — yet this
// correctly implements the §3 rules, which all take the form "if both
// items carry attribute X, compare Y". An item can only produce a given
// encoding if its own keyword carries the attribute that encoding
// represents, so two items' encodings can only collide when both satisfy
// the "both carry X" precondition the corresponding branch requires.
type Builder struct {
	settings      []Setting
	index         map[string]int
	disabledPorts map[string]Setting
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: map[string]int{}, disabledPorts: map[string]Setting{}}
}

// Put inserts setting unconditionally, replacing any existing setting it
// collides with under §3 equality.
func (b *Builder) Put(s Setting) *Builder {
	key := dedupKey(s.Root())
	if idx, ok := b.index[key]; ok {
		b.settings[idx] = s
	} else {
		b.index[key] = len(b.settings)
		b.settings = append(b.settings, s)
	}
	root := s.Root()
	if root.Keyword.Has(Port) && !isZeroOrAuto(root.Argument) {
		delete(b.disabledPorts, root.Keyword.Name)
	}
	return b
}

// PutIfAbsent inserts setting only if nothing already collides with it.
func (b *Builder) PutIfAbsent(s Setting) *Builder {
	if _, ok := b.index[dedupKey(s.Root())]; ok {
		return b
	}
	return b.Put(s)
}

// InheritFrom seeds the builder from an already-built base config. Its
// disabled ports (Port-attributed root with argument "0") are tracked
// separately rather than inserted directly, so a subsequent explicit
// Put of a non-disabled port for the same keyword can override them
// before Build merges any that remain back in.
func (b *Builder) InheritFrom(base TorConfig) *Builder {
	for _, s := range base.settings {
		root := s.Root()
		if root.Keyword.Has(Port) && root.Argument == "0" {
			b.disabledPorts[root.Keyword.Name] = s
			continue
		}
		b.Put(s)
	}
	return b
}

// Build finalizes the config: inherited disabled ports not since
// overridden by an explicit port for the same keyword are merged back
// in, then the port-disable sweep removes, for every Port-attributed
// setting with argument "0", every other setting sharing its exact
// keyword. Hidden-service groups are structurally exempt: their root is
// a HiddenServiceDir item (Directory-attributed, never Port-attributed),
// so they can never be swept regardless of what their HiddenServicePort
// sub-items contain.
func (b *Builder) Build() TorConfig {
	// Put already drops a keyword's entry from disabledPorts the moment an
	// explicit non-disabled port for it is inserted, so anything still
	// here at Build time was never overridden.
	for _, disabled := range b.disabledPorts {
		key := dedupKey(disabled.Root())
		if _, ok := b.index[key]; ok {
			continue
		}
		b.index[key] = len(b.settings)
		b.settings = append(b.settings, disabled)
	}

	disabledKeywords := map[string]bool{}
	for _, s := range b.settings {
		root := s.Root()
		if root.Keyword.Has(Port) && root.Argument == "0" {
			disabledKeywords[root.Keyword.Name] = true
		}
	}

	final := make([]Setting, 0, len(b.settings))
	for _, s := range b.settings {
		root := s.Root()
		if disabledKeywords[root.Keyword.Name] && root.Argument != "0" {
			continue
		}
		final = append(final, s)
	}
	return TorConfig{settings: final}
}
