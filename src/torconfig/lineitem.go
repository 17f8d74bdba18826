// SPDX-License-Identifier: MIT
package torconfig

import (
	"errors"
	"fmt"
	"strings"
)

// LineItem is a single "keyword argument optionals..." configuration
// line. Argument and each optional must be non-blank and single-line.
type LineItem struct {
	Keyword   Keyword
	Argument  string
	Optionals []string
}

func singleLine(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("torconfig: value must be non-blank")
	}
	if strings.ContainsAny(s, "\r\n") {
		return errors.New("torconfig: value must be single-line")
	}
	return nil
}

// NewLineItem validates and constructs a LineItem.
func NewLineItem(kw Keyword, argument string, optionals ...string) (LineItem, error) {
	if err := singleLine(argument); err != nil {
		return LineItem{}, fmt.Errorf("torconfig: %s: argument: %w", kw.Name, err)
	}
	for _, o := range optionals {
		if err := singleLine(o); err != nil {
			return LineItem{}, fmt.Errorf("torconfig: %s: optional %q: %w", kw.Name, o, err)
		}
	}
	return LineItem{Keyword: kw, Argument: argument, Optionals: append([]string{}, optionals...)}, nil
}

// rawLineItem builds a LineItem without validation, for internal call
// sites (the hidden-service builder) constructing arguments from
// already-validated, programmatically-derived values.
func rawLineItem(kw Keyword, argument string, optionals ...string) LineItem {
	return LineItem{Keyword: kw, Argument: argument, Optionals: optionals}
}

// String renders "keyword argument optional...".
func (li LineItem) String() string {
	parts := append([]string{li.Keyword.Name, li.Argument}, li.Optionals...)
	return strings.Join(parts, " ")
}

func isZeroOrAuto(arg string) bool { return arg == "0" || arg == "auto" }

func isUnixSocketArgument(li LineItem) bool {
	target := li.Argument
	if li.Keyword == HiddenServicePort {
		if idx := strings.IndexByte(li.Argument, ' '); idx >= 0 {
			target = li.Argument[idx+1:]
		}
	}
	return strings.HasPrefix(target, "unix:")
}

// dedupKey derives the §3 value-dependent equality/hash surrogate for a
// line item. Two items are equal iff their dedupKey values are equal; see
// the package doc comment in builder.go for why this single-item
// encoding correctly implements the spec's pairwise "both items carry
// attribute X" rules without ever comparing two items directly.
func dedupKey(li LineItem) string {
	if li.Keyword.IsUnique {
		return "unique:" + li.Keyword.Name
	}
	if li.Keyword.Has(Port) {
		if isZeroOrAuto(li.Argument) {
			return "portkw:" + li.Keyword.Name + ":" + li.Argument
		}
		return "portarg:" + li.Argument
	}
	if li.Keyword.Has(Directory) || li.Keyword.Has(File) {
		return "patharg:" + li.Argument
	}
	return "kwarg:" + li.Keyword.Name + ":" + li.Argument
}

// Equal implements the §3 value-dependent LineItem equality rules.
func (li LineItem) Equal(other LineItem) bool {
	return dedupKey(li) == dedupKey(other)
}
