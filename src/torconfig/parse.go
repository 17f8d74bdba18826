// SPDX-License-Identifier: MIT
package torconfig

import (
	"fmt"
	"strings"
)

// ParseLineItem parses one rendered "keyword argument optional..." line
// against the registered Keyword constants.
func ParseLineItem(line string) (LineItem, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return LineItem{}, fmt.Errorf("torconfig: malformed configuration line %q", line)
	}
	kw, ok := LookupKeyword(fields[0])
	if !ok {
		return LineItem{}, fmt.Errorf("torconfig: unknown keyword %q", fields[0])
	}
	return NewLineItem(kw, fields[1], fields[2:]...)
}

// Parse reconstructs a TorConfig from text rendered by TorConfig.String,
// for configurations composed entirely of single-line settings. A
// rendered hidden-service group's lines are indistinguishable from a run
// of unrelated single-line settings without the original grouping (and
// the full keyword grammar needed to recognize a group boundary is out
// of scope per spec.md §1), so reconstructing multi-line settings from
// flat text is not attempted here; every LookupKeyword-registered
// keyword still round-trips as its own Setting.
func Parse(rendered string) (TorConfig, error) {
	b := NewBuilder()
	for _, line := range strings.Split(rendered, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := ParseLineItem(line)
		if err != nil {
			return TorConfig{}, err
		}
		s, err := NewSetting(item)
		if err != nil {
			return TorConfig{}, err
		}
		b.Put(s)
	}
	return b.Build(), nil
}
