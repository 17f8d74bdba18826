// SPDX-License-Identifier: MIT
package torconfig

// FilterByKeyword returns every setting in c carrying an item whose
// keyword equals kw. (§9 collapses "filter by keyword type" into
// "filter by keyword value", since this package uses one tagged Keyword
// type rather than a per-option class hierarchy.)
func FilterByKeyword(c TorConfig, kw Keyword) []Setting {
	var out []Setting
	for _, s := range c.settings {
		for _, item := range s.items {
			if item.Keyword == kw {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// FilterByAttribute returns every setting in c carrying an item with
// attribute a, refined per spec.md §4.5: when a is Port, items whose
// argument is a unix-socket path are excluded; when a is UnixSocket,
// items whose argument is an ordinary port are excluded. A hidden-service
// port's target — the portion after its first space — is what gets
// inspected for the "unix:" prefix, not the whole argument.
func FilterByAttribute(c TorConfig, a Attribute) []Setting {
	var out []Setting
	for _, s := range c.settings {
		for _, item := range s.items {
			if !item.Keyword.Has(a) {
				continue
			}
			isUnix := isUnixSocketArgument(item)
			if a == Port && isUnix {
				continue
			}
			if a == UnixSocket && !isUnix {
				continue
			}
			out = append(out, s)
			break
		}
	}
	return out
}
