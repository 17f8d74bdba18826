// SPDX-License-Identifier: MIT
// Package banner provides startup banner printing
//
package banner

import (
	"strings"
)

// GetASCIIArt returns ASCII art for the given app name
func GetASCIIArt(appName string) []string {
	if strings.EqualFold(appName, "torsentry") {
		return torsentryArt
	}
	// Generic fallback
	return generateSimpleArt(appName)
}

// torsentryArt is the torsentry ASCII art.
var torsentryArt = []string{
	"",
	"  ╔╦╗╔═╗╦═╗  ╔═╗╔═╗╔╗╔╔╦╗╦═╗╦ ╦",
	"   ║ ║ ║╠╦╝  ╚═╗║╣ ║║║ ║ ╠╦╝╚╦╝",
	"   ╩ ╚═╝╩╚═  ╚═╝╚═╝╝╚╝ ╩ ╩╚═ ╩ ",
	"",
	"  Managed Tor runtime control surface",
	"",
}

// generateSimpleArt generates a simple ASCII art header for any app name
func generateSimpleArt(appName string) []string {
	upper := strings.ToUpper(appName)
	width := len(upper) + 4

	topBorder := "  ╔" + strings.Repeat("═", width) + "╗"
	midLine := "  ║  " + upper + "  ║"
	botBorder := "  ╚" + strings.Repeat("═", width) + "╝"

	return []string{
		"",
		topBorder,
		midLine,
		botBorder,
		"",
	}
}

// GetCompactHeader returns a compact header for smaller terminals
func GetCompactHeader(appName string) string {
	return "=== " + strings.ToUpper(appName) + " ==="
}

// GetMicroHeader returns a minimal header
func GetMicroHeader(appName string) string {
	return "[" + strings.ToUpper(appName) + "]"
}
