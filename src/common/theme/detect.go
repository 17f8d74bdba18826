// SPDX-License-Identifier: MIT
package theme

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// DetectSystemDark detects whether the host is using a dark theme.
func DetectSystemDark() bool {
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		return detectLinuxDark()
	case "darwin":
		return detectMacOSDark()
	case "windows":
		return detectWindowsDark()
	default:
		return true
	}
}

func detectLinuxDark() bool {
	if t := os.Getenv("GTK_THEME"); t != "" {
		return strings.Contains(strings.ToLower(t), "dark")
	}

	cmd := exec.Command("gsettings", "get", "org.gnome.desktop.interface", "gtk-theme")
	if output, err := cmd.Output(); err == nil {
		return strings.Contains(strings.ToLower(string(output)), "dark")
	}

	if t := os.Getenv("QT_QPA_PLATFORMTHEME"); t != "" {
		return strings.Contains(strings.ToLower(t), "dark")
	}

	if cs := os.Getenv("COLOR_SCHEME"); cs != "" {
		return strings.Contains(strings.ToLower(cs), "dark")
	}

	return true
}

func detectMacOSDark() bool {
	cmd := exec.Command("defaults", "read", "-g", "AppleInterfaceStyle")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "Dark"
}

func detectWindowsDark() bool {
	cmd := exec.Command("reg", "query",
		"HKEY_CURRENT_USER\\Software\\Microsoft\\Windows\\CurrentVersion\\Themes\\Personalize",
		"/v", "AppsUseLightTheme")
	output, err := cmd.Output()
	if err != nil {
		return true
	}
	return strings.Contains(string(output), "0x0")
}
