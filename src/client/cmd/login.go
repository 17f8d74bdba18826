// SPDX-License-Identifier: MIT
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func runLogin(args []string) error {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		fmt.Printf("Exchange a username/password for a session token and save it to the CLI config\n\nUsage:\n  %s login\n", BinaryName)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, _ := reader.ReadString('\n')
	username = trimNewline(username)

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	ctx, cancel := requestContext()
	defer cancel()

	token, err := client.Login(ctx, username, string(passwordBytes))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cfg.Server.Token = token
	dir := filepath.Dir(cfgFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(cfgFile, data, 0600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Println("login successful, token saved")
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
