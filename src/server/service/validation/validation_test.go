// SPDX-License-Identifier: MIT
package validation

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username    string
		shouldError bool
		errorMsg    string
	}{
		{"validuser", false, ""},
		{"valid-user", false, ""},
		{"user123", false, ""},
		{"abc", false, ""},
		{"admin", false, ""},
		{"root", false, ""},
		{strings.Repeat("a", 32), false, ""},

		{"ab", true, "at least 3 characters"},
		{"", true, "at least 3 characters"},

		{strings.Repeat("a", 33), true, "cannot exceed 32 characters"},

		{"123user", true, "must start with a letter"},

		{"user@name", true, "only contain"},
		{"user.name", true, "only contain"},
		{"user name", true, "only contain"},
	}

	for _, tt := range tests {
		name := tt.username
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			err := ValidateUsername(tt.username, true)
			if tt.shouldError {
				if err == nil {
					t.Errorf("ValidateUsername(%q, true) expected error containing %q, got nil",
						tt.username, tt.errorMsg)
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("ValidateUsername(%q, true) error = %q, want containing %q",
						tt.username, err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("ValidateUsername(%q, true) unexpected error: %v",
						tt.username, err)
				}
			}
		})
	}
}

func TestValidateAdminPassword(t *testing.T) {
	tests := []struct {
		password    string
		shouldError bool
		errorMsg    string
	}{
		{"StrongP@ss12", false, ""},
		{"Valid12345!A", false, ""},
		{"MyP@ssw0rd12", false, ""},

		{"StrongP@s1", true, "at least 12 characters"},
		{"short", true, "at least 12 characters"},
		{"", true, "at least 12 characters"},

		{" StrongP@ss12", true, "leading or trailing whitespace"},
		{"StrongP@ss12 ", true, "leading or trailing whitespace"},
		{" StrongP@ss12 ", true, "leading or trailing whitespace"},

		{"password12345", true, "uppercase letter"},
		{"123456789012", true, "uppercase letter"},
		{"PASSWORD12345", true, "lowercase letter"},
		{"PasswordABCDE", true, "number"},
		{"Password12345", true, "special character"},
	}

	for _, tt := range tests {
		name := tt.password
		if len(name) > 20 {
			name = name[:20] + "..."
		}
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			err := ValidateAdminPassword(tt.password)
			if tt.shouldError {
				if err == nil {
					t.Errorf("ValidateAdminPassword(%q) expected error, got nil", tt.password)
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("ValidateAdminPassword error = %q, want containing %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("ValidateAdminPassword(%q) unexpected error: %v", tt.password, err)
				}
			}
		})
	}
}

func TestUsernameFormat(t *testing.T) {
	tests := []struct {
		name   string
		valid  bool
		reason string
	}{
		{"validuser", true, ""},
		{"valid-user", true, ""},
		{"valid123", true, ""},
		{"a-b-c", true, ""},

		{"_invalid", false, "must start with letter"},
		{"-invalid", false, "must start with letter"},
		{"1invalid", false, "must start with letter"},
		{"invalid_", false, "cannot end with underscore"},
		{"invalid-", false, "cannot end with hyphen"},
		{"inv--alid", false, "consecutive special chars"},
		{"inv__alid", false, "consecutive special chars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.name, true)
			if tt.valid && err != nil {
				t.Errorf("ValidateUsername(%q) should be valid, got error: %v", tt.name, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateUsername(%q) should be invalid: %s", tt.name, tt.reason)
			}
		})
	}
}

func TestUsernameError(t *testing.T) {
	err := &UsernameError{
		Field:   "username",
		Message: "test error message",
	}

	if err.Error() != "test error message" {
		t.Errorf("Error() = %q, want %q", err.Error(), "test error message")
	}
}
