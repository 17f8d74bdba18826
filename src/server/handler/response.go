// SPDX-License-Identifier: MIT

package handler

import (
	"encoding/json"
	"net/http"
)

// NewSecureCookie creates a cookie with proper security flags.
// The Secure flag is set when sslEnabled is true.
func NewSecureCookie(name, value, path string, maxAge int, sslEnabled bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sslEnabled,
	}
}

// NewSecureCookieStrict creates a cookie with SameSite=Strict.
// Use for sensitive operations like pending 2FA tokens.
func NewSecureCookieStrict(name, value, path string, maxAge int, sslEnabled bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   sslEnabled,
	}
}

// DeleteCookie creates a cookie that deletes an existing cookie.
func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   path,
		MaxAge: -1,
	}
}

// APIResponse is the unified response envelope for the admin API.
type APIResponse struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes an arbitrary value as an indented JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// SendOK sends a success response.
func SendOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, APIResponse{OK: true, Data: data})
}

// SendError sends an error response.
func SendError(w http.ResponseWriter, code string, message string) {
	WriteJSON(w, ErrorCodeToHTTP(code), APIResponse{OK: false, Error: code, Message: message})
}

// ErrorCodeToHTTP maps error codes to HTTP status codes.
func ErrorCodeToHTTP(code string) int {
	switch code {
	case "BAD_REQUEST", "VALIDATION_FAILED":
		return 400
	case "UNAUTHORIZED", "TOKEN_EXPIRED", "TOKEN_INVALID", "2FA_REQUIRED", "2FA_INVALID":
		return 401
	case "FORBIDDEN", "ACCOUNT_LOCKED":
		return 403
	case "NOT_FOUND":
		return 404
	case "METHOD_NOT_ALLOWED":
		return 405
	case "CONFLICT":
		return 409
	case "RATE_LIMITED":
		return 429
	case "MAINTENANCE":
		return 503
	default:
		return 500
	}
}

// Standard error codes.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidation       = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenInvalid     = "TOKEN_INVALID"
	Code2FARequired      = "2FA_REQUIRED"
	Code2FAInvalid       = "2FA_INVALID"
	CodeForbidden        = "FORBIDDEN"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeServerError      = "SERVER_ERROR"
	CodeMaintenance      = "MAINTENANCE"
)

// Standard error messages.
const (
	MsgBadRequest       = "Invalid request format"
	MsgValidation       = "Validation failed"
	MsgUnauthorized     = "Authentication required"
	MsgTokenExpired     = "Token has expired"
	MsgTokenInvalid     = "Invalid token"
	Msg2FARequired      = "Two-factor authentication required"
	Msg2FAInvalid       = "Invalid 2FA code"
	MsgForbidden        = "Permission denied"
	MsgAccountLocked    = "Account locked"
	MsgNotFound         = "Resource not found"
	MsgMethodNotAllowed = "Method not allowed"
	MsgConflict         = "Resource already exists"
	MsgRateLimited      = "Too many requests"
	MsgServerError      = "Internal server error"
	MsgMaintenance      = "Service unavailable"
)
