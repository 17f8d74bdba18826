// SPDX-License-Identifier: MIT
// Package api is the CLI's HTTP client for a torsentry instance's admin API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a single torsentry instance's /api/v1 surface.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a Client. timeoutSeconds <= 0 falls back to 30s.
func NewClient(addr, token string, timeoutSeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		token:   token,
		http:    &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

// GetBaseURL returns the configured server address.
func (c *Client) GetBaseURL() string {
	return c.baseURL
}

// apiEnvelope is the unified response shape the admin API uses for both
// success and failure (mirrors server/handler.APIResponse).
type apiEnvelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("no server address configured; run %q", "config set server.address <url>")
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env apiEnvelope
		if json.Unmarshal(data, &env) == nil && env.Message != "" {
			return fmt.Errorf("%s (%s)", env.Message, env.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// FetchURLResponseBytes issues a GET against an absolute URL and returns the
// raw body, bypassing JSON decoding. Used for SSE probing and debug routes.
func (c *Client) FetchURLResponseBytes(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) getData(ctx context.Context, path string, out interface{}) error {
	var env apiEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) postData(ctx context.Context, path string, body, out interface{}) error {
	var env apiEnvelope
	if err := c.do(ctx, http.MethodPost, path, body, &env); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Healthz reports whether the instance answers /healthz at all.
func (c *Client) Healthz(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Login exchanges a username/password for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Username string `json:"username"`
		Token    string `json:"token"`
	}
	err := c.postData(ctx, "/api/v1/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	return out.Token, err
}

// TorStatus is the daemon's bootstrap/circuit status, as reported by
// /api/v1/tor/status.
type TorStatus struct {
	BootstrapPercent int               `json:"bootstrap_percent"`
	Info             map[string]string `json:"info"`
}

// TorStatus fetches the current Tor daemon status.
func (c *Client) TorStatus(ctx context.Context) (*TorStatus, error) {
	var status TorStatus
	if err := c.getData(ctx, "/api/v1/tor/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TorInfo runs GETINFO against the control port for the given keys.
func (c *Client) TorInfo(ctx context.Context, keys []string) (map[string]string, error) {
	path := "/api/v1/tor/info"
	if len(keys) > 0 {
		path += "?key=" + strings.Join(keys, "&key=")
	}
	var out map[string]string
	if err := c.getData(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TorSignal sends a control-port signal (NEWNYM, RELOAD, ...).
func (c *Client) TorSignal(ctx context.Context, signal string) error {
	return c.postData(ctx, "/api/v1/tor/signal", map[string]string{"signal": signal}, nil)
}

// HiddenService describes one managed onion service.
type HiddenService struct {
	Name         string `json:"name"`
	OnionAddress string `json:"address"`
}

// HiddenServicesList lists the instance's managed hidden services.
func (c *Client) HiddenServicesList(ctx context.Context) ([]HiddenService, error) {
	var out []HiddenService
	if err := c.getData(ctx, "/api/v1/hidden-services/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HiddenServiceCreate generates a new key pair and registers it under name.
func (c *Client) HiddenServiceCreate(ctx context.Context, name string) (*HiddenService, error) {
	var out HiddenService
	if err := c.postData(ctx, "/api/v1/hidden-services", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HiddenServiceGet fetches a single hidden service's details.
func (c *Client) HiddenServiceGet(ctx context.Context, name string) (*HiddenService, error) {
	var out HiddenService
	if err := c.getData(ctx, "/api/v1/hidden-services/"+name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HiddenServiceDelete removes a hidden service's on-disk key material.
func (c *Client) HiddenServiceDelete(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/hidden-services/"+name, nil, nil)
}

// HiddenServiceExport returns the service's private descriptor for backup
// or migration to another instance.
func (c *Client) HiddenServiceExport(ctx context.Context, name string) (string, error) {
	var out struct {
		PrivateDescriptor string `json:"private_descriptor"`
	}
	if err := c.postData(ctx, "/api/v1/hidden-services/"+name+"/export", nil, &out); err != nil {
		return "", err
	}
	return out.PrivateDescriptor, nil
}

// SchedulerTask mirrors server/service/scheduler.ScheduledTask's wire shape.
type SchedulerTask struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	Enabled     bool      `json:"enabled"`
	LastRun     time.Time `json:"last_run"`
	LastResult  string    `json:"last_result"`
	LastError   string    `json:"last_error,omitempty"`
	NextRun     time.Time `json:"next_run"`
	RunCount    int64     `json:"run_count"`
	FailCount   int64     `json:"fail_count"`
}

// SchedulerTasks lists all registered background tasks.
func (c *Client) SchedulerTasks(ctx context.Context) ([]SchedulerTask, error) {
	var out []SchedulerTask
	if err := c.getData(ctx, "/api/v1/scheduler/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SchedulerRunTask triggers a task to run immediately.
func (c *Client) SchedulerRunTask(ctx context.Context, id string) error {
	return c.postData(ctx, "/api/v1/scheduler/"+id+"/run", nil, nil)
}

// SchedulerEnableTask enables a disabled task.
func (c *Client) SchedulerEnableTask(ctx context.Context, id string) error {
	return c.postData(ctx, "/api/v1/scheduler/"+id+"/enable", nil, nil)
}

// SchedulerDisableTask disables a task.
func (c *Client) SchedulerDisableTask(ctx context.Context, id string) error {
	return c.postData(ctx, "/api/v1/scheduler/"+id+"/disable", nil, nil)
}
