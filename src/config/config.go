// SPDX-License-Identifier: MIT
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProjectOrg  = "apimgr"
	ProjectName = "torsentry"
)

// Version is set at build time via ldflags
var Version = "dev"

// Config holds all daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Tor     TorConfig     `yaml:"tor"`
	Cluster ClusterConfig `yaml:"cluster"`
}

// ServerConfig holds admin-API server settings.
type ServerConfig struct {
	// Port: single (HTTP) or dual (HTTP,HTTPS) e.g., "8090" or "8090,64453"
	Port    string `yaml:"port"`
	FQDN    string `yaml:"fqdn"`
	Address string `yaml:"address"`

	// Application mode: production or development
	// Can be overridden by MODE env var or --mode CLI flag
	Mode string `yaml:"mode"`

	// Application branding
	Title       string `yaml:"title"`
	Description string `yaml:"description"`

	// System user/group
	User  string `yaml:"user"`
	Group string `yaml:"group"`

	// PID file
	PIDFile bool `yaml:"pidfile"`

	// Admin API authentication
	Admin AdminConfig `yaml:"admin"`

	// Notifications
	Notifications NotificationsConfig `yaml:"notifications"`

	// Scheduler
	Schedule ScheduleConfig `yaml:"schedule"`

	// SSL/TLS
	SSL SSLConfig `yaml:"ssl"`

	// Metrics
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logs LogsConfig `yaml:"logs"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Request limits
	Limits LimitsConfig `yaml:"limits"`

	// Compression
	Compression CompressionConfig `yaml:"compression"`

	// Trusted proxies
	TrustedProxies TrustedProxiesConfig `yaml:"trusted_proxies"`

	// Security headers
	SecurityHeaders SecurityHeadersConfig `yaml:"security_headers"`

	// Session
	Session SessionConfig `yaml:"session"`

	// Job/event audit-log persistence
	Database DatabaseConfig `yaml:"database"`
}

// AdminConfig holds admin API credential settings.
type AdminConfig struct {
	Email     string          `yaml:"email"`
	Username  string          `yaml:"username"`
	Password  string          `yaml:"password"`
	Token     string          `yaml:"token"`
	TwoFactor TwoFactorConfig `yaml:"two_factor"`
}

// TwoFactorConfig holds 2FA settings for the admin API account.
type TwoFactorConfig struct {
	// 2FA is enabled for this admin
	Enabled bool `yaml:"enabled"`
	// TOTP secret (stored securely)
	Secret string `yaml:"secret,omitempty"`
	// One-time backup codes
	BackupCodes []string `yaml:"backup_codes,omitempty"`
	// Trust device for N days
	RememberDeviceDays int `yaml:"remember_device_days"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	Enabled bool                    `yaml:"enabled"`
	Email   bool                    `yaml:"email"`
	Bell    bool                    `yaml:"bell"`
	Types   NotificationTypesConfig `yaml:"types"`
}

// NotificationTypesConfig holds which events to notify on.
type NotificationTypesConfig struct {
	Startup    bool `yaml:"startup"`
	Shutdown   bool `yaml:"shutdown"`
	Error      bool `yaml:"error"`
	Security   bool `yaml:"security"`
	Update     bool `yaml:"update"`
	CertExpiry bool `yaml:"cert_expiry"`
	Bootstrap  bool `yaml:"bootstrap"`
}

// ScheduleConfig holds recurring-job schedule settings (cron expressions
// consumed by the scheduler package, per spec.md's periodic NEWNYM
// rotation / reattach-probe / descriptor-refresh jobs).
type ScheduleConfig struct {
	Enabled          bool   `yaml:"enabled"`
	CertRenewal      string `yaml:"cert_renewal"`
	NewnymRotation   string `yaml:"newnym_rotation"`
	ReattachProbe    string `yaml:"reattach_probe"`
	DescriptorRefresh string `yaml:"descriptor_refresh"`
	Cleanup          string `yaml:"cleanup"`
}

// SSLConfig holds SSL/TLS settings for the admin API.
type SSLConfig struct {
	Enabled     bool              `yaml:"enabled"`
	CertPath    string            `yaml:"cert_path"`
	LetsEncrypt LetsEncryptConfig `yaml:"letsencrypt"`
}

// LetsEncryptConfig holds Let's Encrypt settings.
type LetsEncryptConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Domain          string `yaml:"domain"`
	Email           string `yaml:"email"`
	Challenge       string `yaml:"challenge"`
	DNSProviderType string `yaml:"dns_provider_type"`
	DNSProviderKey  string `yaml:"dns_provider_key"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	IncludeSystem bool   `yaml:"include_system"`
	Token         string `yaml:"token"`
}

// LogsConfig holds logging settings.
type LogsConfig struct {
	Level  string          `yaml:"level"`
	Debug  DebugLogConfig  `yaml:"debug"`
	Access AccessLogConfig `yaml:"access"`
	Server ServerLogConfig `yaml:"server"`
	Error  ErrorLogConfig  `yaml:"error"`
	Audit  AuditLogConfig  `yaml:"audit"`
	// Forwarded tor stdout/stderr lines
	Tor TorLogConfig `yaml:"tor"`
}

// DebugLogConfig holds debug log settings.
type DebugLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format"`
	Keep     string `yaml:"keep"`
	Rotate   string `yaml:"rotate"`
}

// AccessLogConfig holds access log settings.
type AccessLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format"`
	Keep     string `yaml:"keep"`
	Rotate   string `yaml:"rotate"`
}

// ServerLogConfig holds server log settings.
type ServerLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format"`
	Keep     string `yaml:"keep"`
	Rotate   string `yaml:"rotate"`
}

// ErrorLogConfig holds error log settings.
type ErrorLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format"`
	Keep     string `yaml:"keep"`
	Rotate   string `yaml:"rotate"`
}

// AuditLogConfig holds audit log settings (job/event history).
type AuditLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format"`
	Keep     string `yaml:"keep"`
	Rotate   string `yaml:"rotate"`
}

// TorLogConfig holds settings for forwarded tor process log lines.
type TorLogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Filename string `yaml:"filename"`
	Keep     string `yaml:"keep"`
	Rotate   string `yaml:"rotate"`
}

// RateLimitConfig holds admin API rate limiting settings.
type RateLimitConfig struct {
	Enabled  bool `yaml:"enabled"`
	Requests int  `yaml:"requests"`
	Window   int  `yaml:"window"`
}

// LimitsConfig holds request limit settings.
type LimitsConfig struct {
	MaxBodySize  string `yaml:"max_body_size"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	IdleTimeout  string `yaml:"idle_timeout"`
}

// CompressionConfig holds compression settings.
type CompressionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Level   int      `yaml:"level"`
	Types   []string `yaml:"types"`
}

// TrustedProxiesConfig holds trusted proxy settings.
type TrustedProxiesConfig struct {
	Additional []string `yaml:"additional"`
}

// SecurityHeadersConfig holds security header settings.
type SecurityHeadersConfig struct {
	Enabled             bool   `yaml:"enabled"`
	HSTS                bool   `yaml:"hsts"`
	HSTSMaxAge          int    `yaml:"hsts_max_age"`
	XFrameOptions       string `yaml:"x_frame_options"`
	XContentTypeOptions string `yaml:"x_content_type_options"`
	XXSSProtection      string `yaml:"x_xss_protection"`
	ReferrerPolicy      string `yaml:"referrer_policy"`
	CSP                 string `yaml:"csp"`
}

// SessionConfig holds admin session cookie settings.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	MaxAge     int    `yaml:"max_age"`
	Secure     string `yaml:"secure"`
	HTTPOnly   bool   `yaml:"http_only"`
	SameSite   string `yaml:"same_site"`
}

// DatabaseConfig holds database settings. Driver names the database/sql
// backend that the database package (src/server/service/database) opens:
// sqlite, postgres, mysql, mssql.
type DatabaseConfig struct {
	Driver string       `yaml:"driver"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	// For Postgres/MySQL/MSSQL
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
	User string `yaml:"user"`
	// For Postgres/MySQL/MSSQL
	Password string `yaml:"password"`
	// disable, require, verify-ca, verify-full
	SSLMode string `yaml:"ssl_mode"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Dir         string `yaml:"dir"`
	ServerDB    string `yaml:"server_db"`
	JournalMode string `yaml:"journal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TorConfig holds the managed Tor daemon's runtime settings: where its
// binary lives, where it stores its state, and how the loader should
// reach its control port.
type TorConfig struct {
	// Path to the tor binary. Empty means "look up 'tor' on $PATH".
	BinaryPath string `yaml:"binary_path"`
	// Data directory the loader passes to tor as DataDirectory.
	DataDir string `yaml:"data_dir"`
	// Socks/control listener addresses, forwarded into generated torrc.
	SocksPort   string `yaml:"socks_port"`
	ControlPort string `yaml:"control_port"`
	// Use a cookie file (default) instead of a control password.
	CookieAuth bool `yaml:"cookie_auth"`
	// Re-attach to an already-running instance instead of relaunching.
	AllowReattach bool `yaml:"allow_reattach"`
	// Extra torrc line items, passed through to torconfig verbatim.
	ExtraLines []string `yaml:"extra_lines"`
}

// ClusterConfig holds cross-instance event fan-out settings: when several
// tormanager instances attach to the same already-running Tor daemon,
// clustersync rebroadcasts bus events over Redis.
type ClusterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// Paths holds resolved directory paths.
type Paths struct {
	Config string
	Data   string
	Log    string
	Backup string
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	fqdn := getHostname()
	randomPort := findUnusedPort()

	return &Config{
		Server: ServerConfig{
			Port:        strconv.Itoa(randomPort),
			FQDN:        fqdn,
			Address:     "[::]",
			Mode:        "production",
			Title:       "torsentry",
			Description: "Managed Tor runtime control surface",
			User:        "",
			Group:       "",
			PIDFile:     true,
			Admin: AdminConfig{
				Email:    "admin@" + fqdn,
				Username: "administrator",
				Password: generateToken(16),
				Token:    generateToken(32),
				TwoFactor: TwoFactorConfig{
					Enabled:            false,
					RememberDeviceDays: 30,
				},
			},
			Notifications: NotificationsConfig{
				Enabled: true,
				Email:   false,
				Bell:    true,
				Types: NotificationTypesConfig{
					Startup:    true,
					Shutdown:   true,
					Error:      true,
					Security:   true,
					Update:     true,
					CertExpiry: true,
					Bootstrap:  false,
				},
			},
			Schedule: ScheduleConfig{
				Enabled:           true,
				CertRenewal:       "daily",
				NewnymRotation:    "",
				ReattachProbe:     "@every 30s",
				DescriptorRefresh: "@every 1h",
				Cleanup:           "weekly",
			},
			SSL: SSLConfig{
				Enabled:  false,
				CertPath: "",
				LetsEncrypt: LetsEncryptConfig{
					Enabled:   false,
					Challenge: "http-01",
				},
			},
			Metrics: MetricsConfig{
				Enabled:       false,
				Endpoint:      "/metrics",
				IncludeSystem: true,
			},
			Logs: LogsConfig{
				Level: "info",
				Debug: DebugLogConfig{
					Enabled:  false,
					Filename: "debug.log",
					Format:   "text",
					Keep:     "none",
					Rotate:   "monthly",
				},
				Access: AccessLogConfig{
					Filename: "access.log",
					Format:   "apache",
					Keep:     "none",
					Rotate:   "monthly",
				},
				Server: ServerLogConfig{
					Filename: "server.log",
					Format:   "text",
					Keep:     "none",
					Rotate:   "weekly,50MB",
				},
				Error: ErrorLogConfig{
					Filename: "error.log",
					Format:   "text",
					Keep:     "none",
					Rotate:   "weekly,50MB",
				},
				Audit: AuditLogConfig{
					Filename: "audit.log",
					Format:   "json",
					Keep:     "none",
					Rotate:   "monthly",
				},
				Tor: TorLogConfig{
					Enabled:  true,
					Filename: "tor.log",
					Keep:     "none",
					Rotate:   "weekly,50MB",
				},
			},
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 120,
				Window:   60,
			},
			Limits: LimitsConfig{
				MaxBodySize:  "1MB",
				ReadTimeout:  "30s",
				WriteTimeout: "30s",
				IdleTimeout:  "120s",
			},
			Compression: CompressionConfig{
				Enabled: true,
				Level:   5,
				Types: []string{
					"text/html",
					"text/css",
					"text/javascript",
					"application/json",
					"application/xml",
				},
			},
			TrustedProxies: TrustedProxiesConfig{
				Additional: []string{},
			},
			SecurityHeaders: SecurityHeadersConfig{
				Enabled:             true,
				HSTS:                true,
				HSTSMaxAge:          31536000,
				XFrameOptions:       "SAMEORIGIN",
				XContentTypeOptions: "nosniff",
				XXSSProtection:      "1; mode=block",
				ReferrerPolicy:      "strict-origin-when-cross-origin",
				CSP:                 "default-src 'self'",
			},
			Session: SessionConfig{
				CookieName: "session_id",
				// 30 days
				MaxAge:   2592000,
				Secure:   "auto",
				HTTPOnly: true,
				SameSite: "lax",
			},
			Database: DatabaseConfig{
				Driver: "file",
				SQLite: SQLiteConfig{
					Dir:         "",
					ServerDB:    "server.db",
					JournalMode: "WAL",
					BusyTimeout: 5000,
				},
			},
		},
		Tor: TorConfig{
			BinaryPath:    "",
			DataDir:       "",
			SocksPort:     "9050",
			ControlPort:   "9051",
			CookieAuth:    true,
			AllowReattach: true,
			ExtraLines:    []string{},
		},
		Cluster: ClusterConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			Channel: "torsentry:events",
		},
	}
}

// GetPaths returns OS-appropriate paths.
func GetPaths(configDir, dataDir string) *Paths {
	isRoot := os.Geteuid() == 0

	paths := &Paths{}

	if configDir != "" {
		paths.Config = configDir
	} else {
		paths.Config = getDefaultConfigDir(isRoot)
	}

	if dataDir != "" {
		paths.Data = dataDir
	} else {
		paths.Data = getDefaultDataDir(isRoot)
	}

	paths.Log = getDefaultLogDir(isRoot)
	paths.Backup = getDefaultBackupDir(isRoot)

	return paths
}

// Load loads configuration from file or creates default.
func Load(configDir, dataDir string) (*Config, string, error) {
	paths := GetPaths(configDir, dataDir)

	for _, dir := range []string{paths.Config, paths.Data, paths.Log} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(paths.Config, "server.yml")

	yamlPath := filepath.Join(paths.Config, "server.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			os.Rename(yamlPath, configPath)
			fmt.Printf("Migrated server.yaml to server.yml\n")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := Default()

		cfg.Server.SSL.CertPath = filepath.Join(paths.Config, "ssl", "certs")
		cfg.Server.Database.SQLite.Dir = filepath.Join(paths.Data, "db")
		cfg.Tor.DataDir = filepath.Join(paths.Data, "tor")

		if err := Save(cfg, configPath); err != nil {
			return nil, "", fmt.Errorf("failed to save default config: %w", err)
		}

		return cfg, configPath, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, configPath, nil
}

// Save saves configuration to file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# =============================================================================
# torsentry configuration
# =============================================================================
# Managed Tor runtime daemon: admin API, scheduler and the tor process
# this instance supervises.
# =============================================================================

`
	fullData := []byte(header + string(data))

	if err := os.WriteFile(path, fullData, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Helper functions

// ParseBoolEnv parses a boolean value from an environment variable.
func ParseBoolEnv(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return ParseBool(val)
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return hostname
}

func findUnusedPort() int {
	for port := 64000; port < 65000; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port
		}
	}
	return 64080
}

func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func getDefaultConfigDir(isRoot bool) string {
	switch runtime.GOOS {
	case "linux":
		if isRoot {
			return fmt.Sprintf("/etc/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", ProjectOrg, ProjectName)
	case "darwin":
		if isRoot {
			return fmt.Sprintf("/Library/Application Support/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", ProjectOrg, ProjectName)
	case "windows":
		if isRoot {
			return filepath.Join(os.Getenv("ProgramData"), ProjectOrg, ProjectName)
		}
		return filepath.Join(os.Getenv("APPDATA"), ProjectOrg, ProjectName)
	default:
		if isRoot {
			return fmt.Sprintf("/usr/local/etc/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", ProjectOrg, ProjectName)
	}
}

func getDefaultDataDir(isRoot bool) string {
	switch runtime.GOOS {
	case "linux":
		if isRoot {
			return fmt.Sprintf("/var/lib/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", ProjectOrg, ProjectName)
	case "darwin":
		if isRoot {
			return fmt.Sprintf("/Library/Application Support/%s/%s/data", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", ProjectOrg, ProjectName)
	case "windows":
		if isRoot {
			return filepath.Join(os.Getenv("ProgramData"), ProjectOrg, ProjectName, "data")
		}
		return filepath.Join(os.Getenv("LocalAppData"), ProjectOrg, ProjectName)
	default:
		if isRoot {
			return fmt.Sprintf("/var/db/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", ProjectOrg, ProjectName)
	}
}

func getDefaultLogDir(isRoot bool) string {
	switch runtime.GOOS {
	case "linux":
		if isRoot {
			return fmt.Sprintf("/var/log/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", ProjectOrg, ProjectName, "logs")
	case "darwin":
		if isRoot {
			return fmt.Sprintf("/Library/Logs/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", ProjectOrg, ProjectName)
	case "windows":
		if isRoot {
			return filepath.Join(os.Getenv("ProgramData"), ProjectOrg, ProjectName, "logs")
		}
		return filepath.Join(os.Getenv("LocalAppData"), ProjectOrg, ProjectName, "logs")
	default:
		if isRoot {
			return fmt.Sprintf("/var/log/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", ProjectOrg, ProjectName, "logs")
	}
}

func getDefaultBackupDir(isRoot bool) string {
	switch runtime.GOOS {
	case "linux":
		if isRoot {
			return fmt.Sprintf("/mnt/Backups/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "backups", ProjectOrg, ProjectName)
	case "darwin":
		if isRoot {
			return fmt.Sprintf("/Library/Backups/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Backups", ProjectOrg, ProjectName)
	case "windows":
		if isRoot {
			return filepath.Join(os.Getenv("ProgramData"), "Backups", ProjectOrg, ProjectName)
		}
		return filepath.Join(os.Getenv("LocalAppData"), "Backups", ProjectOrg, ProjectName)
	default:
		if isRoot {
			return fmt.Sprintf("/var/backups/%s/%s", ProjectOrg, ProjectName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "backups", ProjectOrg, ProjectName)
	}
}

// IsContainer detects if running in a container (tini as PID 1).
func IsContainer() bool {
	if data, err := os.ReadFile("/proc/1/comm"); err == nil {
		return strings.TrimSpace(string(data)) == "tini"
	}
	if os.Getenv("container") != "" {
		return true
	}
	return false
}

// IsDevelopmentMode returns true if running in development mode.
func (c *Config) IsDevelopmentMode() bool {
	mode := strings.ToLower(c.Server.Mode)
	return mode == "development" || mode == "dev"
}

// IsProductionMode returns true if running in production mode.
func (c *Config) IsProductionMode() bool {
	return !c.IsDevelopmentMode()
}

// NormalizeMode normalizes the mode string to "production" or "development".
func NormalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "dev", "development":
		return "development"
	case "prod", "production", "":
		return "production"
	default:
		return "production"
	}
}

// devOnlyTLDs are TLDs allowed only in development mode.
var devOnlyTLDs = []string{
	".localhost", ".test", ".example", ".invalid",
	".local", ".lan", ".internal", ".home", ".localdomain",
	".home.arpa", ".intranet", ".corp", ".private",
}

// IsValidHost validates a host for the admin API's FQDN. In production
// mode, only valid FQDNs are allowed (no IPs, no localhost, no dev TLDs).
// In development mode, localhost and dev TLDs are allowed (still no IPs).
func IsValidHost(host string, devMode bool) bool {
	lower := strings.ToLower(host)

	if net.ParseIP(host) != nil {
		return false
	}

	if lower == "localhost" {
		return devMode
	}

	if !strings.Contains(host, ".") {
		return false
	}

	if !devMode {
		for _, tld := range devOnlyTLDs {
			if strings.HasSuffix(lower, tld) {
				return false
			}
		}
	}

	return true
}

// IsValidSSLHost validates host for SSL/Let's Encrypt (always production-valid).
func IsValidSSLHost(host string) bool {
	return IsValidHost(host, false)
}

// ReloadCallback is called when configuration is reloaded.
type ReloadCallback func(*Config)

// ConfigWatcher watches for config file changes and live-reloads the
// subset of settings that are safe to apply without restarting the
// managed tor process.
type ConfigWatcher struct {
	configPath string
	cfg        *Config
	callbacks  []ReloadCallback
	stopChan   chan struct{}
	lastMod    int64
}

// NewWatcher creates a new config watcher.
func NewWatcher(configPath string, cfg *Config) *ConfigWatcher {
	info, _ := os.Stat(configPath)
	var lastMod int64
	if info != nil {
		lastMod = info.ModTime().UnixNano()
	}

	return &ConfigWatcher{
		configPath: configPath,
		cfg:        cfg,
		callbacks:  make([]ReloadCallback, 0),
		stopChan:   make(chan struct{}),
		lastMod:    lastMod,
	}
}

// OnReload registers a callback for config reload events.
func (w *ConfigWatcher) OnReload(callback ReloadCallback) {
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for config changes.
func (w *ConfigWatcher) Start() {
	go w.watch()
}

// Stop stops watching for config changes.
func (w *ConfigWatcher) Stop() {
	close(w.stopChan)
}

func (w *ConfigWatcher) watch() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			info, err := os.Stat(w.configPath)
			if err != nil {
				continue
			}

			modTime := info.ModTime().UnixNano()
			if modTime > w.lastMod {
				w.lastMod = modTime
				w.reload()
			}
		}
	}
}

func (w *ConfigWatcher) reload() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		fmt.Printf("failed to read config for reload: %v\n", err)
		return
	}

	newCfg := Default()
	if err := yaml.Unmarshal(data, newCfg); err != nil {
		fmt.Printf("failed to parse config for reload: %v\n", err)
		return
	}

	// Settings that can live-reload without restarting the tor process.
	w.cfg.Server.Title = newCfg.Server.Title
	w.cfg.Server.Description = newCfg.Server.Description
	w.cfg.Server.RateLimit = newCfg.Server.RateLimit
	w.cfg.Server.Notifications = newCfg.Server.Notifications
	w.cfg.Server.Schedule = newCfg.Server.Schedule
	w.cfg.Server.SSL.LetsEncrypt = newCfg.Server.SSL.LetsEncrypt
	w.cfg.Server.Metrics = newCfg.Server.Metrics
	w.cfg.Server.Logs = newCfg.Server.Logs
	w.cfg.Cluster = newCfg.Cluster

	fmt.Printf("configuration reloaded\n")

	for _, callback := range w.callbacks {
		callback(w.cfg)
	}
}

// Reload forces a configuration reload.
func (w *ConfigWatcher) Reload() error {
	w.reload()
	return nil
}

// GetDisplayHost returns the appropriate host for display.
// Never shows: 0.0.0.0, 127.0.0.1, localhost, [::]
// Uses global IP if dev TLD or localhost detected.
func GetDisplayHost(_ *Config) string {
	fqdn := GetFQDN()

	if !isDevTLD(fqdn) && !isLoopback(fqdn) {
		return fqdn
	}

	if ipv6 := getGlobalIPv6(); ipv6 != "" {
		return "[" + ipv6 + "]"
	}
	if ipv4 := getGlobalIPv4(); ipv4 != "" {
		return ipv4
	}

	return fqdn
}

// GetFQDN returns the FQDN.
func GetFQDN() string {
	if domain := os.Getenv("DOMAIN"); domain != "" {
		return domain
	}

	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		if !isLoopback(hostname) {
			return hostname
		}
	}

	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		if !isLoopback(hostname) {
			return hostname
		}
	}

	if ipv6 := getGlobalIPv6(); ipv6 != "" {
		return ipv6
	}

	if ipv4 := getGlobalIPv4(); ipv4 != "" {
		return ipv4
	}

	return "localhost"
}

func isLoopback(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func isDevTLD(fqdn string) bool {
	lower := strings.ToLower(fqdn)
	if lower == "localhost" {
		return true
	}

	devSuffixes := []string{
		".local", ".test", ".example", ".invalid",
		".localhost", ".lan", ".internal", ".home", ".localdomain",
		".home.arpa", ".intranet", ".corp", ".private",
		"." + ProjectName,
	}
	for _, suffix := range devSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func getGlobalIPv6() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ipnet.IP.To4() == nil && ipnet.IP.IsGlobalUnicast() {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}

func getGlobalIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil && ipnet.IP.IsGlobalUnicast() {
				return ip4.String()
			}
		}
	}
	return ""
}
