// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/apimgr/torsentry/src/clustersync"
	"github.com/apimgr/torsentry/src/common/banner"
	"github.com/apimgr/torsentry/src/common/version"
	"github.com/apimgr/torsentry/src/config"
	"github.com/apimgr/torsentry/src/mode"
	"github.com/apimgr/torsentry/src/server"
	"github.com/apimgr/torsentry/src/server/daemon"
	"github.com/apimgr/torsentry/src/server/service/admin"
	"github.com/apimgr/torsentry/src/server/service/database"
	"github.com/apimgr/torsentry/src/server/service/logging"
	"github.com/apimgr/torsentry/src/server/service/scheduler"
	"github.com/apimgr/torsentry/src/server/service/ssl"
	"github.com/apimgr/torsentry/src/server/service/torprovider"
	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torjob"
	"github.com/apimgr/torsentry/src/torloader"
	"github.com/apimgr/torsentry/src/tormanager"
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "--help", "-h":
			printHelp()
			return
		case "--version", "-v":
			printVersion()
			return
		case "--shell":
			handleShellCommand(args[1:])
			return
		case "--status":
			checkStatus()
			return
		}
	}

	var (
		configDir  string
		dataDir    string
		modeFlag   string
		debugFlag  bool
		daemonFlag bool
		address    string
		port       int
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		val := func() string {
			if eq := strings.Index(arg, "="); eq >= 0 {
				return arg[eq+1:]
			}
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch {
		case strings.HasPrefix(arg, "--config"):
			configDir = val()
		case strings.HasPrefix(arg, "--data"):
			dataDir = val()
		case strings.HasPrefix(arg, "--mode"):
			modeFlag = val()
		case arg == "--debug":
			debugFlag = true
		case arg == "--daemon":
			daemonFlag = true
		case strings.HasPrefix(arg, "--address"):
			address = val()
		case strings.HasPrefix(arg, "--port"):
			if p, err := strconv.Atoi(val()); err == nil {
				port = p
			}
		}
	}

	if v := os.Getenv("CONFIG_DIR"); v != "" && configDir == "" {
		configDir = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" && dataDir == "" {
		dataDir = v
	}
	if v := os.Getenv("MODE"); v != "" && modeFlag == "" {
		modeFlag = v
	}

	if daemonFlag {
		if err := daemon.Daemonize(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to daemonize: %v\n", err)
			os.Exit(1)
		}
	}

	mode.Initialize(modeFlag, debugFlag || config.ParseBoolEnv("DEBUG", false))

	cfg, configPath, err := config.Load(configDir, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if modeFlag != "" {
		cfg.Server.Mode = config.NormalizeMode(modeFlag)
	}
	if address != "" {
		cfg.Server.Address = address
	}
	if port != 0 {
		cfg.Server.Port = strconv.Itoa(port)
	}

	paths := config.GetPaths(configDir, dataDir)

	logger, err := logging.NewAppLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	dbPath := filepath.Join(cfg.Server.Database.SQLite.Dir, cfg.Server.Database.SQLite.ServerDB)
	schemaMgr, err := database.NewSchemaManager(dbPath)
	if err != nil {
		logger.Error("failed to open database", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	schemaMgr.RegisterDefaultMigrations()
	if err := schemaMgr.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer schemaMgr.Close()

	adminSvc := admin.NewService(schemaMgr.GetDB())
	if err := adminSvc.Initialize(); err != nil {
		logger.Error("failed to initialize admin tables", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	if adminSvc.IsFirstRun() {
		logger.Info("first run: visit /api/v1/setup with the printed token to create the admin account", map[string]interface{}{
			"setup_token": adminSvc.GetSetupToken(),
		})
	}

	sslMgr := ssl.NewSSLManager(cfg)
	if cfg.Server.SSL.Enabled {
		if err := sslMgr.Initialize(); err != nil {
			logger.Error("failed to initialize SSL", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}

	nodeID := cfg.Server.FQDN
	if nodeID == "" {
		nodeID, _ = os.Hostname()
	}
	nodeID = fmt.Sprintf("%s-%d", nodeID, os.Getpid())

	locks := torloader.NewInstanceLocks()
	provider := torprovider.New(cfg.Tor)
	torMgr := tormanager.New(nodeID, locks, provider, torprovider.DefaultPortAvailable, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validated, err := torMgr.Start(ctx)
	if err != nil {
		logger.Error("failed to start tor", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("tor started", map[string]interface{}{"control_port_file": validated.ControlPortFile})

	sched := scheduler.NewSchedulerWithDB(schemaMgr.GetDB())
	sched.RegisterBuiltinTasks(scheduler.BuiltinTaskFuncs{
		SSLRenewal: func(ctx context.Context) error {
			if !cfg.Server.SSL.Enabled || !sslMgr.NeedsRenewal() {
				return nil
			}
			return sslMgr.RenewCertificate(ctx)
		},
		NewnymRotation: func(ctx context.Context) error {
			return awaitJobErr(torMgr.Signal("NEWNYM"), 30*time.Second)
		},
		SessionCleanup: func(ctx context.Context) error {
			return adminSvc.CleanupExpiredSessions()
		},
		TokenCleanup: func(ctx context.Context) error {
			return adminSvc.CleanupExpiredTokens()
		},
	})
	sched.Start(ctx)
	defer sched.Stop()

	var bridge *clustersync.Bridge
	if cfg.Cluster.Enabled {
		bridge, err = clustersync.New(nodeID, torMgr, cfg.Cluster.Addr, cfg.Cluster.Password, cfg.Cluster.DB, cfg.Cluster.Channel)
		if err != nil {
			logger.Error("failed to start cluster bridge", map[string]interface{}{"error": err.Error()})
		} else {
			bridge.Start()
			defer bridge.Close()
		}
	}

	srv := server.New(cfg, paths.Config, paths.Data, torMgr, adminSvc, schemaMgr, sched, logger)

	watcher := config.NewWatcher(configPath, cfg)
	watcher.OnReload(func(newCfg *config.Config) {
		logger.Info("configuration reloaded", nil)
	})
	watcher.Start()
	defer watcher.Stop()

	scheme := "http"
	if cfg.Server.SSL.Enabled {
		scheme = "https"
	}
	urls := []string{fmt.Sprintf("%s://%s", scheme, getDisplayAddress(cfg))}
	banner.PrintStartupBanner(banner.BannerConfig{
		AppName:    "TorSentry",
		Version:    version.GetShort(),
		AppMode:    mode.AppModeString(),
		Debug:      mode.IsDebugEnabled(),
		URLs:       urls,
		ShowSetup:  adminSvc.IsFirstRun(),
		SetupToken: adminSvc.GetSetupToken(),
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Address, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		if cfg.Server.SSL.Enabled {
			ln, lErr := tls.Listen("tcp", addr, sslMgr.GetTLSConfig())
			if lErr != nil {
				errCh <- lErr
				return
			}
			errCh <- srv.Serve(ln)
			return
		}
		errCh <- srv.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", map[string]interface{}{"error": err.Error()})
		}
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	if err := torMgr.Close(); err != nil {
		logger.Error("failed to close tor manager", map[string]interface{}{"error": err.Error()})
	}
	torMgr.ReleaseInstanceLock()
}

// awaitJobErr blocks until j reaches a terminal state or timeout elapses,
// returning any failure as an error. Grounded on the same
// InvokeOnCompletion wait pattern the admin API uses to turn an
// asynchronous manager job into a synchronous scheduler task result.
func awaitJobErr[T any](j *torjob.Job[T], timeout time.Duration) error {
	done := make(chan struct{})
	j.InvokeOnCompletion(torcallback.NewExecutable(func() { close(done) }))
	select {
	case <-done:
		if _, ok := j.Response(); ok {
			return nil
		}
		if cause := j.CancellationCause(); cause != nil {
			return cause
		}
		return fmt.Errorf("job %s did not succeed (state %s)", j.Name(), j.State())
	case <-time.After(timeout):
		return fmt.Errorf("job %s timed out after %s", j.Name(), timeout)
	}
}

func getDisplayAddress(cfg *config.Config) string {
	host := config.GetDisplayHost(cfg)
	return net.JoinHostPort(host, cfg.Server.Port)
}

func checkStatus() {
	cfg, _, err := config.Load("", "")
	if err != nil {
		fmt.Printf("status: error loading config: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Address, cfg.Server.Port)
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		fmt.Printf("status: not running (%v)\n", err)
		os.Exit(1)
	}
	conn.Close()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		fmt.Printf("status: listening but healthcheck failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Println("status: running")
		return
	}
	fmt.Printf("status: unhealthy (HTTP %d)\n", resp.StatusCode)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("torsentry %s\n", version.GetFull())
	fmt.Println("Source: https://github.com/apimgr/torsentry")
}

func printHelp() {
	fmt.Println(`torsentry - a managed Tor daemon runtime

Usage:
  torsentry [flags]
  torsentry --status
  torsentry --shell <command>

Flags:
  --config <dir>     Configuration directory
  --data <dir>       Data directory
  --address <addr>   Listen address
  --port <port>      Listen port
  --mode <mode>      development|production
  --debug            Enable debug mode
  --daemon           Run as a background daemon
  --status           Check whether the daemon is running
  --version          Print version information
  --help             Print this help text

Shell:
  torsentry --shell completions <bash|zsh|fish|powershell>
  torsentry --shell init <bash|zsh|fish|powershell>`)
}

func handleShellCommand(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: torsentry --shell <completions|init> <shell>")
		return
	}
	switch args[0] {
	case "completions":
		if len(args) < 2 {
			fmt.Println("usage: torsentry --shell completions <bash|zsh|fish|powershell>")
			return
		}
		printCompletions(args[1])
	case "init":
		if len(args) < 2 {
			fmt.Println("usage: torsentry --shell init <bash|zsh|fish|powershell>")
			return
		}
		printInit(args[1])
	default:
		fmt.Printf("unknown shell command: %s\n", args[0])
	}
}

func printCompletions(shell string) {
	switch shell {
	case "bash":
		printBashCompletions()
	case "zsh":
		printZshCompletions()
	case "fish":
		printFishCompletions()
	case "powershell":
		printPowerShellCompletions()
	default:
		fmt.Printf("unsupported shell: %s\n", shell)
	}
}

func printInit(shell string) {
	switch shell {
	case "bash":
		fmt.Println(`eval "$(torsentry --shell completions bash)"`)
	case "zsh":
		fmt.Println(`eval "$(torsentry --shell completions zsh)"`)
	case "fish":
		fmt.Println(`torsentry --shell completions fish | source`)
	case "powershell":
		fmt.Println(`torsentry --shell completions powershell | Out-String | Invoke-Expression`)
	default:
		fmt.Printf("unsupported shell: %s\n", shell)
	}
}

func printBashCompletions() {
	fmt.Println(`_torsentry_completions() {
    local cur
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    opts="--config --data --address --port --mode --debug --daemon --status --version --help --shell"
    COMPREPLY=( $(compgen -W "${opts}" -- ${cur}) )
    return 0
}
complete -F _torsentry_completions torsentry`)
}

func printZshCompletions() {
	fmt.Println(`#compdef torsentry
_arguments \
  '--config[configuration directory]:dir:_files -/' \
  '--data[data directory]:dir:_files -/' \
  '--address[listen address]' \
  '--port[listen port]' \
  '--mode[app mode]:mode:(development production)' \
  '--debug[enable debug mode]' \
  '--daemon[run as daemon]' \
  '--status[check daemon status]' \
  '--version[print version]' \
  '--help[print help]'`)
}

func printFishCompletions() {
	fmt.Println(`complete -c torsentry -l config -d 'Configuration directory'
complete -c torsentry -l data -d 'Data directory'
complete -c torsentry -l address -d 'Listen address'
complete -c torsentry -l port -d 'Listen port'
complete -c torsentry -l mode -d 'App mode' -a 'development production'
complete -c torsentry -l debug -d 'Enable debug mode'
complete -c torsentry -l daemon -d 'Run as daemon'
complete -c torsentry -l status -d 'Check daemon status'
complete -c torsentry -l version -d 'Print version'
complete -c torsentry -l help -d 'Print help'`)
}

func printPowerShellCompletions() {
	fmt.Println(`Register-ArgumentCompleter -Native -CommandName torsentry -ScriptBlock {
    param($wordToComplete, $commandAst, $cursorPosition)
    @('--config', '--data', '--address', '--port', '--mode', '--debug', '--daemon', '--status', '--version', '--help') |
        Where-Object { $_ -like "$wordToComplete*" } |
        ForEach-Object { [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterName', $_) }
}`)
}
