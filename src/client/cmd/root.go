// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apimgr/torsentry/src/client/api"
	"gopkg.in/yaml.v3"
)

// Build info (set by main.go)
var (
	ProjectName = "torsentry"
	Version     = "dev"
	CommitID    = "unknown"
	BuildDate   = "unknown"
	BinaryName  = "torsentry-cli"
)

// Config holds CLI configuration
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Token   string `yaml:"token"`
		Timeout int    `yaml:"timeout"`
	} `yaml:"server"`
	Output struct {
		Format string `yaml:"format"`
		Color  string `yaml:"color"`
	} `yaml:"output"`
	TUI struct {
		Theme     string `yaml:"theme"`
		ShowHints bool   `yaml:"show_hints"`
	} `yaml:"tui"`
}

// Global flags
var (
	cfgFile    string
	serverAddr string
	apiToken   string
	outputFmt  string
	noColor    bool
	timeout    int
	tuiMode    bool
)

// Global config and client
var (
	cfg    Config
	client *api.Client
)

// ExecuteCLI runs the CLI, dispatching to the admin-facing subcommands.
func ExecuteCLI() error {
	args := os.Args[1:]

	if len(args) == 0 {
		printHelp()
		return nil
	}

	args = parseGlobalFlags(args)
	loadConfig()
	initClient()

	if len(args) == 0 {
		if tuiMode {
			return RunInteractiveTUI()
		}
		printHelp()
		return nil
	}

	switch args[0] {
	case "help", "-h", "--help":
		printHelp()
	case "version", "-v", "--version":
		printVersion()
	case "config":
		return runConfig(args[1:])
	case "login":
		return runLogin(args[1:])
	case "status":
		return runStatus(args[1:])
	case "signal":
		return runSignal(args[1:])
	case "hidden-service", "hs":
		return runHiddenService(args[1:])
	case "scheduler":
		return runScheduler(args[1:])
	case "probe":
		return RunProbeCommand(args[1:])
	case "shell":
		return RunShellCommand(args[1:])
	case "tui":
		return RunInteractiveTUI()
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}

	return nil
}

func parseGlobalFlags(args []string) []string {
	var remaining []string
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-s", "--server":
			if i+1 < len(args) {
				serverAddr = args[i+1]
				i += 2
			} else {
				i++
			}
		case "-t", "--token":
			if i+1 < len(args) {
				apiToken = args[i+1]
				i += 2
			} else {
				i++
			}
		case "-o", "--output":
			if i+1 < len(args) {
				outputFmt = args[i+1]
				i += 2
			} else {
				i++
			}
		case "-c", "--config":
			if i+1 < len(args) {
				cfgFile = args[i+1]
				i += 2
			} else {
				i++
			}
		case "--no-color":
			noColor = true
			i++
		case "--timeout":
			if i+1 < len(args) {
				fmt.Sscanf(args[i+1], "%d", &timeout)
				i += 2
			} else {
				i++
			}
		case "--tui":
			tuiMode = true
			i++
		case "-h", "--help":
			printHelp()
			os.Exit(0)
		case "-v", "--version":
			printVersion()
			os.Exit(0)
		default:
			remaining = append(remaining, args[i])
			i++
		}
	}
	return remaining
}

func loadConfig() {
	cfg.Server.Timeout = 30
	cfg.Output.Format = "table"
	cfg.Output.Color = "auto"
	cfg.TUI.Theme = "auto"
	cfg.TUI.ShowHints = true

	if cfgFile == "" {
		home, _ := os.UserHomeDir()
		cfgFile = filepath.Join(home, ".config", "apimgr", ProjectName, "cli.yml")
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		yaml.Unmarshal(data, &cfg)
	}

	if serverAddr != "" {
		cfg.Server.Address = serverAddr
	}
	if apiToken != "" {
		cfg.Server.Token = apiToken
	}
	if outputFmt != "" {
		cfg.Output.Format = outputFmt
	}
	if timeout > 0 {
		cfg.Server.Timeout = timeout
	}
	if noColor {
		cfg.Output.Color = "never"
	}

	if env := os.Getenv("TORSENTRY_CLI_TOKEN"); env != "" && cfg.Server.Token == "" {
		cfg.Server.Token = env
	}
	if env := os.Getenv("TORSENTRY_CLI_SERVER"); env != "" && cfg.Server.Address == "" {
		cfg.Server.Address = env
	}
}

func initClient() {
	client = api.NewClient(cfg.Server.Address, cfg.Server.Token, cfg.Server.Timeout)
}

func printHelp() {
	fmt.Printf(`%s v%s - admin CLI for a torsentry instance

Usage:
  %s [command] [flags]

Commands:
  status                    Show Tor daemon bootstrap/circuit status
  signal <name>              Send a control-port signal (NEWNYM, RELOAD, ...)
  hidden-service <action>    Manage hidden services (list, create, get, rm, export)
  scheduler <action>         Inspect and control background tasks
  probe                      Check reachability of the Tor daemon and ports
  login                      Exchange a username/password for a session token
  config            Manage CLI configuration
  tui               Launch the interactive dashboard
  version           Show version information
  help              Show this help

Flags:
  -s, --server string    Server address (default: config or empty)
  -t, --token string     API token for authentication
  -o, --output string    Output format: json, table, plain (default: table)
  -c, --config string    Path to config file
      --no-color         Disable colored output
      --timeout int      Request timeout in seconds (default: 30)
      --tui              Launch TUI mode
  -h, --help             Show help
  -v, --version          Show version

Examples:
  %s status
  %s hidden-service create myservice
  %s scheduler list
  %s --output json status

Use "%s [command] --help" for more information about a command.
`, BinaryName, Version, BinaryName, BinaryName, BinaryName, BinaryName, BinaryName, BinaryName)
}

func printVersion() {
	fmt.Printf("%s v%s (%s) built %s\n", BinaryName, Version, CommitID, BuildDate)
}
