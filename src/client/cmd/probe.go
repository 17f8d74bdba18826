// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"text/tabwriter"
	"time"
)

// probeTarget is one reachability check the probe command performs.
type probeTarget struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// ProbeResult is the outcome of probing a single target.
type ProbeResult struct {
	Name      string `json:"name"`
	Addr      string `json:"addr"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

var (
	probeTimeoutSeconds int
	probeVerboseMode    bool
)

// RunProbeCommand checks reachability of the admin API and the daemon's SOCKS
// and control ports; hidden services are not probed.
func RunProbeCommand(args []string) error {
	probeTimeoutSeconds = 5
	probeVerboseMode = false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--timeout":
			if i+1 < len(args) {
				fmt.Sscanf(args[i+1], "%d", &probeTimeoutSeconds)
				i++
			}
		case "--verbose":
			probeVerboseMode = true
		case "--help", "-h":
			PrintProbeCommandHelp()
			return nil
		}
	}

	ctx, cancel := requestContext()
	defer cancel()

	targets := []probeTarget{
		{Name: "admin-api", Addr: client.GetBaseURL()},
	}

	if status, err := client.TorStatus(ctx); err == nil {
		if socksAddr, ok := status.Info["net/listeners/socks"]; ok && socksAddr != "" {
			targets = append(targets, probeTarget{Name: "socks", Addr: socksAddr})
		}
		if ctrlAddr, ok := status.Info["net/listeners/control"]; ok && ctrlAddr != "" {
			targets = append(targets, probeTarget{Name: "control", Addr: ctrlAddr})
		}
	} else if probeVerboseMode {
		fmt.Fprintf(os.Stderr, "warning: could not fetch tor status: %v\n", err)
	}

	results := make([]ProbeResult, 0, len(targets))
	for _, t := range targets {
		results = append(results, probeOne(t))
	}

	if cfg.Output.Format == "json" {
		return OutputProbeResultsAsJSON(results)
	}
	return OutputProbeResultsAsTable(results)
}

func probeOne(t probeTarget) ProbeResult {
	result := ProbeResult{Name: t.Name, Addr: t.Addr}

	if t.Name == "admin-api" {
		ctx, cancel := requestContext()
		defer cancel()
		start := time.Now()
		err := client.Healthz(ctx)
		result.LatencyMS = time.Since(start).Milliseconds()
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Reachable = true
		return result
	}

	start := time.Now()
	conn, err := net.DialTimeout("tcp", t.Addr, time.Duration(probeTimeoutSeconds)*time.Second)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	conn.Close()
	result.Reachable = true
	return result
}

// PrintProbeCommandHelp prints probe command help.
func PrintProbeCommandHelp() {
	fmt.Printf(`Check reachability of the admin API and the managed Tor daemon's ports

Usage:
  %s probe [flags]

Flags:
      --timeout int   Per-target dial timeout in seconds (default: 5)
      --verbose       Show warnings when status lookup fails
  -h, --help          Show help
`, BinaryName)
}

// OutputProbeResultsAsJSON outputs probe results as JSON.
func OutputProbeResultsAsJSON(results []ProbeResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// OutputProbeResultsAsTable outputs probe results as a table.
func OutputProbeResultsAsTable(results []ProbeResult) error {
	tableWriter := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tableWriter, "TARGET\tADDR\tSTATUS\tLATENCY\n")

	reachable := 0
	for _, r := range results {
		status := "OK"
		if !r.Reachable {
			status = "FAIL"
		} else {
			reachable++
		}
		fmt.Fprintf(tableWriter, "%s\t%s\t%s\t%dms\n", r.Name, r.Addr, status, r.LatencyMS)
	}
	tableWriter.Flush()

	fmt.Printf("\nprobed %d target(s): %d reachable, %d failed\n", len(results), reachable, len(results)-reachable)
	return nil
}
