// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

func requestContext() (context.Context, context.CancelFunc) {
	d := time.Duration(cfg.Server.Timeout) * time.Second
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}

func runStatus(args []string) error {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		fmt.Printf("Show Tor daemon bootstrap and circuit status\n\nUsage:\n  %s status\n", BinaryName)
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	status, err := client.TorStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	if cfg.Output.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Printf("bootstrap: %d%%\n", status.BootstrapPercent)
	if len(status.Info) > 0 {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for k, v := range status.Info {
			fmt.Fprintf(tw, "%s\t%s\n", k, v)
		}
		tw.Flush()
	}
	return nil
}

func runSignal(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Printf("Send a control-port signal to the managed Tor daemon\n\nUsage:\n  %s signal <NEWNYM|RELOAD|SHUTDOWN|HALT>\n", BinaryName)
		if len(args) == 0 {
			return fmt.Errorf("usage: %s signal <signal>", BinaryName)
		}
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := client.TorSignal(ctx, args[0]); err != nil {
		return fmt.Errorf("sending signal: %w", err)
	}
	fmt.Printf("sent %s\n", args[0])
	return nil
}
