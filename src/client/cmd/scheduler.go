// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
)

func runScheduler(args []string) error {
	if len(args) == 0 {
		schedulerHelp()
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	switch args[0] {
	case "list", "ls":
		tasks, err := client.SchedulerTasks(ctx)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if cfg.Output.Format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tasks)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "ID\tSCHEDULE\tENABLED\tRUNS\tFAILS\tLAST ERROR\n")
		for _, t := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\t%s\n", t.ID, t.Schedule, t.Enabled, t.RunCount, t.FailCount, t.LastError)
		}
		return tw.Flush()

	case "run":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s scheduler run <id>", BinaryName)
		}
		if err := client.SchedulerRunTask(ctx, args[1]); err != nil {
			return fmt.Errorf("running task: %w", err)
		}
		fmt.Printf("triggered %s\n", args[1])
		return nil

	case "enable":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s scheduler enable <id>", BinaryName)
		}
		if err := client.SchedulerEnableTask(ctx, args[1]); err != nil {
			return fmt.Errorf("enabling task: %w", err)
		}
		fmt.Printf("enabled %s\n", args[1])
		return nil

	case "disable":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s scheduler disable <id>", BinaryName)
		}
		if err := client.SchedulerDisableTask(ctx, args[1]); err != nil {
			return fmt.Errorf("disabling task: %w", err)
		}
		fmt.Printf("disabled %s\n", args[1])
		return nil

	case "-h", "--help":
		schedulerHelp()
		return nil

	default:
		return fmt.Errorf("unknown scheduler command: %s", args[0])
	}
}

func schedulerHelp() {
	fmt.Printf(`Inspect and control background tasks

Usage:
  %s scheduler <command> [args]

Commands:
  list               List registered tasks and their last results
  run <id>           Run a task immediately
  enable <id>        Enable a disabled task
  disable <id>       Disable a task
`, BinaryName)
}
