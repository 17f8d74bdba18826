// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/apimgr/torsentry/src/client/api"
)

func runHiddenService(args []string) error {
	if len(args) == 0 {
		hiddenServiceHelp()
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	switch args[0] {
	case "list", "ls":
		services, err := client.HiddenServicesList(ctx)
		if err != nil {
			return fmt.Errorf("listing hidden services: %w", err)
		}
		return printHiddenServices(services)

	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s hidden-service create <name>", BinaryName)
		}
		hs, err := client.HiddenServiceCreate(ctx, args[1])
		if err != nil {
			return fmt.Errorf("creating hidden service: %w", err)
		}
		fmt.Printf("created %s: %s\n", hs.Name, hs.OnionAddress)
		return nil

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s hidden-service get <name>", BinaryName)
		}
		hs, err := client.HiddenServiceGet(ctx, args[1])
		if err != nil {
			return fmt.Errorf("fetching hidden service: %w", err)
		}
		fmt.Printf("%s: %s\n", hs.Name, hs.OnionAddress)
		return nil

	case "rm", "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s hidden-service rm <name>", BinaryName)
		}
		if err := client.HiddenServiceDelete(ctx, args[1]); err != nil {
			return fmt.Errorf("deleting hidden service: %w", err)
		}
		fmt.Printf("deleted %s\n", args[1])
		return nil

	case "export":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s hidden-service export <name>", BinaryName)
		}
		descriptor, err := client.HiddenServiceExport(ctx, args[1])
		if err != nil {
			return fmt.Errorf("exporting hidden service: %w", err)
		}
		fmt.Println(descriptor)
		return nil

	case "-h", "--help":
		hiddenServiceHelp()
		return nil

	default:
		return fmt.Errorf("unknown hidden-service command: %s", args[0])
	}
}

func printHiddenServices(services []api.HiddenService) error {
	if cfg.Output.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(services)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tONION ADDRESS\n")
	for _, s := range services {
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.OnionAddress)
	}
	return tw.Flush()
}

func hiddenServiceHelp() {
	fmt.Printf(`Manage hidden services

Usage:
  %s hidden-service <command> [args]

Commands:
  list               List managed hidden services
  create <name>      Generate keys and register a new hidden service
  get <name>         Show a hidden service's onion address
  rm <name>          Delete a hidden service's key material
  export <name>      Print a hidden service's private descriptor

Examples:
  %s hidden-service create myservice
  %s hidden-service list
`, BinaryName, BinaryName, BinaryName)
}
