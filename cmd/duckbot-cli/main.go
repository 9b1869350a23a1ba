// Package main provides the duckbot-cli command-line tool for managing
// DuckBot deployments: validating configuration files and inspecting the
// registered guard filters.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	duckbot "github.com/dresos/duckbot"
	"github.com/dresos/duckbot/guard"
	"github.com/dresos/duckbot/internal/version"

	// Register built-in guard filters so they appear in the filter list.
	_ "github.com/dresos/duckbot/internal/guards/ipquery"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "duckbot-cli",
		Short: "DuckBot command line tool",
		Long:  "duckbot-cli validates DuckBot configuration files and lists registered guard filters.",
	}
	root.AddCommand(newValidateCmd(), newFiltersCmd(), newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a bot configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := duckbot.LoadConfig(args[0])
			if err != nil {
				return err
			}
			if err := duckbot.ValidateConfig(*cfg); err != nil {
				return err
			}
			if _, err := duckbot.LoadFilters(*cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config OK: owner=%d, filters=%d, blacklist=%s\n",
				cfg.OwnerID, len(cfg.Filters), blacklistBackend(cfg))
			return nil
		},
	}
}

func newFiltersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List all registered guard filters",
		Run: func(cmd *cobra.Command, _ []string) {
			names := guard.RegisteredFilters()
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func blacklistBackend(cfg *duckbot.Config) string {
	if cfg.Blacklist.Backend == "" {
		return string(duckbot.BackendMemory)
	}
	return string(cfg.Blacklist.Backend)
}
