package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	CatalogPath string
	LedgerPath  string
	StoreDSN    string
	LogLevel    string
	LogPath     string
}

// ServeFlags holds flags for the serve subcommand.
type ServeFlags struct {
	Addr     string
	BasePath string
}

func buildRoot() *cobra.Command {
	gf := &GlobalFlags{}
	sf := &ServeFlags{}

	root := &cobra.Command{
		Use:   "appmand",
		Short: "Single-operator app lifecycle and usage-accounting daemon",
		Long: `Appmand launches, closes and monitors a small catalog of desktop
applications and keeps durable per-app usage statistics.

Examples:
  appmand serve --addr=:8080
  appmand launch dota
  appmand close --all
  appmand stats`,
	}

	root.PersistentFlags().StringVar(&gf.CatalogPath, "catalog", "apps.json", "path to the app catalog JSON")
	root.PersistentFlags().StringVar(&gf.LedgerPath, "pids", "running_pids.json", "path to the pid ledger JSON")
	root.PersistentFlags().StringVar(&gf.StoreDSN, "store", "", "usage store DSN, overrides the catalog setting")
	root.PersistentFlags().StringVar(&gf.LogLevel, "log-level", "", "log level, overrides the catalog setting")
	root.PersistentFlags().StringVar(&gf.LogPath, "log-file", "", "daemon log file, console-only when empty")

	root.AddCommand(
		createServeCommand(gf, sf),
		createLaunchCommand(gf),
		createCloseCommand(gf),
		createStatusCommand(gf),
		createStatsCommand(gf),
		createSetPathCommand(gf),
	)
	return root
}
