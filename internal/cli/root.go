// Package cli provides the command-line interface for the trade reconciler.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trade-reconciler/internal/config"
	"trade-reconciler/internal/logging"
	"trade-reconciler/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-16"
)

// App holds the application dependencies. Config and Logger are set before
// any command runs; the store is opened on first use.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// DataStore returns the SQLite store, opening it on first use.
func (a *App) DataStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}

	dataStore, err := store.NewSQLiteStore(a.Config.Store.DBPath)
	if err != nil {
		return nil, err
	}
	a.Store = dataStore
	a.Logger.Debug().Str("path", a.Config.Store.DBPath).Msg("SQLite store initialized")
	return dataStore, nil
}

// Close releases the store, if one was opened.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "reconciler",
		Short: "Trade reconciler - match fills into round-trip trades",
		Long: `Trade reconciler turns broker fills into matched round-trip trades.

Fills are paired FIFO or LIFO per symbol, partial fills are split at their
unit cost, and every closed trade carries its proceeds, cost basis, gain and
the running realized P&L.

Use 'reconciler <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				cfg.Log.Level = "debug"
				cfg.Log.Console = true
			}
			app.Logger = logging.NewLoggerWithConfig(cfg.LoggingConfig())
			app.Logger.Debug().Str("config", cfg.Path).Msg("Configuration loaded")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trade-reconciler)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newProcessCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newReportCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Trade Reconciler v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Path})
			}
			output.Println(app.Config.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Ledger")
	output.Printf("  Discipline:      %s\n", cfg.Discipline())
	output.Printf("  Broker:          %s\n", cfg.Ledger.Broker)
	output.Printf("  Timezone:        %s\n", cfg.Ledger.Timezone)
	output.Println()

	output.Bold("Fees")
	output.Printf("  Model:           %s\n", cfg.Fees.Model)
	switch cfg.Fees.Model {
	case "flat":
		output.Printf("  Per Order:       %.2f\n", cfg.Fees.PerOrder)
	case "per_share", "per-share":
		output.Printf("  Per Share:       %.4f\n", cfg.Fees.PerShare)
		output.Printf("  Minimum:         %.2f\n", cfg.Fees.Minimum)
		output.Printf("  Max Percent:     %.2f%%\n", cfg.Fees.MaxPercent*100)
	}
	output.Printf("  Regulatory Rate: %g\n", cfg.Fees.RegulatoryRate)
	output.Printf("  Settlement:      T+%d\n", cfg.Settlement.Days)
	output.Println()

	output.Bold("Processing")
	output.Printf("  Workers:         %d\n", cfg.Dispatch.Workers)
	output.Printf("  Queue Size:      %d\n", cfg.Dispatch.QueueSize)
	output.Printf("  Batch Size:      %d\n", cfg.Dispatch.BatchSize)
	output.Printf("  Database:        %s\n", cfg.Store.DBPath)
	output.Printf("  Log Level:       %s\n", cfg.Log.Level)
}
