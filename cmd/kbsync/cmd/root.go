// Package cmd provides the CLI commands for kbsync.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/config"
	"github.com/tliops/kbsync/internal/errors"
	"github.com/tliops/kbsync/internal/gateway"
	"github.com/tliops/kbsync/internal/logging"
	"github.com/tliops/kbsync/internal/reconcile"
	"github.com/tliops/kbsync/internal/scan"
	"github.com/tliops/kbsync/internal/state"
	"github.com/tliops/kbsync/internal/ui"
	"github.com/tliops/kbsync/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the kbsync CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbsync",
		Short: "Incremental knowledge-base synchronization",
		Long: `kbsync keeps a document store in sync with files under the
configured source roots. Change detection is content-hash based, so runs
are cheap no matter how the files are touched, and deletions only reach
the store after the safety guards pass.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("kbsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(*cobra.Command, []string) error {
	cleanup, err := logging.SetupDefault(debugMode)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Debug("debug logging enabled", "log_file", logging.DefaultLogPath())
	}
	return nil
}

// loadConfig loads and validates the configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if len(cfg.Roots) == 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			"no source roots configured", nil).
			WithSuggestion("add roots to the config file or run 'kbsync init'")
	}
	return cfg, nil
}

// storeClient builds the gateway client from the configuration. The
// timeout was validated with the config, so it is safe to drop the error.
func storeClient(cfg *config.Config) *gateway.Client {
	timeout, _ := cfg.StoreTimeout()
	return gateway.NewClientWithOptions(cfg.Store.URL, gateway.Options{
		AdminKey: cfg.Store.AdminKey,
		Timeout:  timeout,
	})
}

// buildReconciler wires a reconciler from the configuration.
func buildReconciler(cfg *config.Config) *reconcile.Reconciler {
	client := storeClient(cfg)
	states := state.NewStore(cfg.Sync.StatePath)
	return reconcile.NewReconciler(client, states, reconcile.Options{
		Roots:             scan.NewRoots(cfg.Roots),
		AllowRootRemoval:  cfg.Sync.AllowRootRemoval,
		RequireMountCheck: cfg.Sync.RequireMountCheck,
		MaxFileSize:       cfg.MaxFileSize(),
		Workers:           cfg.Sync.Workers,
		ChunkMaxChars:     cfg.Sync.ChunkMaxChars,
	})
}

func renderer() *ui.Renderer {
	return ui.NewRenderer(os.Stdout, ui.StylesFor(os.Stdout))
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatForCLI(err))
		return err
	}
	return nil
}
