// Package cmd provides the CLI commands for the kbstore service.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/config"
	"github.com/tliops/kbsync/internal/logging"
	"github.com/tliops/kbsync/internal/server"
	"github.com/tliops/kbsync/internal/store"
	"github.com/tliops/kbsync/pkg/version"
)

// NewRootCmd creates the root command for kbstore.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		debugMode  bool
		listenAddr string
		dataDir    string
	)

	cmd := &cobra.Command{
		Use:   "kbstore",
		Short: "Document store service for kbsync",
		Long: `kbstore serves the document store over HTTP: chunk ingest with
hash short-circuiting, full-text query, guarded deletes, and the admin
status endpoints the sync engine reports to.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}
			if dataDir != "" {
				cfg.Server.DataDir = dataDir
			}

			logCfg := logging.DefaultConfig()
			logCfg.FilePath = logging.StoreLogPath()
			logCfg.Level = cfg.Log.Level
			if debugMode {
				logCfg.Level = "debug"
			}
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			defer cleanup()
			slog.SetDefault(logger)

			service, err := store.NewService(cfg.Server.DataDir)
			if err != nil {
				return err
			}
			defer service.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(service, server.Options{
				ListenAddr: cfg.Server.ListenAddr,
				AdminKey:   cfg.Server.AdminKey,
				Collection: cfg.Server.Collection,
			})
			slog.Info("starting store service",
				"addr", cfg.Server.ListenAddr,
				"data_dir", cfg.Server.DataDir,
				"collection", cfg.Server.Collection,
				"auth", cfg.Server.AdminKey != "")
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.SetVersionTemplate("kbstore version {{.Version}}\n")

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override server.listen_addr")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override server.data_dir")

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
