package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/scan"
	"github.com/tliops/kbsync/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync continuously on filesystem changes",
		Long: `Runs one synchronization pass, then watches the roots and re-runs
after each debounced burst of filesystem activity. Stops on SIGINT or
SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			debounce, err := cfg.WatchDebounce()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rec := buildReconciler(cfg)
			runOnce := func() {
				report, err := rec.Run(ctx)
				if err != nil {
					slog.Error("sync run failed", "error", err)
				}
				if report != nil {
					renderer().RunSummary(report)
				}
			}

			runOnce()

			w, err := watcher.New(scan.NewRoots(cfg.Roots), debounce)
			if err != nil {
				return err
			}
			defer w.Close()
			go w.Run(ctx)

			slog.Info("watching for changes", "roots", cfg.Roots, "debounce", debounce)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-w.Triggers():
					runOnce()
				}
			}
		},
	}
}
