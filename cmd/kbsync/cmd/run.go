package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var allowRootRemoval bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one synchronization pass",
		Long: `Scans the configured roots, ingests new and modified documents,
and removes vanished ones from the store. Exits non-zero when the run
aborts or any document fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if allowRootRemoval {
				cfg.Sync.AllowRootRemoval = true
			}

			report, err := buildReconciler(cfg).Run(cmd.Context())
			if report != nil {
				renderer().RunSummary(report)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&allowRootRemoval, "allow-root-removal", false,
		"Permit deleting all documents of a root that was removed from the config")
	return cmd
}
