package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [root ...]",
		Short: "Write a starter config file",
		Long: `Writes a config file with defaults and the given source roots. The
file goes to --config when set, otherwise to the default location.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			cfg := config.NewConfig()
			cfg.Roots = args
			if err := cfg.WriteYAML(path); err != nil {
				return err
			}
			fmt.Printf("Config written to %s\n", path)
			if len(args) == 0 {
				fmt.Println("Add source roots under 'roots:' before running 'kbsync run'.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
