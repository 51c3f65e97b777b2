package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/config"
	"github.com/tliops/kbsync/internal/guard"
	"github.com/tliops/kbsync/internal/scan"
	"github.com/tliops/kbsync/internal/state"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the pre-flight safety checks without syncing",
		Long: `Evaluates every check a sync run would perform: root health, state
directory, store reachability, and the root removal guard. Exits non-zero
when any check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			roots := scan.NewRoots(cfg.Roots)
			checkers := []guard.Checker{
				&guard.StateDirChecker{StatePath: cfg.Sync.StatePath},
			}
			for _, root := range roots {
				checkers = append(checkers, &guard.MountChecker{
					Path:              root.Path,
					Label:             root.Label,
					RequireMountpoint: cfg.Sync.RequireMountCheck,
				})
			}

			st := state.NewStore(cfg.Sync.StatePath).Load()
			checkers = append(checkers, &guard.RootRemovalChecker{
				StateLabels:  st.Labels(),
				ConfigLabels: scan.Labels(roots),
				AllowRemoval: cfg.Sync.AllowRootRemoval,
			})
			checkers = append(checkers, &storeChecker{cfg: cfg})

			results, ok := guard.RunAll(checkers)
			renderer().CheckResults(results)
			if !ok {
				return fmt.Errorf("pre-flight checks failed")
			}
			return nil
		},
	}
}

// storeChecker probes the store's health endpoint as a named check.
type storeChecker struct {
	cfg *config.Config
}

func (c *storeChecker) Name() string {
	return "store reachability"
}

func (c *storeChecker) Check() guard.CheckResult {
	result := guard.CheckResult{Name: c.Name(), Status: guard.StatusPass}

	client := storeClient(c.cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		result.Status = guard.StatusFail
		result.Message = fmt.Sprintf("store at %s is unreachable: %v", c.cfg.Store.URL, err)
		result.Suggestion = "start the store service or fix store.url"
		return result
	}
	result.Message = fmt.Sprintf("store at %s is reachable", c.cfg.Store.URL)
	return result
}
