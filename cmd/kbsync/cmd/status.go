package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/gateway"
	"github.com/tliops/kbsync/internal/state"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store contents and local sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st := state.NewStore(cfg.Sync.StatePath).Load()

			client := storeClient(cfg)
			storeStatus, storeErr := client.Status(cmd.Context())
			var lastRun *gateway.RunReport
			if storeErr == nil {
				lastRun, _, _ = client.LastRun(cmd.Context())
			}

			if asJSON {
				payload := map[string]any{
					"state_path":      cfg.Sync.StatePath,
					"tracked_docs":    len(st),
					"roots":           cfg.Roots,
					"store_url":       cfg.Store.URL,
					"store_reachable": storeErr == nil,
				}
				if storeStatus != nil {
					payload["store_documents"] = storeStatus.Documents
					payload["store_chunks"] = storeStatus.Chunks
				}
				if lastRun != nil {
					payload["last_run"] = lastRun
				}
				return json.NewEncoder(os.Stdout).Encode(payload)
			}

			fmt.Printf("State file:    %s\n", cfg.Sync.StatePath)
			fmt.Printf("Tracked docs:  %d\n", len(st))
			fmt.Printf("Roots:         %v\n", cfg.Roots)
			fmt.Printf("Store:         %s\n", cfg.Store.URL)
			if storeErr != nil {
				fmt.Printf("Store status:  unreachable (%v)\n", storeErr)
				return nil
			}
			fmt.Printf("Store docs:    %d\n", storeStatus.Documents)
			fmt.Printf("Store chunks:  %d\n", storeStatus.Chunks)
			if lastRun != nil {
				fmt.Printf("Last sync:     %s\n", lastRun.LastRun.Format(time.RFC3339))
				if lastRun.LastError != "" {
					fmt.Printf("Last error:    %s\n", lastRun.LastError)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
