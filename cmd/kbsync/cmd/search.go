package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the document store",
		Long: `Query the document store for the best-matching chunks.

Examples:
  kbsync search "vacation policy"
  kbsync search "onboarding checklist" -n 5
  kbsync search "expense report" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := storeClient(cfg)
			query := strings.Join(args, " ")
			resp, err := client.Query(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(resp)
			}

			if len(resp.Results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, res := range resp.Results {
				fmt.Printf("%d. %s (score %.3f)\n", i+1, res.DocumentID, res.Score)
				fmt.Printf("   %s\n", firstLine(res.Text))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	const max = 120
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
