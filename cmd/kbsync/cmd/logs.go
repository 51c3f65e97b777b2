package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tliops/kbsync/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		lines     int
		logFile   string
		level     string
		fromStore bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Show the last entries of the kbsync log file.

Examples:
  kbsync logs              # Last 50 lines of the sync log
  kbsync logs -n 200       # Last 200 lines
  kbsync logs --store      # Store service log instead
  kbsync logs --level error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := logFile
			if path == "" && fromStore {
				path = logging.StoreLogPath()
			}
			found, err := logging.FindLogFile(path)
			if err != nil {
				return err
			}

			entries, err := tailLines(found, lines, strings.ToUpper(level))
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Log file: %s\n", found)
			for _, line := range entries {
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file")
	cmd.Flags().StringVar(&level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().BoolVar(&fromStore, "store", false, "Show the store service log")
	return cmd
}

// tailLines returns the last n lines of the file, optionally keeping only
// entries whose level field matches. Log files are size-rotated, so reading
// them whole is bounded.
func tailLines(path string, n int, level string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var kept []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if level != "" && !strings.Contains(line, `"level":"`+level+`"`) {
			continue
		}
		kept = append(kept, line)
		if len(kept) > n*2 {
			kept = kept[len(kept)-n:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept, nil
}
