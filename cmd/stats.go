package cmd

import (
	"context"
	"fmt"
	"os"

	appdist "telegram-drive-relay/application/distribution"
	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/transfer"
	"telegram-drive-relay/infrastructure/logging"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what has been uploaded to the destination",
	Long: `Count the files in the destination folder (or bucket prefix) and show
their total size and the storage quota when the backend reports one.

Example:
  telegram-drive-relay stats`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	storage, rootID, err := newStorageClient(ctx, cfg, logging.L(), os.Stderr)
	if err != nil {
		return err
	}

	return RunStatsWithDependencies(ctx, storage, rootID, os.Stdout)
}

// RunStatsWithDependencies prints destination statistics to out
func RunStatsWithDependencies(ctx context.Context, storage distribution.StorageClient, rootID string, out OutputWriter) error {
	svc := appdist.NewStatsService(storage, rootID)

	stats, err := svc.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect statistics: %w", err)
	}

	fmt.Fprintf(out, "Destination: %s\n", svc.Destination())
	fmt.Fprintf(out, "Total files: %d\n", stats.TotalFiles)
	fmt.Fprintf(out, "Total size:  %.2f GB (%.1f MB)\n",
		float64(stats.TotalBytes)/(1024*1024*1024),
		float64(stats.TotalBytes)/(1024*1024))

	if q := stats.Quota; q != nil {
		if q.TotalBytes > 0 {
			fmt.Fprintf(out, "Storage:     %s used of %s (%s free)\n",
				transfer.FormatBytes(uint64(q.UsedBytes)),
				transfer.FormatBytes(uint64(q.TotalBytes)),
				transfer.FormatBytes(uint64(max(q.AvailableBytes, 0))))
		} else {
			fmt.Fprintf(out, "Storage:     %s used (unlimited)\n", transfer.FormatBytes(uint64(q.UsedBytes)))
		}
	}
	return nil
}
