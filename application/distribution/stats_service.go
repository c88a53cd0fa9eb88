package distribution

import (
	"context"
	"errors"
	"fmt"

	"telegram-drive-relay/domain/distribution"

	"github.com/samber/lo"
)

// StatsService summarizes what has been uploaded to the destination folder
type StatsService struct {
	client   distribution.StorageClient
	folderID string
}

// NewStatsService creates a new stats service
func NewStatsService(client distribution.StorageClient, folderID string) *StatsService {
	return &StatsService{
		client:   client,
		folderID: folderID,
	}
}

// Collect counts the files in the destination folder and adds the storage
// quota when the backend reports one. Files placed in per-item folders one
// level below the destination folder are counted too.
func (s *StatsService) Collect(ctx context.Context) (*distribution.Stats, error) {
	entries, err := s.client.ListContainerContents(ctx, s.folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := lo.Reject(entries, isContainer)
	for _, c := range lo.Filter(entries, isContainer) {
		children, err := s.client.ListContainerContents(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list files in %q: %w", c.Name, err)
		}
		files = append(files, lo.Reject(children, isContainer)...)
	}

	stats := &distribution.Stats{
		TotalFiles: len(files),
		TotalBytes: lo.SumBy(files, func(f distribution.FileInfo) int64 { return f.Size }),
	}

	quota, err := s.client.GetStorageQuota(ctx)
	switch {
	case errors.Is(err, distribution.ErrQuotaUnsupported):
	case err != nil:
		return nil, fmt.Errorf("failed to check storage: %w", err)
	default:
		stats.Quota = quota
	}

	return stats, nil
}

func isContainer(f distribution.FileInfo, _ int) bool {
	return f.IsContainer()
}

// Destination returns the backend name
func (s *StatsService) Destination() string {
	return s.client.Name()
}
