package cmd

import (
	"context"
	"fmt"
	"io"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/infrastructure/config"
	"telegram-drive-relay/infrastructure/drive"
	"telegram-drive-relay/infrastructure/s3"

	"go.uber.org/zap"
)

// newStorageClient builds the configured backend and returns it with the id
// of the root container objects are written below
func newStorageClient(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) (distribution.StorageClient, string, error) {
	switch cfg.Destination.Backend {
	case config.BackendS3:
		client, err := s3.NewClient(ctx, s3.Config{
			Endpoint:     cfg.S3.Endpoint,
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
			PresignTTL:   cfg.S3.PresignTTL,
		}, s3.WithLogger(log.Named("s3")))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create S3 client: %w", err)
		}
		return client, cfg.S3.Prefix, nil

	case config.BackendDrive:
		g := cfg.Google
		var (
			client *drive.Client
			err    error
		)
		if g.AuthMode == config.AuthOAuth {
			client, err = drive.NewClientWithOAuth(ctx, drive.OAuthConfig{
				CredentialsFile: g.CredentialsFile,
				TokenFile:       g.TokenFile,
				Out:             out,
			}, false)
		} else {
			var opts []drive.ClientOption
			if g.CredentialsJSON != "" {
				opts = append(opts, drive.WithCredentialsJSON([]byte(g.CredentialsJSON)))
			}
			client, err = drive.NewClient(ctx, g.CredentialsFile, opts...)
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Google Drive client: %w", err)
		}
		return client, g.FolderID, nil
	}

	return nil, "", fmt.Errorf("unknown backend %q", cfg.Destination.Backend)
}
