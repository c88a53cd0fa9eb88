package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appdist "telegram-drive-relay/application/distribution"
	"telegram-drive-relay/application/relay"
	apptransfer "telegram-drive-relay/application/transfer"
	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/infrastructure/config"
	"telegram-drive-relay/infrastructure/logging"
	"telegram-drive-relay/infrastructure/metrics"
	"telegram-drive-relay/infrastructure/staging"
	"telegram-drive-relay/infrastructure/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay bot",
	Long: `Connect to Telegram and relay every received file to the configured
destination until interrupted.

On SIGINT or SIGTERM running transfers are cancelled, their staged files are
removed and the command exits once every transfer has reported back.

Example:
  telegram-drive-relay serve
  telegram-drive-relay serve --config /etc/relay/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logging.Sync() }()
	log := logging.L()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := telegram.NewClient(telegram.Config{
		Token:        cfg.Telegram.Token,
		APIEndpoint:  cfg.Telegram.APIEndpoint,
		FileEndpoint: cfg.Telegram.FileEndpoint,
		PollTimeout:  cfg.Telegram.PollTimeout,
	}, telegram.WithLogger(log.Named("telegram")))
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	storage, rootID, err := newStorageClient(ctx, cfg, log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	area, err := staging.NewOS(cfg.Transfer.StagingDir, log.Named("staging"))
	if err != nil {
		return fmt.Errorf("failed to prepare staging directory: %w", err)
	}

	return RunServeWithDependencies(ctx, bot, bot, storage, rootID, area, cfg, log)
}

// RunServeWithDependencies wires the relay and runs it until ctx is done or
// the message source stops
func RunServeWithDependencies(
	ctx context.Context,
	source messaging.Source,
	transport messaging.Transport,
	storage distribution.StorageClient,
	rootID string,
	area *staging.Area,
	cfg *config.Config,
	log *zap.Logger,
) error {
	// Files left behind by a killed process
	if n, err := area.Sweep(); err != nil {
		log.Warn("failed to sweep staging directory", zap.Error(err))
	} else if n > 0 {
		log.Info("removed leftover staged files", zap.Int("count", n))
	}

	placement, err := appdist.NewPlacement(appdist.Placement(cfg.Destination.Placement), cfg.Destination.ReuseExistingFolder)
	if err != nil {
		return err
	}
	publisher := appdist.NewPublisher(storage, rootID, placement, log.Named("publisher"))

	pipeline := apptransfer.NewPipeline(transport, area, publisher,
		apptransfer.Config{
			MaxFileSize:      uint64(cfg.Transfer.MaxFileSize),
			ProgressInterval: cfg.Transfer.ProgressInterval,
		},
		apptransfer.WithWorkerPool(apptransfer.NewWorkerPool(cfg.Workers.Publish)),
		apptransfer.WithLogger(log.Named("transfer")),
	)

	svc := relay.NewService(source, pipeline, appdist.NewStatsService(storage, rootID), transport,
		relay.Config{
			MaxFileSize: uint64(cfg.Transfer.MaxFileSize),
			FolderLabel: cfg.Destination.FolderLabel,
		},
		log.Named("relay"),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.Metrics.Addr)
	})
	g.Go(func() error {
		defer cancel()
		return svc.Serve(gctx)
	})

	log.Info("serving",
		zap.String("destination", storage.Name()),
		zap.String("placement", cfg.Destination.Placement),
		zap.Int("publish_workers", cfg.Workers.Publish),
		zap.String("metrics", cfg.Metrics.Addr))
	return g.Wait()
}
