// Package relay routes inbound messages: commands are answered directly and
// every file message starts its own transfer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apptransfer "telegram-drive-relay/application/transfer"
	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"

	"go.uber.org/zap"
)

// Runner executes one transfer to completion
type Runner interface {
	Run(ctx context.Context, req transfer.Request) (apptransfer.Result, error)
}

// StatsCollector summarizes the destination for /stats
type StatsCollector interface {
	Collect(ctx context.Context) (*distribution.Stats, error)
	Destination() string
}

// Replier posts a message in a chat
type Replier interface {
	SendStatus(ctx context.Context, chatID int64, text string) (messaging.StatusHandle, error)
}

// Config holds what the command texts show
type Config struct {
	MaxFileSize uint64
	FolderLabel string // where files end up, shown by /start and /stats
}

// Service consumes the message source until it closes
type Service struct {
	source  messaging.Source
	runner  Runner
	stats   StatsCollector
	replier Replier
	cfg     Config
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewService creates a new relay service
func NewService(source messaging.Source, runner Runner, stats StatsCollector, replier Replier, cfg Config, log *zap.Logger) *Service {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = apptransfer.DefaultMaxFileSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		source:  source,
		runner:  runner,
		stats:   stats,
		replier: replier,
		cfg:     cfg,
		log:     log,
	}
}

// Serve handles messages until ctx is done and the source closes, then waits
// for running transfers so their staged files are released.
func (s *Service) Serve(ctx context.Context) error {
	updates, err := s.source.Updates(ctx)
	if err != nil {
		return fmt.Errorf("failed to receive updates: %w", err)
	}

	s.log.Info("relay started", zap.String("destination", s.stats.Destination()))
	for msg := range updates {
		s.Handle(ctx, msg)
	}

	s.log.Info("waiting for running transfers")
	s.wg.Wait()
	s.log.Info("relay stopped")
	return nil
}

// Handle routes one message. File transfers run in their own goroutine.
func (s *Service) Handle(ctx context.Context, msg messaging.Inbound) {
	if msg.Command != "" {
		s.command(ctx, msg)
		return
	}

	req, ok := msg.Request()
	if !ok {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.transfer(ctx, req)
	}()
}

// Wait blocks until every transfer started by Handle has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) transfer(ctx context.Context, req transfer.Request) {
	log := s.log.With(zap.String("transfer", req.Key()))

	res, err := s.runner.Run(ctx, req)
	if errors.Is(err, transfer.ErrAlreadyRunning) {
		log.Warn("duplicate message ignored")
		return
	}
	if err != nil {
		log.Info("transfer failed", zap.String("kind", string(transfer.KindOf(err))))
		return
	}
	if res.Object != nil {
		log.Info("transfer completed", zap.String("object", res.Object.ID))
	}
}

func (s *Service) command(ctx context.Context, msg messaging.Inbound) {
	var text string
	switch msg.Command {
	case "start":
		text = startText(msg.SenderName, s.stats.Destination(), s.cfg.FolderLabel, s.cfg.MaxFileSize)
	case "help":
		text = helpText(s.stats.Destination())
	case "stats":
		text = s.statsReply(ctx)
	default:
		s.log.Debug("unknown command", zap.String("command", msg.Command))
		return
	}

	if _, err := s.replier.SendStatus(ctx, msg.ChatID, text); err != nil {
		s.log.Warn("failed to answer command",
			zap.String("command", msg.Command),
			zap.Int64("chat", msg.ChatID),
			zap.Error(err))
	}
}

func (s *Service) statsReply(ctx context.Context) string {
	stats, err := s.stats.Collect(ctx)
	if err != nil {
		s.log.Error("failed to collect statistics", zap.Error(err))
		return statsFailedText
	}
	return statsText(stats, s.cfg.FolderLabel)
}
