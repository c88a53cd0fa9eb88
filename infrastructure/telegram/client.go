package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"telegram-drive-relay/domain/messaging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// DefaultAPIEndpoint is the public Bot API method endpoint
	DefaultAPIEndpoint = tgbotapi.APIEndpoint
	// DefaultFileEndpoint is the public Bot API file download endpoint
	DefaultFileEndpoint = tgbotapi.FileEndpoint

	notModified = "message is not modified"
)

// BotAPI defines the Bot API calls the client makes
// This allows mocking Telegram in tests
type BotAPI interface {
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config holds the Telegram connection settings
type Config struct {
	Token        string
	APIEndpoint  string // format string taking the token and method
	FileEndpoint string // format string taking the token and file path
	PollTimeout  int    // long polling timeout in seconds
}

// Client implements messaging.Transport and messaging.Source on the Bot API
type Client struct {
	bot        BotAPI
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithBotAPI sets a custom Bot API implementation (for testing)
func WithBotAPI(bot BotAPI) ClientOption {
	return func(c *Client) {
		c.bot = bot
	}
}

// WithHTTPClient sets the client used for file downloads
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Telegram client
// If no Bot API is provided, it connects to the configured endpoint
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = DefaultAPIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = DefaultFileEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}

	c := &Client{
		cfg: cfg,
		// No overall timeout: downloads of large files run for minutes and
		// are bounded by the request context instead.
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}},
		log: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.bot == nil {
		if cfg.Token == "" {
			return nil, ErrMissingToken
		}
		bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, cfg.APIEndpoint)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to Telegram: %w", redact(err, cfg.Token))
		}
		c.log.Info("authorized on Telegram", zap.String("bot", bot.Self.UserName))
		c.bot = bot
	}

	return c, nil
}

// GetFileHandle implements messaging.Transport
func (c *Client) GetFileHandle(ctx context.Context, fileID string) (messaging.FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return messaging.FileHandle{}, err
	}
	f, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return messaging.FileHandle{}, fmt.Errorf("getFile %s: %w", fileID, redact(err, c.cfg.Token))
	}
	if f.FilePath == "" {
		return messaging.FileHandle{}, fmt.Errorf("getFile %s: %w", fileID, ErrNoFilePath)
	}
	return messaging.FileHandle{
		ID:       f.FileID,
		Size:     uint64(f.FileSize),
		Location: f.FilePath,
	}, nil
}

// SendStatus implements messaging.Transport
func (c *Client) SendStatus(ctx context.Context, chatID int64, text string) (messaging.StatusHandle, error) {
	if err := ctx.Err(); err != nil {
		return messaging.StatusHandle{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := c.bot.Send(msg)
	if err != nil {
		return messaging.StatusHandle{}, fmt.Errorf("sendMessage: %w", redact(err, c.cfg.Token))
	}
	return messaging.StatusHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditStatus implements messaging.Transport. Telegram rejects edits that do
// not change the text; those are treated as success.
func (c *Client) EditStatus(ctx context.Context, h messaging.StatusHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true

	if _, err := c.bot.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return fmt.Errorf("editMessageText: %w", redact(err, c.cfg.Token))
	}
	return nil
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, notModified)
	}
	return strings.Contains(err.Error(), notModified)
}

// redact removes the bot token from errors that embed request URLs
func redact(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

var (
	_ messaging.Transport = (*Client)(nil)
	_ messaging.Source    = (*Client)(nil)
)
