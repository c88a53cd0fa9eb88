// Package transfer runs the fetch, stage and publish lifecycle of a single
// inbound file.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"
	"telegram-drive-relay/infrastructure/metrics"
	"telegram-drive-relay/infrastructure/staging"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// DefaultMaxFileSize is the largest file the relay accepts (2 GiB)
const DefaultMaxFileSize uint64 = 2 * 1024 * 1024 * 1024

// finalStatusTimeout bounds the last status edit once the run context is gone
const finalStatusTimeout = 10 * time.Second

// Publisher uploads staged content to the destination
type Publisher interface {
	Publish(ctx context.Context, content distribution.Content, size int64, name, mimeType string) (*distribution.RemoteObject, error)
	Destination() string
}

// Config holds the pipeline limits
type Config struct {
	MaxFileSize      uint64
	ProgressInterval time.Duration
}

// Result is what a run hands back to its caller. Transfer is a snapshot of
// the settled record.
type Result struct {
	Transfer transfer.Transfer
	Object   *distribution.RemoteObject
}

// Pipeline moves files from the messaging transport to the destination
type Pipeline struct {
	transport messaging.Transport
	staging   *staging.Area
	publisher Publisher
	pool      *WorkerPool
	cfg       Config
	throttle  transfer.Throttle
	log       *zap.Logger
	now       func() time.Time
	inFlight  sync.Map
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkerPool sets the pool publish jobs run on
func WithWorkerPool(pool *WorkerPool) Option {
	return func(p *Pipeline) {
		p.pool = pool
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline
func NewPipeline(transport messaging.Transport, area *staging.Area, publisher Publisher, cfg Config, opts ...Option) *Pipeline {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = transfer.DefaultInterval
	}

	p := &Pipeline{
		transport: transport,
		staging:   area,
		publisher: publisher,
		cfg:       cfg,
		throttle:  transfer.Throttle{Interval: cfg.ProgressInterval},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pool == nil {
		p.pool = NewWorkerPool(1)
	}
	return p
}

// Run executes one transfer to completion. The returned error is nil or a
// *transfer.Error, and the staged file has been released by the time Run
// returns. A second Run for a request that is still in flight is refused
// with KindAlreadyRunning.
func (p *Pipeline) Run(ctx context.Context, req transfer.Request) (res Result, err error) {
	key := req.Key()
	if _, loaded := p.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return Result{}, transfer.NewError(transfer.KindAlreadyRunning, fmt.Errorf("transfer %s is in flight", key))
	}
	defer p.inFlight.Delete(key)

	r := &run{
		p: p,
		t: transfer.New(req, p.now()),
		log: p.log.With(
			zap.Int64("chat_id", req.ChatID),
			zap.Int("message_id", req.MessageID),
			zap.String("kind", string(req.File.Kind)),
		),
	}
	metrics.TransferStarted()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("transfer panicked", zap.Any("panic", rec))
			r.fail(ctx, transfer.NewError(transfer.KindUnexpected, fmt.Errorf("panic: %v", rec)))
		}

		res = Result{Transfer: *r.t, Object: r.object}
		kind := ""
		if r.t.Failure != nil {
			kind = string(r.t.Failure.Kind)
			err = r.t.Failure
		}
		metrics.TransferSettled(r.t.Outcome.String(), kind)
		r.log.Info("transfer settled",
			zap.String("name", r.t.ResolvedName),
			zap.String("outcome", r.t.Outcome.String()),
			zap.String("failure", kind),
			zap.Uint64("bytes", r.t.BytesTransferred),
			zap.Duration("elapsed", r.t.Elapsed(p.now())),
		)
	}()

	r.execute(ctx)
	return
}

// run is the state of a single Run call
type run struct {
	p      *Pipeline
	t      *transfer.Transfer
	log    *zap.Logger
	status messaging.StatusHandle
	object *distribution.RemoteObject
}

func (r *run) execute(ctx context.Context) {
	req := r.t.Request
	if err := req.Validate(); err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return
	}

	if r.t.TotalBytes > r.p.cfg.MaxFileSize {
		r.fail(ctx, transfer.NewError(transfer.KindSizeExceeded,
			fmt.Errorf("declared size %d exceeds limit %d", r.t.TotalBytes, r.p.cfg.MaxFileSize)))
		return
	}

	name, err := transfer.Resolve(req.File.Name, req.File.Kind, req.MessageID, req.File.MIME)
	if err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindNameResolution, err))
		return
	}
	r.t.ResolvedName = name

	h, err := r.p.staging.Acquire(name)
	if err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return
	}
	defer r.p.staging.Release(h)
	r.t.StagePath = h.Path()

	if !r.fetch(ctx, h) {
		return
	}
	r.publish(ctx, h)
}

// fetch downloads the file into h and reports whether the run may continue
func (r *run) fetch(ctx context.Context, h *staging.Handle) bool {
	if err := r.t.Advance(transfer.StateFetching); err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return false
	}

	header := downloadingHeader(r.t.Request.File.Kind, r.t.ResolvedName, r.t.TotalBytes)
	started := r.p.now()
	r.show(ctx, transfer.RenderProgress(header, 0, r.t.TotalBytes, 0))
	r.t.LastReportedAt = started

	fh, err := r.p.transport.GetFileHandle(ctx, r.t.Request.File.ID)
	if err != nil {
		r.fail(ctx, r.fetchError(ctx, fmt.Errorf("failed to get file: %w", err)))
		return false
	}
	r.t.RecordProgress(0, fh.Size)
	if r.t.TotalBytes > r.p.cfg.MaxFileSize {
		r.fail(ctx, transfer.NewError(transfer.KindSizeExceeded,
			fmt.Errorf("transport size %d exceeds limit %d", fh.Size, r.p.cfg.MaxFileSize)))
		return false
	}

	w, err := h.Create()
	if err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return false
	}

	onProgress := func(current, total uint64) {
		r.t.RecordProgress(current, total)
		now := r.p.now()
		if !r.p.throttle.ShouldEmit(r.t.LastReportedAt, now, false) {
			return
		}
		r.t.LastReportedAt = now
		r.show(ctx, transfer.RenderProgress(header, r.t.BytesTransferred, r.t.TotalBytes, now.Sub(started).Seconds()))
	}

	err = r.p.transport.StreamDownload(ctx, fh, w, onProgress)
	if closeErr := w.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to flush staging file: %w", closeErr)
	}
	if err != nil {
		r.fail(ctx, r.fetchError(ctx, err))
		return false
	}

	staged, err := h.Size()
	if err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return false
	}
	size := uint64(staged)
	r.t.CompleteFetch(size)

	now := r.p.now()
	r.t.LastReportedAt = now
	header = downloadingHeader(r.t.Request.File.Kind, r.t.ResolvedName, r.t.TotalBytes)
	r.show(ctx, transfer.RenderProgress(header, r.t.BytesTransferred, r.t.TotalBytes, now.Sub(started).Seconds()))
	metrics.RecordFetch(size, now.Sub(started))

	if err := r.t.Advance(transfer.StateStaged); err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return false
	}
	return true
}

func (r *run) fetchError(ctx context.Context, err error) *transfer.Error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return transfer.NewError(transfer.KindUnexpected, err)
	}
	return transfer.NewError(transfer.KindDownload, err)
}

func (r *run) publish(ctx context.Context, h *staging.Handle) {
	staged, err := h.Size()
	if err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return
	}
	size := uint64(staged)

	mimeType, err := r.resolveMIME(h)
	if err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return
	}

	if err := r.t.Advance(transfer.StatePublishing); err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return
	}
	destination := r.p.publisher.Destination()
	r.show(ctx, uploadingText(destination, r.t.ResolvedName, size))

	started := r.p.now()
	var obj *distribution.RemoteObject
	err = r.p.pool.Do(ctx, func(ctx context.Context) error {
		f, err := h.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		obj, err = r.p.publisher.Publish(ctx, f, staged, r.t.ResolvedName, mimeType)
		return err
	})
	if err != nil {
		r.fail(ctx, r.publishError(ctx, err))
		return
	}

	metrics.RecordPublish(staged, r.p.now().Sub(started))
	if err := r.t.Succeed(); err != nil {
		r.fail(ctx, transfer.NewError(transfer.KindUnexpected, err))
		return
	}
	r.object = obj
	r.finish(ctx, successText(destination, obj, size))
}

func (r *run) publishError(ctx context.Context, err error) *transfer.Error {
	if ctx.Err() != nil {
		return transfer.NewError(transfer.KindUnexpected, err)
	}
	var pe *distribution.PublishError
	if errors.As(err, &pe) {
		metrics.RecordPublishError(string(pe.Kind))
		return transfer.NewError(transfer.KindPublish, err)
	}
	return transfer.NewError(transfer.KindUnexpected, err)
}

// resolveMIME prefers the declared type, then the extension table, then the
// staged bytes
func (r *run) resolveMIME(h *staging.Handle) (string, error) {
	mimeType := transfer.ResolveMIME(r.t.Request.File.MIME, r.t.ResolvedName)
	if mimeType != transfer.MimeOctetStream {
		return mimeType, nil
	}

	f, err := h.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to sniff content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return detected.String(), nil
}

// fail settles the transfer as failed and reports it once. Later failures are
// ignored.
func (r *run) fail(ctx context.Context, err *transfer.Error) {
	if r.t.Settled() {
		return
	}
	r.t.Fail(err)
	r.log.Warn("transfer failed", zap.String("failure", string(err.Kind)), zap.Error(err))

	text := failureText(err)
	if err.Kind == transfer.KindSizeExceeded {
		text = sizeExceededText(r.t.TotalBytes, r.p.cfg.MaxFileSize)
	}
	r.finish(ctx, text)
}

// finish shows the final status even when ctx is already cancelled. If the
// status message cannot be edited a new one is sent.
func (r *run) finish(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalStatusTimeout)
	defer cancel()

	if !r.status.IsZero() {
		err := r.p.transport.EditStatus(ctx, r.status, text)
		metrics.RecordStatusUpdate(err == nil)
		if err == nil {
			return
		}
		r.log.Warn("failed to edit final status", zap.Error(err))
	}

	_, err := r.p.transport.SendStatus(ctx, r.t.Request.ChatID, text)
	metrics.RecordStatusUpdate(err == nil)
	if err != nil {
		r.log.Warn("failed to send final status", zap.Error(err))
	}
}

// show sends the first status message and edits it afterwards. Failures are
// logged and otherwise ignored.
func (r *run) show(ctx context.Context, text string) {
	if r.status.IsZero() {
		h, err := r.p.transport.SendStatus(ctx, r.t.Request.ChatID, text)
		metrics.RecordStatusUpdate(err == nil)
		if err != nil {
			r.log.Warn("failed to send status", zap.Error(err))
			return
		}
		r.status = h
		return
	}

	err := r.p.transport.EditStatus(ctx, r.status, text)
	metrics.RecordStatusUpdate(err == nil)
	if err != nil {
		r.log.Debug("failed to edit status", zap.Error(err))
	}
}
