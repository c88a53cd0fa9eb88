package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"
	"telegram-drive-relay/infrastructure/staging"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

// fakeTransport implements messaging.Transport for testing
type fakeTransport struct {
	mu          sync.Mutex
	content     []byte
	chunkSize   int
	getErr      error
	downloadErr error
	beforeChunk func(ctx context.Context, n int) error
	sendErr     error
	editErr     error
	getCalls    int
	messages    []string // every text shown, sends and edits in order
	sends       int
	nextID      int
}

func (f *fakeTransport) GetFileHandle(ctx context.Context, fileID string) (messaging.FileHandle, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.getErr != nil {
		return messaging.FileHandle{}, f.getErr
	}
	return messaging.FileHandle{ID: fileID, Size: uint64(len(f.content)), Location: "documents/file_1"}, nil
}

func (f *fakeTransport) StreamDownload(ctx context.Context, h messaging.FileHandle, dst io.Writer, onProgress messaging.ProgressFunc) error {
	chunk := f.chunkSize
	if chunk <= 0 {
		chunk = 1024 * 1024
	}
	var written uint64
	for i := 0; written < uint64(len(f.content)); i++ {
		if f.beforeChunk != nil {
			if err := f.beforeChunk(ctx, i); err != nil {
				return err
			}
		}
		if i > 0 && f.downloadErr != nil {
			return f.downloadErr
		}
		end := int(written) + chunk
		if end > len(f.content) {
			end = len(f.content)
		}
		n, err := dst.Write(f.content[written:end])
		if err != nil {
			return err
		}
		written += uint64(n)
		onProgress(written, h.Size)
	}
	return f.downloadErr
}

func (f *fakeTransport) SendStatus(ctx context.Context, chatID int64, text string) (messaging.StatusHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return messaging.StatusHandle{}, ctx.Err()
	}
	if f.sendErr != nil {
		return messaging.StatusHandle{}, f.sendErr
	}
	f.nextID++
	f.sends++
	f.messages = append(f.messages, text)
	return messaging.StatusHandle{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeTransport) EditStatus(ctx context.Context, h messaging.StatusHandle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.editErr != nil {
		return f.editErr
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeTransport) shown() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func (f *fakeTransport) last() string {
	shown := f.shown()
	if len(shown) == 0 {
		return ""
	}
	return shown[len(shown)-1]
}

func (f *fakeTransport) failures() int {
	n := 0
	for _, m := range f.shown() {
		if strings.HasPrefix(m, "❌") {
			n++
		}
	}
	return n
}

// fakePublisher implements Publisher for testing
type fakePublisher struct {
	err      error
	panicMsg string
	block    chan struct{}
	started  chan struct{}
	once     sync.Once
	name     string
	mimeType string
	body     []byte
}

func (p *fakePublisher) Publish(ctx context.Context, content distribution.Content, size int64, name, mimeType string) (*distribution.RemoteObject, error) {
	if p.started != nil {
		p.once.Do(func() { close(p.started) })
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return nil, p.err
	}
	body, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	p.name, p.mimeType, p.body = name, mimeType, body
	return &distribution.RemoteObject{
		ID:          "object-1",
		DisplayName: name,
		ViewURL:     "https://drive.google.com/file/d/object-1/view",
		SizeBytes:   int64(len(body)),
	}, nil
}

func (p *fakePublisher) Destination() string {
	return "Google Drive"
}

// steppingClock advances by step on every call
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func newTestPipeline(t *testing.T, tr *fakeTransport, pub *fakePublisher, cfg Config) (*Pipeline, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	p := NewPipeline(tr, staging.New(fs, nil), pub, cfg,
		WithClock(steppingClock(time.Second)),
		WithWorkerPool(NewWorkerPool(2)),
	)
	return p, fs
}

func requireStagingEmpty(t *testing.T, fs billy.Filesystem) {
	t.Helper()
	entries, err := fs.ReadDir(".")
	require.NoError(t, err)
	require.Empty(t, entries, "staging area should be empty")
}

func documentRequest(name, mimeType string, size uint64) transfer.Request {
	return transfer.Request{
		ChatID:    100,
		MessageID: 7,
		File: transfer.FileDescriptor{
			ID:   "file-id",
			Size: size,
			Name: name,
			MIME: mimeType,
			Kind: transfer.MediaDocument,
		},
	}
}

func TestPipeline_Success(t *testing.T) {
	content := bytes.Repeat([]byte{0x42}, 10*1024*1024)
	tr := &fakeTransport{content: content}
	pub := &fakePublisher{}
	p, fs := newTestPipeline(t, tr, pub, Config{})

	res, err := p.Run(context.Background(), documentRequest("report.pdf", "", uint64(len(content))))

	require.NoError(t, err)
	require.Equal(t, transfer.StateSettled, res.Transfer.State)
	require.Equal(t, transfer.OutcomeSuccess, res.Transfer.Outcome)
	require.Nil(t, res.Transfer.Failure)
	require.Equal(t, uint64(len(content)), res.Transfer.BytesTransferred)
	require.NotNil(t, res.Object)

	require.Equal(t, "report.pdf", pub.name)
	require.Equal(t, "application/pdf", pub.mimeType)
	require.Equal(t, content, pub.body)

	final := tr.last()
	require.Contains(t, final, "Upload Successful")
	require.Contains(t, final, "10.00 MB")
	require.Contains(t, final, `<a href="https://drive.google.com/file/d/object-1/view">View in Google Drive</a>`)
	require.Equal(t, 1, tr.sends, "progress should edit a single status message")
	require.Zero(t, tr.failures())

	requireStagingEmpty(t, fs)
}

func TestPipeline_ProgressIsThrottledWithFinalFrame(t *testing.T) {
	content := bytes.Repeat([]byte{1}, 20*1024)
	tr := &fakeTransport{content: content, chunkSize: 1024}
	p, _ := newTestPipeline(t, tr, &fakePublisher{}, Config{ProgressInterval: 5 * time.Second})

	_, err := p.Run(context.Background(), documentRequest("a.bin", "application/octet-stream", uint64(len(content))))
	require.NoError(t, err)

	var frames []string
	for _, m := range tr.shown() {
		if strings.Contains(m, "Downloading") {
			frames = append(frames, m)
		}
	}
	// initial frame, a throttled subset of the 20 chunks, and the final frame
	require.Greater(t, len(frames), 2)
	require.Less(t, len(frames), 20)
	require.Contains(t, frames[0], "0.0%")
	require.Contains(t, frames[len(frames)-1], "[■■■■■■■■■■] 100.0%")
	require.Contains(t, frames[len(frames)-1], "20.00 KB / 20.00 KB")
}

func TestPipeline_FinalFrameUsesStagedSize(t *testing.T) {
	content := bytes.Repeat([]byte{1}, 10*1024)
	tr := &fakeTransport{content: content, chunkSize: 1024}
	p, _ := newTestPipeline(t, tr, &fakePublisher{}, Config{ProgressInterval: time.Hour})

	// the request declares twice the bytes the transport delivers
	res, err := p.Run(context.Background(), documentRequest("a.bin", "application/octet-stream", 2*uint64(len(content))))
	require.NoError(t, err)
	require.Equal(t, uint64(len(content)), res.Transfer.TotalBytes)
	require.Equal(t, uint64(len(content)), res.Transfer.BytesTransferred)

	var final string
	for _, m := range tr.shown() {
		if strings.Contains(m, "Downloading") {
			final = m
		}
	}
	require.Contains(t, final, "[■■■■■■■■■■] 100.0%")
	require.Contains(t, final, "10.00 KB / 10.00 KB")
	require.NotContains(t, final, "20.00 KB")
}

func TestPipeline_PublishAuthFailure(t *testing.T) {
	content := []byte("hello")
	tr := &fakeTransport{content: content}
	pub := &fakePublisher{err: distribution.NewPublishError(distribution.PublishAuth, errors.New("googleapi: Error 401: invalid credentials"))}
	p, fs := newTestPipeline(t, tr, pub, Config{})

	res, err := p.Run(context.Background(), documentRequest("a.txt", "text/plain", uint64(len(content))))

	require.ErrorIs(t, err, transfer.ErrPublish)
	var pe *distribution.PublishError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, distribution.PublishAuth, pe.Kind)

	require.Equal(t, transfer.StateSettled, res.Transfer.State)
	require.Equal(t, transfer.OutcomeFailed, res.Transfer.Outcome)
	require.Equal(t, transfer.KindPublish, res.Transfer.Failure.Kind)
	require.Nil(t, res.Object)

	require.Equal(t, 1, tr.failures())
	require.Contains(t, tr.last(), "Upload failed!")
	require.Contains(t, tr.last(), "not allowed to write")
	requireStagingEmpty(t, fs)
}

func TestPipeline_SizeExceeded(t *testing.T) {
	tr := &fakeTransport{}
	p, fs := newTestPipeline(t, tr, &fakePublisher{}, Config{MaxFileSize: 2147483648})

	res, err := p.Run(context.Background(), documentRequest("huge.iso", "", 3000000000))

	require.ErrorIs(t, err, transfer.ErrSizeExceeded)
	require.Equal(t, transfer.OutcomeFailed, res.Transfer.Outcome)
	require.Zero(t, res.Transfer.BytesTransferred)
	require.Empty(t, res.Transfer.StagePath)
	require.Zero(t, tr.getCalls)

	shown := tr.shown()
	require.Len(t, shown, 1)
	require.Contains(t, shown[0], "File too large!")
	require.Contains(t, shown[0], "Maximum size: 2.00 GB")
	requireStagingEmpty(t, fs)
}

func TestPipeline_DownloadFailure(t *testing.T) {
	tr := &fakeTransport{
		content:     bytes.Repeat([]byte{1}, 4096),
		chunkSize:   1024,
		downloadErr: errors.New("connection reset by peer"),
	}
	pub := &fakePublisher{}
	p, fs := newTestPipeline(t, tr, pub, Config{})

	res, err := p.Run(context.Background(), documentRequest("a.bin", "", 4096))

	require.ErrorIs(t, err, transfer.ErrDownload)
	require.Equal(t, transfer.StateSettled, res.Transfer.State)
	require.Nil(t, pub.body)
	require.Equal(t, 1, tr.failures())
	require.Contains(t, tr.last(), "Download failed!")
	requireStagingEmpty(t, fs)
}

func TestPipeline_GetFileFailure(t *testing.T) {
	tr := &fakeTransport{getErr: errors.New("Bad Request: file is too big")}
	p, fs := newTestPipeline(t, tr, &fakePublisher{}, Config{})

	_, err := p.Run(context.Background(), documentRequest("a.bin", "", 10))

	require.ErrorIs(t, err, transfer.ErrDownload)
	require.Equal(t, 1, tr.failures())
	requireStagingEmpty(t, fs)
}

func TestPipeline_CancelledDuringDownload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &fakeTransport{
		content:   bytes.Repeat([]byte{1}, 4096),
		chunkSize: 1024,
		beforeChunk: func(ctx context.Context, n int) error {
			if n == 2 {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	}
	p, fs := newTestPipeline(t, tr, &fakePublisher{}, Config{})

	res, err := p.Run(ctx, documentRequest("a.bin", "", 4096))

	require.ErrorIs(t, err, transfer.ErrUnexpected)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, transfer.OutcomeFailed, res.Transfer.Outcome)
	// the failure status is delivered even though ctx is done
	require.Equal(t, 1, tr.failures())
	requireStagingEmpty(t, fs)
}

func TestPipeline_CancelledDuringPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	pub := &fakePublisher{block: make(chan struct{}), started: started}
	tr := &fakeTransport{content: []byte("data")}
	p, fs := newTestPipeline(t, tr, pub, Config{})

	go func() {
		<-started
		cancel()
	}()
	_, err := p.Run(ctx, documentRequest("a.txt", "", 4))

	require.ErrorIs(t, err, transfer.ErrUnexpected)
	require.Equal(t, 1, tr.failures())
	requireStagingEmpty(t, fs)
}

func TestPipeline_PublisherPanic(t *testing.T) {
	tr := &fakeTransport{content: []byte("data")}
	p, fs := newTestPipeline(t, tr, &fakePublisher{panicMsg: "nil map"}, Config{})

	res, err := p.Run(context.Background(), documentRequest("a.txt", "", 4))

	require.ErrorIs(t, err, transfer.ErrUnexpected)
	require.ErrorIs(t, err, ErrJobPanicked)
	require.Equal(t, transfer.StateSettled, res.Transfer.State)
	require.Equal(t, 1, tr.failures())
	requireStagingEmpty(t, fs)
}

func TestPipeline_DuplicateRunRefused(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	tr := &fakeTransport{content: []byte("data")}
	p, fs := newTestPipeline(t, tr, &fakePublisher{block: block, started: started}, Config{})
	req := documentRequest("a.txt", "", 4)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), req)
		done <- err
	}()
	<-started

	_, err := p.Run(context.Background(), req)
	require.ErrorIs(t, err, transfer.ErrAlreadyRunning)

	close(block)
	require.NoError(t, <-done)
	requireStagingEmpty(t, fs)

	// the key is free again once the first run settled
	_, err = p.Run(context.Background(), req)
	require.NoError(t, err)
}

func TestPipeline_NameAndMIMEResolution(t *testing.T) {
	tests := []struct {
		name     string
		req      transfer.Request
		content  []byte
		wantName string
		wantMIME string
	}{
		{
			name: "photo gets a synthesized name",
			req: transfer.Request{ChatID: 1, MessageID: 42, File: transfer.FileDescriptor{
				ID: "p", Kind: transfer.MediaPhoto,
			}},
			content:  []byte{0xFF, 0xD8, 0xFF, 0xE0},
			wantName: "photo_42.jpg",
			wantMIME: "image/jpeg",
		},
		{
			name: "declared name is sanitized",
			req: transfer.Request{ChatID: 1, MessageID: 5, File: transfer.FileDescriptor{
				ID: "d", Name: "../../etc/passwd", Kind: transfer.MediaDocument,
			}},
			content:  []byte("root:x:0:0"),
			wantName: "....etcpasswd",
			wantMIME: "text/plain; charset=utf-8",
		},
		{
			name: "unknown document type is sniffed",
			req: transfer.Request{ChatID: 1, MessageID: 9, File: transfer.FileDescriptor{
				ID: "d", Kind: transfer.MediaDocument,
			}},
			content:  []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"),
			wantName: "document_9",
			wantMIME: "application/pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.File.Size = uint64(len(tt.content))
			tr := &fakeTransport{content: tt.content}
			pub := &fakePublisher{}
			p, _ := newTestPipeline(t, tr, pub, Config{})

			res, err := p.Run(context.Background(), tt.req)

			require.NoError(t, err)
			require.Equal(t, tt.wantName, res.Transfer.ResolvedName)
			require.Equal(t, tt.wantName, pub.name)
			require.Equal(t, tt.wantMIME, pub.mimeType)
		})
	}
}

func TestPipeline_StatusFailuresAreIgnored(t *testing.T) {
	tr := &fakeTransport{content: []byte("data"), sendErr: errors.New("Forbidden: bot was blocked by the user")}
	pub := &fakePublisher{}
	p, fs := newTestPipeline(t, tr, pub, Config{})

	res, err := p.Run(context.Background(), documentRequest("a.txt", "", 4))

	require.NoError(t, err)
	require.Equal(t, transfer.OutcomeSuccess, res.Transfer.Outcome)
	require.Empty(t, tr.shown())
	requireStagingEmpty(t, fs)
}

func TestPipeline_FinalStatusFallsBackToNewMessage(t *testing.T) {
	tr := &fakeTransport{content: []byte("data"), editErr: errors.New("Bad Request: message to edit not found")}
	p, _ := newTestPipeline(t, tr, &fakePublisher{}, Config{})

	_, err := p.Run(context.Background(), documentRequest("a.txt", "", 4))

	require.NoError(t, err)
	require.Equal(t, 2, tr.sends)
	require.Contains(t, tr.last(), "Upload Successful")
}

func TestPipeline_InvalidRequest(t *testing.T) {
	tr := &fakeTransport{}
	p, fs := newTestPipeline(t, tr, &fakePublisher{}, Config{})

	_, err := p.Run(context.Background(), transfer.Request{ChatID: 1, MessageID: 1, File: transfer.FileDescriptor{Kind: transfer.MediaDocument}})

	require.ErrorIs(t, err, transfer.ErrUnexpected)
	require.Zero(t, tr.getCalls)
	requireStagingEmpty(t, fs)
}
