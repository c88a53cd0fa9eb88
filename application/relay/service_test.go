package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apptransfer "telegram-drive-relay/application/transfer"
	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chanSource struct {
	ch  chan messaging.Inbound
	err error
}

func (s *chanSource) Updates(ctx context.Context) (<-chan messaging.Inbound, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	reqs    []transfer.Request
	release chan struct{}
	err     error
	done    int
}

func (r *fakeRunner) Run(ctx context.Context, req transfer.Request) (apptransfer.Result, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}

	r.mu.Lock()
	r.done++
	r.mu.Unlock()
	if r.err != nil {
		return apptransfer.Result{}, r.err
	}
	return apptransfer.Result{Object: &distribution.RemoteObject{ID: "obj-1"}}, nil
}

func (r *fakeRunner) completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

type fakeStats struct {
	stats *distribution.Stats
	err   error
}

func (s *fakeStats) Collect(ctx context.Context) (*distribution.Stats, error) {
	return s.stats, s.err
}

func (s *fakeStats) Destination() string {
	return "Google Drive"
}

type fakeReplier struct {
	mu    sync.Mutex
	chats []int64
	texts []string
	err   error
}

func (r *fakeReplier) SendStatus(ctx context.Context, chatID int64, text string) (messaging.StatusHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
	r.texts = append(r.texts, text)
	return messaging.StatusHandle{ChatID: chatID, MessageID: len(r.texts)}, r.err
}

func newTestService(source messaging.Source, runner Runner, stats StatsCollector, replier Replier) *Service {
	return NewService(source, runner, stats, replier, Config{FolderLabel: "TelegramUploads"}, zap.NewNop())
}

func fileMessage(id int) messaging.Inbound {
	return messaging.Inbound{
		ChatID:    7,
		MessageID: id,
		File:      &transfer.FileDescriptor{ID: "file", Size: 10, Kind: transfer.MediaDocument},
	}
}

func TestHandle_StartCommand(t *testing.T) {
	replier := &fakeReplier{}
	svc := newTestService(&chanSource{}, &fakeRunner{}, &fakeStats{}, replier)

	svc.Handle(context.Background(), messaging.Inbound{ChatID: 7, Command: "start", SenderName: "Ana <3"})

	require.Len(t, replier.texts, 1)
	assert.Equal(t, int64(7), replier.chats[0])
	assert.Contains(t, replier.texts[0], "Hi Ana &lt;3!")
	assert.Contains(t, replier.texts[0], "Max file size: 2.00 GB")
	assert.Contains(t, replier.texts[0], "<b>TelegramUploads</b>")
	assert.Contains(t, replier.texts[0], "/stats - View upload statistics")
}

func TestHandle_HelpCommand(t *testing.T) {
	replier := &fakeReplier{}
	svc := newTestService(&chanSource{}, &fakeRunner{}, &fakeStats{}, replier)

	svc.Handle(context.Background(), messaging.Inbound{ChatID: 7, Command: "help"})

	require.Len(t, replier.texts, 1)
	assert.Contains(t, replier.texts[0], "How to use")
	assert.Contains(t, replier.texts[0], "view in Google Drive")
}

func TestHandle_StatsCommand(t *testing.T) {
	tests := []struct {
		name  string
		stats *distribution.Stats
		err   error
		want  []string
	}{
		{
			name:  "with quota",
			stats: &distribution.Stats{TotalFiles: 3, TotalBytes: 1610612736, Quota: &distribution.StorageInfo{TotalBytes: 16106127360, UsedBytes: 5368709120, AvailableBytes: 10737418240}},
			want:  []string{"Total files: 3", "1.50 GB (1536.0 MB)", "TelegramUploads folder", "5.00 GB used of 15.00 GB (10.00 GB free)"},
		},
		{
			name:  "unlimited quota",
			stats: &distribution.Stats{TotalFiles: 1, TotalBytes: 1048576, Quota: &distribution.StorageInfo{UsedBytes: 1048576}},
			want:  []string{"Total files: 1", "0.00 GB (1.0 MB)", "1.00 MB used (unlimited)"},
		},
		{
			name:  "no quota",
			stats: &distribution.Stats{},
			want:  []string{"Total files: 0", "0.00 GB (0.0 MB)"},
		},
		{
			name: "collect error",
			err:  errors.New("drive down"),
			want: []string{"Could not fetch statistics"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replier := &fakeReplier{}
			svc := newTestService(&chanSource{}, &fakeRunner{}, &fakeStats{stats: tt.stats, err: tt.err}, replier)

			svc.Handle(context.Background(), messaging.Inbound{ChatID: 7, Command: "stats"})

			require.Len(t, replier.texts, 1)
			for _, w := range tt.want {
				assert.Contains(t, replier.texts[0], w)
			}
			if tt.stats != nil && tt.stats.Quota == nil {
				assert.NotContains(t, replier.texts[0], "Storage:")
			}
		})
	}
}

func TestHandle_UnknownCommandIgnored(t *testing.T) {
	replier := &fakeReplier{}
	runner := &fakeRunner{}
	svc := newTestService(&chanSource{}, runner, &fakeStats{}, replier)

	svc.Handle(context.Background(), messaging.Inbound{ChatID: 7, Command: "settings"})
	svc.Wait()

	assert.Empty(t, replier.texts)
	assert.Empty(t, runner.reqs)
}

func TestHandle_ReplyFailureIsLoggedOnly(t *testing.T) {
	replier := &fakeReplier{err: errors.New("blocked by user")}
	svc := newTestService(&chanSource{}, &fakeRunner{}, &fakeStats{}, replier)

	assert.NotPanics(t, func() {
		svc.Handle(context.Background(), messaging.Inbound{ChatID: 7, Command: "help"})
	})
}

func TestHandle_FileStartsTransfer(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(&chanSource{}, runner, &fakeStats{}, &fakeReplier{})

	svc.Handle(context.Background(), fileMessage(42))
	svc.Wait()

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, int64(7), runner.reqs[0].ChatID)
	assert.Equal(t, 42, runner.reqs[0].MessageID)
	assert.Equal(t, transfer.MediaDocument, runner.reqs[0].File.Kind)
}

func TestHandle_TransferErrorsAreAbsorbed(t *testing.T) {
	for _, err := range []error{
		transfer.NewError(transfer.KindAlreadyRunning, nil),
		transfer.NewError(transfer.KindPublish, errors.New("quota")),
	} {
		runner := &fakeRunner{err: err}
		svc := newTestService(&chanSource{}, runner, &fakeStats{}, &fakeReplier{})

		svc.Handle(context.Background(), fileMessage(1))
		svc.Wait()

		assert.Equal(t, 1, runner.completed())
	}
}

func TestHandle_EmptyMessageIgnored(t *testing.T) {
	runner := &fakeRunner{}
	svc := newTestService(&chanSource{}, runner, &fakeStats{}, &fakeReplier{})

	svc.Handle(context.Background(), messaging.Inbound{ChatID: 7, MessageID: 3})
	svc.Wait()

	assert.Empty(t, runner.reqs)
}

func TestServe_SourceError(t *testing.T) {
	svc := newTestService(&chanSource{err: errors.New("unauthorized")}, &fakeRunner{}, &fakeStats{}, &fakeReplier{})

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestServe_TransfersRunConcurrently(t *testing.T) {
	ch := make(chan messaging.Inbound)
	runner := &fakeRunner{release: make(chan struct{})}
	svc := newTestService(&chanSource{ch: ch}, runner, &fakeStats{}, &fakeReplier{})

	done := make(chan error, 1)
	go func() { done <- svc.Serve(context.Background()) }()

	ch <- fileMessage(1)
	ch <- fileMessage(2)

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.reqs) == 2
	}, time.Second, 5*time.Millisecond, "both transfers should be running at once")

	close(runner.release)
	close(ch)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, 2, runner.completed())
}

func TestServe_WaitsForRunningTransfersOnShutdown(t *testing.T) {
	ch := make(chan messaging.Inbound)
	runner := &fakeRunner{release: make(chan struct{})}
	svc := newTestService(&chanSource{ch: ch}, runner, &fakeStats{}, &fakeReplier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	ch <- fileMessage(1)
	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.reqs) == 1
	}, time.Second, 5*time.Millisecond)

	// The source closes its channel once ctx is done
	cancel()
	close(ch)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, 1, runner.completed(), "Serve must not return before the running transfer")
}
