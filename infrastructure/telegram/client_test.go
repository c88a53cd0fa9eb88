package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:secret-token"

// mockBotAPI is a mock implementation for testing
type mockBotAPI struct {
	file       tgbotapi.File
	getFileErr error
	sendErr    error
	requestErr error
	sent       []tgbotapi.MessageConfig
	edits      []tgbotapi.EditMessageTextConfig
	updates    chan tgbotapi.Update
	stopped    bool
}

func (m *mockBotAPI) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	if m.getFileErr != nil {
		return tgbotapi.File{}, m.getFileErr
	}
	return m.file, nil
}

func (m *mockBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	msg := c.(tgbotapi.MessageConfig)
	m.sent = append(m.sent, msg)
	return tgbotapi.Message{MessageID: 500 + len(m.sent)}, nil
}

func (m *mockBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	m.edits = append(m.edits, c.(tgbotapi.EditMessageTextConfig))
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockBotAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updates
}

func (m *mockBotAPI) StopReceivingUpdates() {
	m.stopped = true
}

func newTestClient(t *testing.T, bot *mockBotAPI, opts ...ClientOption) *Client {
	t.Helper()
	client, err := NewClient(Config{Token: testToken}, append([]ClientOption{WithBotAPI(bot)}, opts...)...)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestClient_GetFileHandle(t *testing.T) {
	tests := []struct {
		name    string
		bot     *mockBotAPI
		want    messaging.FileHandle
		wantErr error
	}{
		{
			name: "returns the download path",
			bot: &mockBotAPI{file: tgbotapi.File{
				FileID: "abc", FileSize: 2048, FilePath: "documents/file_3.pdf",
			}},
			want: messaging.FileHandle{ID: "abc", Size: 2048, Location: "documents/file_3.pdf"},
		},
		{
			name:    "missing path",
			bot:     &mockBotAPI{file: tgbotapi.File{FileID: "abc"}},
			wantErr: ErrNoFilePath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestClient(t, tt.bot).GetFileHandle(context.Background(), "abc")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestClient_GetFileHandle_RedactsToken(t *testing.T) {
	bot := &mockBotAPI{getFileErr: fmt.Errorf("Post https://api.telegram.org/bot%s/getFile: timeout", testToken)}

	_, err := newTestClient(t, bot).GetFileHandle(context.Background(), "abc")

	require.Error(t, err)
	require.NotContains(t, err.Error(), testToken)
	require.Contains(t, err.Error(), "<token>")
}

func TestClient_SendStatus(t *testing.T) {
	bot := &mockBotAPI{}
	client := newTestClient(t, bot)

	h, err := client.SendStatus(context.Background(), 42, "<b>hi</b>")

	require.NoError(t, err)
	require.Equal(t, messaging.StatusHandle{ChatID: 42, MessageID: 501}, h)
	require.Len(t, bot.sent, 1)
	require.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	require.True(t, bot.sent[0].DisableWebPagePreview)
	require.Equal(t, int64(42), bot.sent[0].ChatID)
}

func TestClient_EditStatus(t *testing.T) {
	tests := []struct {
		name       string
		requestErr error
		wantErr    bool
	}{
		{name: "edits the message"},
		{
			name:       "unchanged text is not an error",
			requestErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified: specified new message content is the same"},
		},
		{
			name:       "other failures are returned",
			requestErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &mockBotAPI{requestErr: tt.requestErr}
			err := newTestClient(t, bot).EditStatus(context.Background(), messaging.StatusHandle{ChatID: 1, MessageID: 9}, "text")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClient_StatusHonoursCancelledContext(t *testing.T) {
	bot := &mockBotAPI{}
	client := newTestClient(t, bot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SendStatus(ctx, 1, "x")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, bot.sent)
}

func TestClient_StreamDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("relay"), 200*1024)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/bot"+testToken+"/documents/file_1.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client, err := NewClient(
		Config{Token: testToken, FileEndpoint: srv.URL + "/file/bot%s/%s"},
		WithBotAPI(&mockBotAPI{}),
		WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	var dst bytes.Buffer
	var calls int
	var last, lastTotal uint64
	err = client.StreamDownload(context.Background(),
		messaging.FileHandle{Size: uint64(len(payload)), Location: "documents/file_1.bin"},
		&dst,
		func(current, total uint64) {
			require.GreaterOrEqual(t, current, last)
			calls++
			last, lastTotal = current, total
		})

	require.NoError(t, err)
	require.Equal(t, payload, dst.Bytes())
	require.Greater(t, calls, 1)
	require.Equal(t, uint64(len(payload)), last)
	require.Equal(t, uint64(len(payload)), lastTotal)
}

func TestClient_StreamDownload_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(
		Config{Token: testToken, FileEndpoint: srv.URL + "/file/bot%s/%s"},
		WithBotAPI(&mockBotAPI{}),
		WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	err = client.StreamDownload(context.Background(), messaging.FileHandle{Location: "x"}, &bytes.Buffer{}, nil)

	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.NotContains(t, err.Error(), testToken)
}

func TestClient_StreamDownload_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{1}, 1024*1024))
	}))
	defer srv.Close()

	client, err := NewClient(
		Config{Token: testToken, FileEndpoint: srv.URL + "/%s/%s"},
		WithBotAPI(&mockBotAPI{}),
		WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = client.StreamDownload(ctx, messaging.FileHandle{Location: "x"}, &bytes.Buffer{}, func(current, total uint64) {
		cancel()
	})

	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestClient_StreamDownload_LocalServerPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_7.ogg")
	require.NoError(t, os.WriteFile(path, []byte("voice"), 0o600))

	client := newTestClient(t, &mockBotAPI{})

	var dst bytes.Buffer
	err := client.StreamDownload(context.Background(), messaging.FileHandle{Location: path}, &dst, nil)

	require.NoError(t, err)
	require.Equal(t, "voice", dst.String())
}

func commandMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 3,
		Chat:      &tgbotapi.Chat{ID: 77},
		From:      &tgbotapi.User{FirstName: "Ada"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}},
	}
}

func TestFromMessage(t *testing.T) {
	tests := []struct {
		name        string
		msg         *tgbotapi.Message
		wantOK      bool
		wantCommand string
		wantFile    *transfer.FileDescriptor
	}{
		{
			name:        "command",
			msg:         commandMessage("/stats"),
			wantOK:      true,
			wantCommand: "stats",
		},
		{
			name:        "command addressed to the bot",
			msg:         commandMessage("/help@relay_bot"),
			wantOK:      true,
			wantCommand: "help",
		},
		{
			name: "document",
			msg: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 77}, Document: &tgbotapi.Document{
				FileID: "doc", FileUniqueID: "u1", FileName: "report.pdf", MimeType: "application/pdf", FileSize: 1024,
			}},
			wantOK: true,
			wantFile: &transfer.FileDescriptor{
				ID: "doc", UniqueID: "u1", Size: 1024, Name: "report.pdf", MIME: "application/pdf", Kind: transfer.MediaDocument,
			},
		},
		{
			name: "photo picks the largest size",
			msg: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 77}, Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
				{FileID: "large", Width: 1280, Height: 960, FileSize: 90000},
				{FileID: "medium", Width: 320, Height: 240, FileSize: 9000},
			}},
			wantOK: true,
			wantFile: &transfer.FileDescriptor{
				ID: "large", Size: 90000, MIME: "image/jpeg", Kind: transfer.MediaPhoto,
			},
		},
		{
			name: "voice",
			msg: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 77}, Voice: &tgbotapi.Voice{
				FileID: "v", MimeType: "audio/ogg", FileSize: 300,
			}},
			wantOK: true,
			wantFile: &transfer.FileDescriptor{
				ID: "v", Size: 300, MIME: "audio/ogg", Kind: transfer.MediaVoice,
			},
		},
		{
			name:   "plain text is ignored",
			msg:    &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 77}, Text: "hello"},
			wantOK: false,
		},
		{
			name:   "nil message",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := FromMessage(tt.msg)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			require.Equal(t, int64(77), in.ChatID)
			require.Equal(t, 3, in.MessageID)
			require.Equal(t, tt.wantCommand, in.Command)
			require.Equal(t, tt.wantFile, in.File)
		})
	}
}

func TestClient_Updates(t *testing.T) {
	bot := &mockBotAPI{updates: make(chan tgbotapi.Update, 3)}
	client := newTestClient(t, bot)

	bot.updates <- tgbotapi.Update{Message: commandMessage("/start")}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "ignored"}}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 4, Chat: &tgbotapi.Chat{ID: 1}, Audio: &tgbotapi.Audio{FileID: "a", FileSize: 10}}}
	close(bot.updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := client.Updates(ctx)
	require.NoError(t, err)

	var got []messaging.Inbound
	for in := range ch {
		got = append(got, in)
	}

	require.Len(t, got, 2)
	require.Equal(t, "start", got[0].Command)
	require.Equal(t, transfer.MediaAudio, got[1].File.Kind)
	require.True(t, bot.stopped)
}
