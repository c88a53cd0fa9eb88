package messaging

import (
	"context"
	"io"
)

// FileHandle is the transport's view of a downloadable file
type FileHandle struct {
	ID       string
	Size     uint64
	Name     string
	MIME     string
	Location string // Transport specific path used to fetch the bytes
}

// StatusHandle identifies a status message that can be edited later
type StatusHandle struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the handle points at no message
func (h StatusHandle) IsZero() bool {
	return h.MessageID == 0
}

// ProgressFunc receives the cumulative byte count of a download
type ProgressFunc func(current, total uint64)

// Transport defines the operations the relay needs from the inbound messaging
// service. This is a port implemented by infrastructure adapters.
type Transport interface {
	// GetFileHandle resolves a file id into something StreamDownload can fetch
	GetFileHandle(ctx context.Context, fileID string) (FileHandle, error)

	// StreamDownload writes the file bytes to dst, calling onProgress as data arrives
	StreamDownload(ctx context.Context, handle FileHandle, dst io.Writer, onProgress ProgressFunc) error

	// SendStatus posts a new status message in the chat
	SendStatus(ctx context.Context, chatID int64, text string) (StatusHandle, error)

	// EditStatus replaces the text of a status message. Editing to identical
	// text is not an error.
	EditStatus(ctx context.Context, handle StatusHandle, text string) error
}
