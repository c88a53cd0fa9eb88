package messaging

import (
	"context"

	"telegram-drive-relay/domain/transfer"
)

// Inbound is one message received from the transport, reduced to what the
// relay acts on. At most one of Command and File is set.
type Inbound struct {
	ChatID     int64
	MessageID  int
	SenderName string
	Command    string // bot command without the leading slash
	File       *transfer.FileDescriptor
}

// Request builds the transfer request for a message carrying a file
func (m Inbound) Request() (transfer.Request, bool) {
	if m.File == nil {
		return transfer.Request{}, false
	}
	return transfer.Request{
		ChatID:    m.ChatID,
		MessageID: m.MessageID,
		File:      *m.File,
	}, true
}

// Source delivers inbound messages until ctx is done. The channel is closed
// when the source stops.
type Source interface {
	Updates(ctx context.Context) (<-chan Inbound, error)
}
