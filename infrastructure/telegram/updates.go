package telegram

import (
	"context"

	"telegram-drive-relay/domain/messaging"
	"telegram-drive-relay/domain/transfer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Updates implements messaging.Source with long polling. Polling stops and
// the channel closes when ctx is done.
func (c *Client) Updates(ctx context.Context) (<-chan messaging.Inbound, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.cfg.PollTimeout
	u.AllowedUpdates = []string{"message"}
	updates := c.bot.GetUpdatesChan(u)

	out := make(chan messaging.Inbound)
	go func() {
		defer close(out)
		defer c.bot.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				in, ok := FromMessage(update.Message)
				if !ok {
					continue
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	c.log.Info("polling for updates", zap.Int("timeout_seconds", c.cfg.PollTimeout))
	return out, nil
}

// FromMessage maps a Bot API message to an inbound message. Messages that are
// neither a command nor carry a supported file are dropped.
func FromMessage(m *tgbotapi.Message) (messaging.Inbound, bool) {
	if m == nil || m.Chat == nil {
		return messaging.Inbound{}, false
	}

	in := messaging.Inbound{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
	}
	if m.From != nil {
		in.SenderName = m.From.FirstName
	}

	if m.IsCommand() {
		in.Command = m.Command()
		return in, true
	}

	file, ok := describeFile(m)
	if !ok {
		return messaging.Inbound{}, false
	}
	in.File = &file
	return in, true
}

// describeFile picks the media kind once, in order of precedence
func describeFile(m *tgbotapi.Message) (transfer.FileDescriptor, bool) {
	switch {
	case m.Document != nil:
		d := m.Document
		return transfer.FileDescriptor{
			ID: d.FileID, UniqueID: d.FileUniqueID, Size: uint64(d.FileSize),
			Name: d.FileName, MIME: d.MimeType, Kind: transfer.MediaDocument,
		}, true
	case len(m.Photo) > 0:
		p := largestPhoto(m.Photo)
		return transfer.FileDescriptor{
			ID: p.FileID, UniqueID: p.FileUniqueID, Size: uint64(p.FileSize),
			MIME: "image/jpeg", Kind: transfer.MediaPhoto,
		}, true
	case m.Video != nil:
		v := m.Video
		return transfer.FileDescriptor{
			ID: v.FileID, UniqueID: v.FileUniqueID, Size: uint64(v.FileSize),
			Name: v.FileName, MIME: v.MimeType, Kind: transfer.MediaVideo,
		}, true
	case m.Audio != nil:
		a := m.Audio
		return transfer.FileDescriptor{
			ID: a.FileID, UniqueID: a.FileUniqueID, Size: uint64(a.FileSize),
			Name: a.FileName, MIME: a.MimeType, Kind: transfer.MediaAudio,
		}, true
	case m.Voice != nil:
		v := m.Voice
		return transfer.FileDescriptor{
			ID: v.FileID, UniqueID: v.FileUniqueID, Size: uint64(v.FileSize),
			MIME: v.MimeType, Kind: transfer.MediaVoice,
		}, true
	}
	return transfer.FileDescriptor{}, false
}

// largestPhoto returns the size with the most pixels; Telegram lists them
// smallest first but does not promise it
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height ||
			(s.Width*s.Height == best.Width*best.Height && s.FileSize > best.FileSize) {
			best = s
		}
	}
	return best
}
