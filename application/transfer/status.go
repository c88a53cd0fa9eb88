package transfer

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/transfer"
)

// Status messages are sent with HTML parse mode. Every value that comes from
// the user or a remote service is escaped.

func downloadingHeader(kind transfer.MediaKind, name string, size uint64) string {
	return fmt.Sprintf("📥 <b>Downloading %s...</b>\n📄 Name: <code>%s</code>\n📊 Size: %s",
		kind.Label(), html.EscapeString(name), transfer.FormatBytes(size))
}

func uploadingText(destination, name string, size uint64) string {
	return fmt.Sprintf("☁️ <b>Uploading to %s...</b>\n📄 Name: <code>%s</code>\n📊 Size: %s\n\n⏳ Please wait...",
		html.EscapeString(destination), html.EscapeString(name), transfer.FormatBytes(size))
}

func successText(destination string, obj *distribution.RemoteObject, size uint64) string {
	var b strings.Builder
	b.WriteString("✅ <b>Upload Successful!</b>\n\n")
	fmt.Fprintf(&b, "📄 Name: <code>%s</code>\n", html.EscapeString(obj.DisplayName))
	fmt.Fprintf(&b, "📊 Size: %s", transfer.FormatBytes(size))
	if obj.ViewURL != "" {
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">View in %s</a>",
			html.EscapeString(obj.ViewURL), html.EscapeString(destination))
	}
	return b.String()
}

func sizeExceededText(size, limit uint64) string {
	return fmt.Sprintf("❌ <b>File too large!</b>\n\nMaximum size: %s\nYour file: %s",
		transfer.FormatBytes(limit), transfer.FormatBytes(size))
}

func failureText(err *transfer.Error) string {
	title := "Transfer failed!"
	switch err.Kind {
	case transfer.KindDownload:
		title = "Download failed!"
	case transfer.KindPublish:
		title = "Upload failed!"
	}

	msg := err.UserMessage()
	var pe *distribution.PublishError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case distribution.PublishAuth:
			msg = "The bot is not allowed to write to the destination. Contact the bot admin."
		case distribution.PublishQuota:
			msg = "The destination is out of space or rate limited. Try again later."
		case distribution.PublishTransient:
			msg = "The destination is temporarily unavailable. Please try again."
		}
	}
	return fmt.Sprintf("❌ <b>%s</b>\n\n%s", title, html.EscapeString(msg))
}
