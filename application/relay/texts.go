package relay

import (
	"fmt"
	"html"
	"strings"

	"telegram-drive-relay/domain/distribution"
	"telegram-drive-relay/domain/transfer"
)

const statsFailedText = "❌ Could not fetch statistics"

func startText(sender, destination, folder string, maxSize uint64) string {
	name := sender
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👋 Hi %s! Welcome to the <b>%s Upload Bot</b>\n\n", html.EscapeString(name), html.EscapeString(destination))
	fmt.Fprintf(&b, "📤 Send me any file and I'll upload it to %s!\n\n", html.EscapeString(destination))
	b.WriteString("📊 <b>Limits:</b>\n")
	fmt.Fprintf(&b, "• Max file size: %s\n", transfer.FormatBytes(maxSize))
	b.WriteString("• Supported: All file types\n\n")
	if folder != "" {
		fmt.Fprintf(&b, "📁 Files are saved to your <b>%s</b> folder\n\n", html.EscapeString(folder))
	}
	b.WriteString("<b>Commands:</b>\n")
	b.WriteString("/start - Show this message\n")
	b.WriteString("/help - Get help\n")
	b.WriteString("/stats - View upload statistics")
	return b.String()
}

func helpText(destination string) string {
	return "📚 <b>How to use:</b>\n\n" +
		"1️⃣ Send any file to this bot\n" +
		"2️⃣ Wait for download &amp; upload confirmation\n" +
		fmt.Sprintf("3️⃣ Click the link to view in %s\n\n", html.EscapeString(destination)) +
		"💡 <b>Tips:</b>\n" +
		"• Larger files take longer to upload\n" +
		"• You'll get a direct link to each file\n" +
		"• Photos are saved in their largest size\n\n" +
		"❓ <b>Need help?</b> Contact the bot admin!"
}

func statsText(stats *distribution.Stats, folder string) string {
	const (
		mb = 1024 * 1024
		gb = 1024 * mb
	)

	var b strings.Builder
	b.WriteString("📊 <b>Upload Statistics</b>\n\n")
	fmt.Fprintf(&b, "📁 Total files: %d\n", stats.TotalFiles)
	fmt.Fprintf(&b, "💾 Total size: %.2f GB (%.1f MB)", float64(stats.TotalBytes)/gb, float64(stats.TotalBytes)/mb)
	if folder != "" {
		fmt.Fprintf(&b, "\n📂 Location: %s folder", html.EscapeString(folder))
	}
	if q := stats.Quota; q != nil {
		if q.TotalBytes > 0 {
			fmt.Fprintf(&b, "\n🗄 Storage: %s used of %s (%s free)",
				transfer.FormatBytes(uint64(q.UsedBytes)),
				transfer.FormatBytes(uint64(q.TotalBytes)),
				transfer.FormatBytes(uint64(max(q.AvailableBytes, 0))))
		} else {
			fmt.Fprintf(&b, "\n🗄 Storage: %s used (unlimited)", transfer.FormatBytes(uint64(q.UsedBytes)))
		}
	}
	return b.String()
}
