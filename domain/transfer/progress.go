package transfer

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultInterval is the minimum spacing between two non-final progress edits.
// Telegram throttles bots that edit the same message more often than this.
const DefaultInterval = 5 * time.Second

const (
	barSegments       = 10
	barFilled         = "■"
	barEmpty          = "□"
	minElapsedSeconds = 0.001
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// Throttle decides whether a progress update may be emitted now
type Throttle struct {
	Interval time.Duration
}

// ShouldEmit returns true for the final frame, or when at least Interval has
// passed since lastEmittedAt.
func (t Throttle) ShouldEmit(lastEmittedAt, now time.Time, isFinal bool) bool {
	if isFinal {
		return true
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return now.Sub(lastEmittedAt) >= interval
}

// ShouldEmit applies the default five second throttle
func ShouldEmit(lastEmittedAt, now time.Time, isFinal bool) bool {
	return Throttle{Interval: DefaultInterval}.ShouldEmit(lastEmittedAt, now, isFinal)
}

// FilledSegments returns floor(10*current/total), clamped to the bar width
func FilledSegments(current, total uint64) int {
	if total == 0 {
		return 0
	}
	if current >= total {
		return barSegments
	}
	return int(current * barSegments / total)
}

// ProgressBar renders a fixed-width bar of ten segments
func ProgressBar(current, total uint64) string {
	filled := FilledSegments(current, total)
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, barSegments-filled)
}

// Percent returns current as a percentage of total
func Percent(current, total uint64) float64 {
	if total == 0 {
		return 0
	}
	if current > total {
		current = total
	}
	return float64(current) * 100 / float64(total)
}

// Rate returns bytes per second. A non-positive elapsed time is replaced by a
// small epsilon so the result stays finite.
func Rate(current uint64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 || math.IsNaN(elapsedSeconds) {
		elapsedSeconds = minElapsedSeconds
	}
	return float64(current) / elapsedSeconds
}

// ETA renders the remaining time as MM:SS. A zero rate yields 00:00.
func ETA(current, total uint64, rate float64) string {
	if rate <= 0 || current >= total || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return "00:00"
	}
	secs := int64(math.Floor(float64(total-current) / rate))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// FormatBytes scales n through B, KB, MB, GB and TB (base 1024) and prints it
// with two decimals.
func FormatBytes(n uint64) string {
	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, byteUnits[unit])
}

// RenderProgress builds the body of a progress status message
func RenderProgress(header string, current, total uint64, elapsedSeconds float64) string {
	if current > total {
		current = total
	}
	rate := Rate(current, elapsedSeconds)

	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "[%s] %.1f%%\n", ProgressBar(current, total), Percent(current, total))
	fmt.Fprintf(&b, "%s / %s\n", FormatBytes(current), FormatBytes(total))
	fmt.Fprintf(&b, "Speed: %s/s | ETA: %s", FormatBytes(uint64(rate)), ETA(current, total, rate))
	return b.String()
}
