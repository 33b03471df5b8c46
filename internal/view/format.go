package view

import (
	"fmt"
	"time"
)

const (
	kib = 1024
	mib = 1024 * 1024
)

// FormatBytes — объем соединения: B, KB, MB.
func FormatBytes(b int64) string {
	switch {
	case b < kib:
		return fmt.Sprintf("%d B", b)
	case b < mib:
		return fmt.Sprintf("%.1f KB", float64(b)/kib)
	default:
		return fmt.Sprintf("%.1f MB", float64(b)/mib)
	}
}

// FormatDataUsage — суммарный трафик устройства для карточки "Data Usage".
// Гигабайт считается как 1000 MiB: 2516582400 байт показываются как "2.4 GB".
func FormatDataUsage(b int64) string {
	if b < mib {
		return FormatBytes(b)
	}
	mb := float64(b) / mib
	if mb < 1000 {
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", mb/1000)
}

// RelativeTime — "5s ago", "3m ago", "2h ago", "1d ago".
func RelativeTime(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds ago", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	return fmt.Sprintf("%dd ago", hours/24)
}
