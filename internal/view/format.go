package view

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatMemory renders bytes with thousands separators, "" when absent.
func FormatMemory(b *uint64) string {
	if b == nil {
		return ""
	}
	return humanize.Comma(int64(*b))
}

// FormatUptime renders seconds as a UTC clock time HH:MM:SS, "" when absent.
// Uptimes of a day or more wrap.
func FormatUptime(s *uint64) string {
	if s == nil {
		return ""
	}
	return time.Unix(int64(*s), 0).UTC().Format(time.TimeOnly)
}
