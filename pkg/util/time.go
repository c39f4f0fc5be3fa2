package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatDuration renders d as an ffmpeg HH:MM:SS.mmm timestamp
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	return fmt.Sprintf("%02d:%02d:%06.3f", int(hours), int(minutes), d.Seconds())
}

// ParseTimestamp parses SS.mmm, MM:SS.mmm or HH:MM:SS.mmm
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}
	return Seconds(total), nil
}

// FormatSRTTimestamp formats a duration as an SRT cue timestamp (HH:MM:SS,mmm)
func FormatSRTTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1000
	ms -= secs * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

// Seconds converts fractional seconds to a time.Duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ParseFrameRate parses an ffprobe rational rate such as "30000/1001".
// Malformed input and a zero denominator yield 0.
func ParseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
