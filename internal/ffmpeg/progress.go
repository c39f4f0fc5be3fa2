package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keagan/highlightreel/pkg/util"
)

// statsTimeRe matches the wall-clock marker in ffmpeg's classic stats line
var statsTimeRe = regexp.MustCompile(`time=\s*(\d+:\d{2}:\d{2}(?:\.\d+)?)`)

// parseProgressLine folds one output line into p and reports whether a
// progress block is complete and should be delivered.
func parseProgressLine(line string, p *Progress) bool {
	// Classic stats line: "frame=  120 fps= 30 ... time=00:00:04.00 bitrate=..."
	if strings.Contains(line, " time=") || (strings.HasPrefix(line, "size=") && strings.Contains(line, "time=")) {
		if m := statsTimeRe.FindStringSubmatch(line); m != nil {
			if d, err := util.ParseTimestamp(m[1]); err == nil {
				p.Time = m[1]
				p.OutTime = d
				return true
			}
		}
		return false
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		fmt.Sscanf(value, "%d", &p.Frame)
	case "fps":
		fmt.Sscanf(value, "%f", &p.FPS)
	case "bitrate":
		p.Bitrate = value
	case "out_time_us", "out_time_ms":
		// both keys carry microseconds
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.OutTime = time.Duration(us) * time.Microsecond
		}
	case "out_time", "time":
		p.Time = value
		if d, err := util.ParseTimestamp(value); err == nil && d >= 0 {
			p.OutTime = d
		}
	case "speed":
		p.Speed = value
	case "progress":
		// End of progress block
		p.Done = value == "end"
		return true
	}
	return false
}

// isProgressLine reports whether a line belongs to -progress or stats output
func isProgressLine(line string) bool {
	key, _, ok := strings.Cut(line, "=")
	if !ok || key == "" {
		return false
	}
	for _, r := range key {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

// PercentTracker converts progress markers into a monotonically
// non-decreasing 0-100 percentage of a known total duration.
type PercentTracker struct {
	mu    sync.Mutex
	total time.Duration
	sink  func(percent int)
	last  int
}

// NewPercentTracker creates a tracker reporting to sink; sink may be nil
func NewPercentTracker(total time.Duration, sink func(percent int)) *PercentTracker {
	return &PercentTracker{
		total: total,
		sink:  sink,
		last:  -1,
	}
}

// Handle is a ProgressFunc
func (t *PercentTracker) Handle(p *Progress) {
	if p == nil || t.total <= 0 || p.OutTime <= 0 {
		return
	}

	pct := int(float64(p.OutTime) / float64(t.total) * 100)
	if pct > 100 {
		pct = 100
	}
	p.Percentage = float64(pct)
	t.report(pct)
}

// Complete reports 100 percent
func (t *PercentTracker) Complete() {
	t.report(100)
}

// Last returns the last reported percentage, or -1
func (t *PercentTracker) Last() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *PercentTracker) report(pct int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pct <= t.last {
		return
	}
	t.last = pct
	if t.sink != nil {
		t.sink(pct)
	}
}
