package highlight

import "github.com/keagan/highlightreel/internal/ai"

// Accumulator merges per-frame signals into highlight intervals in a single
// pass. It is idle until a highlight frame opens an interval, extends the
// open interval while frames stay highlights and closes it on the first
// non-highlight frame. Closed intervals shorter than the minimum duration
// are discarded.
type Accumulator struct {
	minDuration float64
	current     *Interval
	intervals   []Interval
}

// NewAccumulator creates an accumulator emitting intervals of at least minDuration seconds
func NewAccumulator(minDuration float64) *Accumulator {
	return &Accumulator{minDuration: minDuration}
}

// Observe feeds one frame; frames must arrive in timestamp order
func (a *Accumulator) Observe(s FrameSignals) {
	if !s.IsHighlight() {
		if a.current != nil {
			a.finalize()
		}
		return
	}

	if a.current == nil {
		a.current = &Interval{Start: s.Time, End: s.Time, Detections: []ai.Detection{}}
	} else if s.Time > a.current.End {
		a.current.End = s.Time
	}

	a.current.Detections = append(a.current.Detections, s.Detections...)
	if s.Face != nil {
		a.current.FaceReactions = append(a.current.FaceReactions, *s.Face)
	}
	a.current.HasApplause = a.current.HasApplause || s.InApplause
	a.current.HasCrowdNoise = a.current.HasCrowdNoise || s.InCrowd
}

// Open reports whether an interval is being accumulated
func (a *Accumulator) Open() bool {
	return a.current != nil
}

// Finish closes any open interval and returns the emitted intervals in
// chronological order. The accumulator is reset.
func (a *Accumulator) Finish() []Interval {
	if a.current != nil {
		a.finalize()
	}
	out := a.intervals
	if out == nil {
		out = []Interval{}
	}
	a.intervals = nil
	return out
}

func (a *Accumulator) finalize() {
	iv := a.current
	a.current = nil
	if iv.Duration() < a.minDuration {
		return
	}
	iv.AvgFace = summarize(iv.FaceReactions)
	a.intervals = append(a.intervals, *iv)
}
