package audio

import (
	"fmt"
	"sort"
)

// Interval is a span of the source in seconds, Start <= End
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End-Start
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// Contains reports whether t lies within the interval, bounds inclusive
func (iv Interval) Contains(t float64) bool {
	return t >= iv.Start && t <= iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.2fs-%.2fs]", iv.Start, iv.End)
}

// CrowdWindow is a fixed window whose band energies indicate crowd noise
type CrowdWindow struct {
	Interval
	LowDB  float64 `json:"low_db"`
	MidDB  float64 `json:"mid_db"`
	HighDB float64 `json:"high_db"`
}

// Timeline answers membership queries over a set of intervals
type Timeline struct {
	intervals []Interval
}

// NewTimeline builds a timeline; intervals need not be sorted
func NewTimeline(intervals []Interval) *Timeline {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &Timeline{intervals: sorted}
}

// Contains reports whether t falls inside any interval
func (tl *Timeline) Contains(t float64) bool {
	if tl == nil {
		return false
	}
	// first interval starting after t; only earlier ones can contain it
	i := sort.Search(len(tl.intervals), func(i int) bool { return tl.intervals[i].Start > t })
	for j := i - 1; j >= 0; j-- {
		if tl.intervals[j].Contains(t) {
			return true
		}
	}
	return false
}

// Len returns the number of intervals
func (tl *Timeline) Len() int {
	if tl == nil {
		return 0
	}
	return len(tl.intervals)
}

// MergeOnsets groups onset times into intervals: an onset closer than gap
// to the current interval's end extends it, otherwise it opens a new one.
// Intervals shorter than minDuration are dropped.
func MergeOnsets(onsets []float64, gap, minDuration float64) []Interval {
	if len(onsets) == 0 {
		return nil
	}

	var (
		merged  []Interval
		current = Interval{Start: onsets[0], End: onsets[0]}
	)
	for _, onset := range onsets[1:] {
		if onset-current.End < gap {
			current.End = onset
			continue
		}
		merged = append(merged, current)
		current = Interval{Start: onset, End: onset}
	}
	merged = append(merged, current)

	kept := merged[:0]
	for _, iv := range merged {
		if iv.Duration() >= minDuration {
			kept = append(kept, iv)
		}
	}
	return kept
}

// DetectApplause finds applause intervals from onset density
func DetectApplause(samples []float32, sampleRate int, threshold, minDuration float64) []Interval {
	return MergeOnsets(DetectOnsets(samples, sampleRate, threshold), DefaultMergeGap, minDuration)
}
