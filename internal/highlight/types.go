package highlight

import (
	"fmt"

	"github.com/keagan/highlightreel/internal/ai"
)

// FrameSignals are the per-frame inputs to the accumulator
type FrameSignals struct {
	Time       float64 // seconds from the start of the video
	Important  bool
	Detections []ai.Detection
	Face       *ai.FaceReaction // nil when faces were not analyzed
	InApplause bool
	InCrowd    bool
}

// IsHighlight reports whether the frame belongs to a highlight
func (s FrameSignals) IsHighlight() bool {
	if s.Important || s.InApplause {
		return true
	}
	return s.Face != nil && s.Face.Reaction.IsHighlight()
}

// FaceSummary is the mean face reaction over an interval
type FaceSummary struct {
	FaceCount     float64 `json:"face_count"`
	HappyRatio    float64 `json:"happy_ratio"`
	SurpriseRatio float64 `json:"surprise_ratio"`
}

// Interval is a contiguous run of highlight frames
type Interval struct {
	Start         float64           `json:"start"`
	End           float64           `json:"end"`
	Detections    []ai.Detection    `json:"detections"`
	FaceReactions []ai.FaceReaction `json:"face_reactions,omitempty"`
	HasApplause   bool              `json:"has_applause"`
	HasCrowdNoise bool              `json:"has_crowd_noise"`
	AvgFace       *FaceSummary      `json:"avg_face,omitempty"`
	Score         float64           `json:"score,omitempty"`
}

// Duration returns End-Start in seconds
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%.2fs, %.2fs]", iv.Start, iv.End)
}

// summarize averages the interval's face reactions; nil when there are none
func summarize(reactions []ai.FaceReaction) *FaceSummary {
	if len(reactions) == 0 {
		return nil
	}
	var sum FaceSummary
	for _, r := range reactions {
		sum.FaceCount += float64(r.FaceCount)
		sum.HappyRatio += r.HappyRatio
		sum.SurpriseRatio += r.SurpriseRatio
	}
	n := float64(len(reactions))
	return &FaceSummary{
		FaceCount:     sum.FaceCount / n,
		HappyRatio:    sum.HappyRatio / n,
		SurpriseRatio: sum.SurpriseRatio / n,
	}
}
