package highlight

import (
	"math"
	"sort"
)

// Scorer rates a highlight interval; higher is better
type Scorer interface {
	Score(iv Interval) float64
}

// Weights for the heuristic factors, each factor in [0,1]
type Weights struct {
	Duration         float64
	Applause         float64
	Happiness        float64
	DetectionDensity float64
}

// HeuristicScorer uses rule-based heuristics
type HeuristicScorer struct {
	weights Weights
	// intervals at or above this length get the full duration factor
	fullDuration float64
}

// NewHeuristicScorer creates a scorer with the default weights
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		weights: Weights{
			Duration:         0.3,
			Applause:         0.3,
			Happiness:        0.2,
			DetectionDensity: 0.2,
		},
		fullDuration: 10,
	}
}

// Score calculates the weighted heuristic score
func (h *HeuristicScorer) Score(iv Interval) float64 {
	duration := math.Min(1, iv.Duration()/h.fullDuration)

	applause := 0.0
	if iv.HasApplause {
		applause = 1
	}

	happiness := 0.0
	if iv.AvgFace != nil {
		happiness = math.Max(iv.AvgFace.HappyRatio, iv.AvgFace.SurpriseRatio)
	}

	// detections per analyzed second, saturating at 5/s
	density := 0.0
	if d := iv.Duration(); d > 0 {
		density = math.Min(1, float64(len(iv.Detections))/d/5)
	} else if len(iv.Detections) > 0 {
		density = 1
	}

	return h.weights.Duration*duration +
		h.weights.Applause*applause +
		h.weights.Happiness*happiness +
		h.weights.DetectionDensity*density
}

// Rank scores every interval and keeps the best max of them in
// chronological order. max <= 0 keeps all intervals.
func Rank(intervals []Interval, max int, scorer Scorer) []Interval {
	if scorer == nil {
		scorer = NewHeuristicScorer()
	}
	scored := make([]Interval, len(intervals))
	copy(scored, intervals)
	for i := range scored {
		scored[i].Score = scorer.Score(scored[i])
	}

	if max <= 0 || len(scored) <= max {
		return scored
	}

	// Sort by score descending, earlier interval first on ties
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	top := scored[:max]

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Start < top[j].Start
	})
	return top
}
