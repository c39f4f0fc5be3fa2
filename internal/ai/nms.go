package ai

import "sort"

// nonMaxSuppression keeps the highest-confidence box of each overlapping
// group of the same class; boxes overlapping a kept box by more than
// iouThreshold are dropped
func nonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) == 0 {
		return nil
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]Detection, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].Class != sorted[i].Class {
				continue
			}
			if sorted[i].Box.IoU(sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
