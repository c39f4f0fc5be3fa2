package ai

import (
	"context"
	"image"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultImportantClasses are the detection classes that mark a frame important
var DefaultImportantClasses = []string{"person", "dancing", "cheering", "celebrating"}

// FrameClassifier decides whether a frame shows an important event
type FrameClassifier struct {
	logger    zerolog.Logger
	detector  Detector
	important map[string]struct{}
}

// NewFrameClassifier creates a classifier over detector; an empty class list
// uses DefaultImportantClasses
func NewFrameClassifier(logger zerolog.Logger, detector Detector, importantClasses []string) *FrameClassifier {
	if len(importantClasses) == 0 {
		importantClasses = DefaultImportantClasses
	}
	set := make(map[string]struct{}, len(importantClasses))
	for _, c := range importantClasses {
		set[strings.ToLower(c)] = struct{}{}
	}
	return &FrameClassifier{
		logger:    logger.With().Str("component", "frame-classifier").Logger(),
		detector:  detector,
		important: set,
	}
}

// Classify reports whether frame holds any important-class detection with
// confidence >= threshold and returns those detections
func (c *FrameClassifier) Classify(ctx context.Context, frame image.Image, threshold float64) (bool, []Detection, error) {
	dets, err := c.detector.Detect(ctx, frame, threshold)
	if err != nil {
		return false, nil, err
	}

	var important []Detection
	for _, d := range dets {
		if d.Confidence < threshold {
			continue
		}
		if _, ok := c.important[strings.ToLower(d.Class)]; ok {
			important = append(important, d)
		}
	}

	if len(important) > 0 {
		c.logger.Debug().
			Int("detections", len(dets)).
			Int("important", len(important)).
			Str("top_class", important[0].Class).
			Msg("important frame")
	}
	return len(important) > 0, important, nil
}

// IsImportant reports whether class is in the important set
func (c *FrameClassifier) IsImportant(class string) bool {
	_, ok := c.important[strings.ToLower(class)]
	return ok
}
