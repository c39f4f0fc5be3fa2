package ai

import (
	"context"
	"image"
)

// BoundingBox is an axis-aligned box in source pixel coordinates
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Area returns the box area, 0 for degenerate boxes
func (b BoundingBox) Area() int {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// IoU returns the intersection over union of two boxes
func (b BoundingBox) IoU(o BoundingBox) float64 {
	inter := b.Rect().Intersect(o.Rect())
	interArea := BoundingBox{inter.Min.X, inter.Min.Y, inter.Max.X, inter.Max.Y}.Area()
	union := b.Area() + o.Area() - interArea
	if union <= 0 {
		return 0
	}
	return float64(interArea) / float64(union)
}

// Detection is a single detected object
type Detection struct {
	Class      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Detector finds objects in an image
type Detector interface {
	Detect(ctx context.Context, img image.Image, confidence float64) ([]Detection, error)
	Close() error
}

// Reaction is the aggregated crowd response in a frame
type Reaction string

const (
	ReactionNeutral   Reaction = "neutral"
	ReactionPositive  Reaction = "positive"
	ReactionSurprised Reaction = "surprised"
)

// IsHighlight reports whether the reaction marks a highlight
func (r Reaction) IsHighlight() bool {
	return r == ReactionPositive || r == ReactionSurprised
}

// FaceReaction summarises the faces of one frame
type FaceReaction struct {
	FaceCount     int      `json:"face_count"`
	HappyRatio    float64  `json:"happy_ratio"`
	SurpriseRatio float64  `json:"surprise_ratio"`
	Reaction      Reaction `json:"reaction"`
	Confidence    float64  `json:"confidence"`

	// Sampled is false when too few faces were found to classify emotions
	Sampled bool `json:"sampled"`
}

// Emotion is a classified facial expression
type Emotion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Emotion labels recognised by the sampler
const (
	EmotionHappy    = "happy"
	EmotionSurprise = "surprise"
	EmotionNeutral  = "neutral"
)

// EmotionClassifier labels the expression of a single face crop
type EmotionClassifier interface {
	Classify(ctx context.Context, face image.Image) (Emotion, error)
}
