package ai

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/overlays"
	"github.com/rs/zerolog"
)

// FaceOptions configures crowd reaction sampling
type FaceOptions struct {
	MinFaces         int
	MinHappyRatio    float64
	MinSurpriseRatio float64
	Confidence       float64 // face detection threshold
	Style            overlays.Style
}

// DefaultFaceOptions returns the standard crowd thresholds
func DefaultFaceOptions() FaceOptions {
	return FaceOptions{
		MinFaces:         5,
		MinHappyRatio:    0.7,
		MinSurpriseRatio: 0.7,
		Confidence:       0.5,
		Style:            overlays.DefaultStyle(),
	}
}

// AnalyzedFace is a detected face with its classified emotion
type AnalyzedFace struct {
	Detection
	Emotion Emotion `json:"emotion"`
}

// FaceSampler estimates the crowd's reaction from the faces in a frame
type FaceSampler struct {
	logger   zerolog.Logger
	detector Detector
	emotions EmotionClassifier
	opts     FaceOptions
	palette  *overlays.Registry
}

// NewFaceSampler creates a sampler; a nil emotion classifier labels every face neutral
func NewFaceSampler(logger zerolog.Logger, detector Detector, emotions EmotionClassifier, opts FaceOptions) (*FaceSampler, error) {
	if detector == nil {
		return nil, apperrors.ErrInvalidArgument("face detector is required")
	}
	if emotions == nil {
		emotions = FixedEmotion{Label: EmotionNeutral}
	}
	def := DefaultFaceOptions()
	if opts.MinFaces <= 0 {
		opts.MinFaces = def.MinFaces
	}
	if opts.MinHappyRatio <= 0 {
		opts.MinHappyRatio = def.MinHappyRatio
	}
	if opts.MinSurpriseRatio <= 0 {
		opts.MinSurpriseRatio = def.MinSurpriseRatio
	}
	if opts.Confidence <= 0 {
		opts.Confidence = def.Confidence
	}
	if opts.Style.Thickness == 0 {
		opts.Style = def.Style
	}

	return &FaceSampler{
		logger:   logger.With().Str("component", "face-sampler").Logger(),
		detector: detector,
		emotions: emotions,
		opts:     opts,
		palette:  overlays.EmotionRegistry(opts.Style.BoxColor),
	}, nil
}

// Sample detects faces and aggregates their emotions. Frames with fewer
// than MinFaces faces are neutral with zero confidence and no emotions are
// classified.
func (s *FaceSampler) Sample(ctx context.Context, frame image.Image) (FaceReaction, error) {
	faces, err := s.detector.Detect(ctx, frame, s.opts.Confidence)
	if err != nil {
		return FaceReaction{}, fmt.Errorf("face detection failed: %w", err)
	}

	if len(faces) < s.opts.MinFaces {
		return FaceReaction{
			FaceCount:  len(faces),
			Reaction:   ReactionNeutral,
			Confidence: 0,
		}, nil
	}

	analyzed, err := s.analyze(ctx, frame, faces)
	if err != nil {
		return FaceReaction{}, err
	}
	return s.aggregate(analyzed), nil
}

// aggregate turns per-face emotions into a frame reaction
func (s *FaceSampler) aggregate(faces []AnalyzedFace) FaceReaction {
	var happy, surprised int
	for _, f := range faces {
		switch f.Emotion.Label {
		case EmotionHappy:
			happy++
		case EmotionSurprise:
			surprised++
		}
	}

	total := float64(len(faces))
	fr := FaceReaction{
		FaceCount:     len(faces),
		HappyRatio:    float64(happy) / total,
		SurpriseRatio: float64(surprised) / total,
		Sampled:       true,
	}

	switch {
	case fr.HappyRatio >= s.opts.MinHappyRatio:
		fr.Reaction = ReactionPositive
		fr.Confidence = fr.HappyRatio
	case fr.SurpriseRatio >= s.opts.MinSurpriseRatio:
		fr.Reaction = ReactionSurprised
		fr.Confidence = fr.SurpriseRatio
	default:
		fr.Reaction = ReactionNeutral
		fr.Confidence = 1 - fr.HappyRatio
	}
	return fr
}

// analyze classifies the emotion of each face crop
func (s *FaceSampler) analyze(ctx context.Context, frame image.Image, faces []Detection) ([]AnalyzedFace, error) {
	analyzed := make([]AnalyzedFace, 0, len(faces))
	for _, f := range faces {
		emo, err := s.emotions.Classify(ctx, crop(frame, f.Box.Rect()))
		if err != nil {
			return nil, fmt.Errorf("emotion classification failed: %w", err)
		}
		emo.Label = NormalizeEmotion(emo.Label)
		analyzed = append(analyzed, AnalyzedFace{Detection: f, Emotion: emo})
	}
	return analyzed, nil
}

// DetectAndDraw returns a copy of frame with every face boxed and labelled
// "emotion (confidence)"
func (s *FaceSampler) DetectAndDraw(ctx context.Context, frame image.Image) (*image.RGBA, error) {
	faces, err := s.detector.Detect(ctx, frame, s.opts.Confidence)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	analyzed, err := s.analyze(ctx, frame, faces)
	if err != nil {
		return nil, err
	}

	canvas := toRGBA(frame)
	for _, f := range analyzed {
		label := fmt.Sprintf("%s (%.2f)", f.Emotion.Label, f.Confidence)
		overlays.Annotate(canvas, f.Box.Rect(), label, s.palette.Get(f.Emotion.Label), s.opts.Style)
	}
	return canvas, nil
}

// crop returns the sub-image within r, copying when the image cannot be sliced
func crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// toRGBA returns an RGBA copy of img
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
