package highlight

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/keagan/highlightreel/internal/ai"
	"github.com/keagan/highlightreel/internal/audio"
	"github.com/keagan/highlightreel/internal/ffmpeg"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// VideoSource probes a video and decodes its frames
type VideoSource interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	StreamFrames(ctx context.Context, input string, opts ffmpeg.StreamOptions, fn ffmpeg.FrameFunc) error
}

// AudioAnalyzer computes applause and crowd intervals for a whole video
type AudioAnalyzer interface {
	Analyze(ctx context.Context, path string) (*audio.Analysis, error)
}

// EventClassifier decides whether a frame shows an important event
type EventClassifier interface {
	Classify(ctx context.Context, frame image.Image, threshold float64) (bool, []ai.Detection, error)
}

// ReactionSampler estimates the crowd reaction in a frame
type ReactionSampler interface {
	Sample(ctx context.Context, frame image.Image) (ai.FaceReaction, error)
}

// Options configures highlight detection
type Options struct {
	MinConfidence float64
	MinDuration   float64 // seconds
	AnalyzeAudio  bool
	AnalyzeFaces  bool
	FrameStride   int // analyze every Nth frame
	Workers       int
}

// DefaultOptions returns the standard detection settings
func DefaultOptions() Options {
	return Options{
		MinConfidence: 0.5,
		MinDuration:   2.0,
		AnalyzeAudio:  true,
		AnalyzeFaces:  true,
		FrameStride:   1,
		Workers:       1,
	}
}

// Engine runs the frame loop and fuses visual, face and audio signals
type Engine struct {
	logger  zerolog.Logger
	video   VideoSource
	events  EventClassifier
	faces   ReactionSampler
	audio   AudioAnalyzer
	options Options
}

// NewEngine creates an engine; faces and audio may be nil to disable those signals
func NewEngine(logger zerolog.Logger, video VideoSource, events EventClassifier, faces ReactionSampler, audio AudioAnalyzer, opts Options) *Engine {
	if opts.FrameStride <= 0 {
		opts.FrameStride = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		logger:  logger.With().Str("component", "highlight").Logger(),
		video:   video,
		events:  events,
		faces:   faces,
		audio:   audio,
		options: opts,
	}
}

// Options returns the engine's effective options
func (e *Engine) Options() Options {
	return e.options
}

type pendingFrame struct {
	index int
	frame *image.RGBA
}

// Detect returns the highlight intervals of the video in chronological order.
// Audio is analyzed over the whole file before the first frame is examined.
func (e *Engine) Detect(ctx context.Context, videoPath string) ([]Interval, error) {
	if e.events == nil {
		return nil, fmt.Errorf("event classifier is required")
	}
	start := time.Now()

	info, err := e.video.ProbeVideo(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}
	if info.FPS <= 0 {
		return nil, fmt.Errorf("video %s has no frame rate", videoPath)
	}

	e.logger.Info().
		Str("video", videoPath).
		Dur("duration", info.Duration).
		Float64("fps", info.FPS).
		Int("stride", e.options.FrameStride).
		Int("workers", e.options.Workers).
		Msg("starting highlight detection")

	var analysis *audio.Analysis
	if e.options.AnalyzeAudio && e.audio != nil {
		analysis, err = e.audio.Analyze(ctx, videoPath)
		if err != nil {
			return nil, fmt.Errorf("audio analysis failed: %w", err)
		}
		e.logger.Info().
			Int("applause", len(analysis.Applause)).
			Int("crowd_windows", len(analysis.Crowd)).
			Msg("audio analyzed")
	}

	acc := NewAccumulator(e.options.MinDuration)
	batch := make([]pendingFrame, 0, e.options.Workers)
	analyzed, skipped := 0, 0
	var lastFrameErr error

	flush := func() error {
		signals, frameErr, err := e.analyzeBatch(ctx, batch, info.FPS, analysis)
		if err != nil {
			return err
		}
		for _, s := range signals {
			if s != nil {
				acc.Observe(*s)
			} else {
				skipped++
			}
		}
		if frameErr != nil {
			lastFrameErr = frameErr
		}
		analyzed += len(batch)
		batch = batch[:0]
		return nil
	}

	err = e.video.StreamFrames(ctx, videoPath, ffmpeg.StreamOptions{
		FPS:    info.FPS,
		Width:  info.Width,
		Height: info.Height,
	}, func(index int, frame *image.RGBA) error {
		if index%e.options.FrameStride != 0 {
			return nil
		}
		batch = append(batch, pendingFrame{index: index, frame: frame})
		if len(batch) < e.options.Workers {
			return nil
		}
		return flush()
	})
	if err != nil {
		return nil, fmt.Errorf("frame loop failed: %w", err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	intervals := acc.Finish()
	if analyzed > 0 && skipped == analyzed {
		return nil, fmt.Errorf("all %d frames failed analysis: %w", analyzed, lastFrameErr)
	}
	if skipped > 0 {
		e.logger.Warn().
			Int("skipped", skipped).
			Int("frames", analyzed).
			AnErr("last_error", lastFrameErr).
			Msg("some frames failed analysis and were skipped")
	}

	e.logger.Info().
		Int("frames", analyzed).
		Int("skipped", skipped).
		Int("highlights", len(intervals)).
		Dur("elapsed", time.Since(start)).
		Msg("highlight detection complete")

	return intervals, nil
}

// analyzeBatch classifies frames concurrently and returns their signals in
// frame order. Frames whose classification failed are nil; frameErr is the
// failure of the last such frame.
func (e *Engine) analyzeBatch(ctx context.Context, batch []pendingFrame, fps float64, analysis *audio.Analysis) (results []*FrameSignals, frameErr error, err error) {
	results = make([]*FrameSignals, len(batch))
	failures := make([]error, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.options.Workers)
	for i, pf := range batch {
		i, pf := i, pf
		g.Go(func() error {
			s, err := e.analyzeFrame(gctx, pf, fps, analysis)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.logger.Warn().Err(err).Int("frame", pf.index).Msg("frame analysis failed, skipping")
				failures[i] = err
				return nil
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for _, f := range failures {
		if f != nil {
			frameErr = f
		}
	}
	return results, frameErr, nil
}

func (e *Engine) analyzeFrame(ctx context.Context, pf pendingFrame, fps float64, analysis *audio.Analysis) (*FrameSignals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := float64(pf.index) / fps
	important, dets, err := e.events.Classify(ctx, pf.frame, e.options.MinConfidence)
	if err != nil {
		return nil, fmt.Errorf("object detection: %w", err)
	}

	s := &FrameSignals{
		Time:       t,
		Important:  important,
		Detections: dets,
		InApplause: analysis.InApplause(t),
		InCrowd:    analysis.InCrowd(t),
	}

	if e.options.AnalyzeFaces && e.faces != nil {
		fr, err := e.faces.Sample(ctx, pf.frame)
		if err != nil {
			return nil, fmt.Errorf("face sampling: %w", err)
		}
		s.Face = &fr
	}

	if s.IsHighlight() {
		e.logger.Debug().
			Float64("t", t).
			Bool("important", important).
			Bool("applause", s.InApplause).
			Msg("highlight frame")
	}
	return s, nil
}
