package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/keagan/highlightreel/internal/ai"
	"github.com/keagan/highlightreel/internal/audio"
	"github.com/keagan/highlightreel/internal/cache"
	"github.com/keagan/highlightreel/internal/clips"
	"github.com/keagan/highlightreel/internal/config"
	"github.com/keagan/highlightreel/internal/ffmpeg"
	"github.com/keagan/highlightreel/internal/highlight"
	"github.com/keagan/highlightreel/internal/overlays"
	"github.com/keagan/highlightreel/internal/reel"
	"github.com/keagan/highlightreel/internal/storage"
	"github.com/rs/zerolog"
)

// NewExecutor creates the ffmpeg executor described by cfg
func NewExecutor(logger zerolog.Logger, cfg *config.Config) (*ffmpeg.Executor, error) {
	exec, err := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
		Preset:      cfg.FFmpeg.Preset,
		CRF:         cfg.FFmpeg.CRF,
		TempDir:     cfg.TempDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}
	return exec, nil
}

// New loads the models and wires every stage from cfg. Close releases the
// model sessions, the cache and the ONNX runtime.
func New(ctx context.Context, logger zerolog.Logger, cfg *config.Config) (_ *Pipeline, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	exec, err := NewExecutor(logger, cfg)
	if err != nil {
		return nil, err
	}

	style, err := StyleFromConfig(cfg.Overlays)
	if err != nil {
		return nil, err
	}

	closers = append(closers, ai.ShutdownRuntime)
	detector, err := ai.NewONNXDetector(logger, ai.DetectorOptions{
		ModelPath:      cfg.Detection.ModelPath,
		RuntimeLibrary: cfg.Detection.RuntimeLibrary,
		InputSize:      cfg.Detection.InputSize,
		InputName:      cfg.Detection.InputName,
		OutputName:     cfg.Detection.OutputName,
		Labels:         cfg.Detection.Labels,
		IoUThreshold:   cfg.Detection.IoUThreshold,
	})
	if err != nil {
		return nil, err
	}
	closers = append(closers, detector.Close)
	classifier := ai.NewFrameClassifier(logger, detector, cfg.Detection.ImportantClasses)

	var (
		faces     highlight.ReactionSampler
		annotator clips.Annotator
	)
	if cfg.Detection.AnalyzeFaces && cfg.Detection.FaceModelPath != "" {
		sampler, closeFaces, err := newFaceSampler(logger, cfg, style)
		if err != nil {
			return nil, err
		}
		closers = append(closers, closeFaces)
		faces, annotator = sampler, sampler
	} else if cfg.Detection.AnalyzeFaces {
		logger.Warn().Msg("no face model configured, crowd reactions disabled")
	}

	segmenter := audio.NewSegmenter(logger, exec, audio.Options{
		SampleRate:          cfg.Audio.SampleRate,
		ApplauseThreshold:   cfg.Audio.ApplauseThreshold,
		MinApplauseDuration: cfg.Audio.ApplauseMinDur,
		MergeGap:            cfg.Audio.MergeGap,
		Crowd: audio.CrowdOptions{
			WindowSize:      cfg.Audio.CrowdWindow,
			MidThresholdDB:  cfg.Audio.MidThresholdDB,
			HighThresholdDB: cfg.Audio.HighThresholdDB,
		},
	})

	engineOpts := highlight.Options{
		MinConfidence: cfg.Detection.MinConfidence,
		MinDuration:   cfg.Detection.MinDuration,
		AnalyzeAudio:  cfg.Detection.AnalyzeAudio,
		AnalyzeFaces:  faces != nil,
		FrameStride:   cfg.Detection.FrameStride,
		Workers:       cfg.Concurrency,
	}
	engine := highlight.NewEngine(logger, exec, classifier, faces, segmenter, engineOpts)

	extractor := clips.NewExtractor(logger, exec, exec, annotator, clips.Options{
		Thumbnails:     cfg.Reel.Thumbnails,
		ThumbnailWidth: clips.DefaultOptions().ThumbnailWidth,
		CRF:            cfg.FFmpeg.CRF,
		Preset:         cfg.FFmpeg.Preset,
		Style:          style,
	})

	store, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store.Close)

	c := Components{
		Detector:       engine,
		Extractor:      extractor,
		Assembler:      reel.New(logger, exec, cfg.TempDir),
		Cache:          store,
		Audio:          segmenter,
		AudioExtractor: exec,
		Fingerprint:    fingerprint(cfg, engine.Options()),
		Closers:        closers,
	}
	if cfg.Storage.Enabled {
		publisher, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		c.Publisher = publisher
	}

	return NewWithComponents(logger, cfg, c), nil
}

// newFaceSampler loads the face model and picks the emotion backend
func newFaceSampler(logger zerolog.Logger, cfg *config.Config, style overlays.Style) (*ai.FaceSampler, func() error, error) {
	faceDetector, err := ai.NewONNXDetector(logger, ai.DetectorOptions{
		ModelPath:      cfg.Detection.FaceModelPath,
		RuntimeLibrary: cfg.Detection.RuntimeLibrary,
		InputSize:      cfg.Detection.InputSize,
		InputName:      cfg.Detection.InputName,
		OutputName:     cfg.Detection.OutputName,
		Labels:         ai.FaceLabels(),
		IoUThreshold:   cfg.Detection.IoUThreshold,
	})
	if err != nil {
		return nil, nil, err
	}

	var emotions ai.EmotionClassifier
	if cfg.Face.EmotionURL != "" {
		emotions = ai.NewHTTPEmotionClassifier(logger, ai.EmotionOptions{
			URL:      cfg.Face.EmotionURL,
			Timeout:  cfg.Face.EmotionTimeout,
			CropSize: cfg.Face.CropSize,
		})
	} else {
		logger.Warn().
			Str("label", cfg.Face.FallbackEmotion).
			Msg("no emotion service configured, every face gets the fallback label")
		emotions = ai.FixedEmotion{Label: cfg.Face.FallbackEmotion, Confidence: 1}
	}

	sampler, err := ai.NewFaceSampler(logger, faceDetector, emotions, ai.FaceOptions{
		MinFaces:         cfg.Face.MinFaces,
		MinHappyRatio:    cfg.Face.MinHappyRatio,
		MinSurpriseRatio: cfg.Face.MinSurpriseRatio,
		Confidence:       cfg.Face.Confidence,
		Style:            style,
	})
	if err != nil {
		return nil, nil, errors.Join(err, faceDetector.Close())
	}
	return sampler, faceDetector.Close, nil
}

// StyleFromConfig builds the annotation style from the overlay colours
func StyleFromConfig(oc config.OverlayConfig) (overlays.Style, error) {
	style := overlays.DefaultStyle()
	if oc.BoxColor != "" {
		c, err := overlays.ParseHexColor(oc.BoxColor)
		if err != nil {
			return style, fmt.Errorf("overlays.box_color: %w", err)
		}
		style.BoxColor = c
	}
	if oc.BadgeColor != "" {
		c, err := overlays.ParseHexColor(oc.BadgeColor)
		if err != nil {
			return style, fmt.Errorf("overlays.badge_color: %w", err)
		}
		style.BadgeColor = c
	}
	if oc.TextSize > 0 {
		style.TextScale = oc.TextSize
	}
	return style, nil
}

// MergeOptions converts the reel section of the config
func MergeOptions(rc config.ReelConfig) reel.MergeOptions {
	return reel.MergeOptions{
		TransitionDuration: rc.TransitionDuration,
		TargetDuration:     rc.TargetDuration,
		MusicPath:          rc.MusicPath,
		MusicVolume:        rc.MusicVolume,
		KeepClipAudio:      rc.KeepClipAudio,
		Width:              rc.Width,
		Height:             rc.Height,
		FPS:                rc.FPS,
	}
}

// fingerprint captures every setting that changes detection output
func fingerprint(cfg *config.Config, opts highlight.Options) any {
	det := cfg.Detection
	det.MaxClips = 0
	opts.Workers = 0
	return struct {
		Detection config.DetectionConfig
		Face      config.FaceConfig
		Audio     config.AudioConfig
		Engine    highlight.Options
	}{det, cfg.Face, cfg.Audio, opts}
}
