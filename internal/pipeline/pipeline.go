package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/highlightreel/internal/audio"
	"github.com/keagan/highlightreel/internal/cache"
	"github.com/keagan/highlightreel/internal/clips"
	"github.com/keagan/highlightreel/internal/config"
	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/highlight"
	"github.com/keagan/highlightreel/internal/reel"
	"github.com/keagan/highlightreel/pkg/util"
	"github.com/rs/zerolog"
)

// Pipeline orchestrates analysis, clip extraction, reel assembly and publishing
type Pipeline struct {
	logger      zerolog.Logger
	cfg         *config.Config
	detector    Detector
	extractor   ClipExtractor
	assembler   ReelAssembler
	cache       cache.Store
	publisher   Publisher
	audio       *audio.Segmenter
	audioOut    audio.Extractor
	scorer      highlight.Scorer
	fingerprint any
	closers     []func() error
}

// Components are the stages a Pipeline drives
type Components struct {
	Detector  Detector
	Extractor ClipExtractor
	Assembler ReelAssembler
	Cache     cache.Store // nil disables caching
	Publisher Publisher   // nil disables publishing

	// Audio and AudioExtractor back ExportApplause; both may be nil
	Audio          *audio.Segmenter
	AudioExtractor audio.Extractor

	// Fingerprint identifies the detection settings in cache keys
	Fingerprint any
	// Closers run in reverse order on Close
	Closers []func() error
}

// NewWithComponents assembles a pipeline from already built stages
func NewWithComponents(logger zerolog.Logger, cfg *config.Config, c Components) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	store := c.Cache
	if store == nil {
		store = cache.Noop{}
	}
	return &Pipeline{
		logger:      logger.With().Str("component", "pipeline").Logger(),
		cfg:         cfg,
		detector:    c.Detector,
		extractor:   c.Extractor,
		assembler:   c.Assembler,
		cache:       store,
		publisher:   c.Publisher,
		audio:       c.Audio,
		audioOut:    c.AudioExtractor,
		scorer:      highlight.NewHeuristicScorer(),
		fingerprint: c.Fingerprint,
		closers:     c.Closers,
	}
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Analyze detects and ranks the highlights of input. Raw detections are
// cached per file and settings; ranking is applied on every call.
func (p *Pipeline) Analyze(ctx context.Context, input string, opts AnalyzeOptions) (*Analysis, error) {
	if input == "" {
		return nil, apperrors.ErrInvalidArgument("input path cannot be empty")
	}
	if !util.FileExists(input) {
		return nil, apperrors.ErrInvalidArgument(fmt.Sprintf("input %s does not exist", input))
	}

	p.logger.Info().
		Str("input", input).
		Int("max_clips", opts.MaxClips).
		Msg("starting analysis")

	key, err := cache.Key(input, p.fingerprint)
	if err != nil {
		p.logger.Warn().Err(err).Msg("cannot derive cache key, analysis will not be cached")
		key = ""
	}

	var intervals []highlight.Interval
	hit := false
	if key != "" && !opts.NoCache {
		hit, err = cache.GetJSON(ctx, p.cache, key, &intervals)
		if err != nil {
			p.logger.Warn().Err(err).Msg("cache lookup failed")
		}
	}

	if hit {
		p.logger.Info().Int("highlights", len(intervals)).Msg("using cached analysis")
	} else {
		intervals, err = p.detector.Detect(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("highlight detection failed: %w", err)
		}
		if key != "" {
			if err := cache.SetJSON(ctx, p.cache, key, intervals, p.cfg.Cache.TTL); err != nil {
				p.logger.Warn().Err(err).Msg("failed to cache analysis")
			}
		}
	}

	ranked := highlight.Rank(intervals, opts.MaxClips, p.scorer)

	p.logger.Info().
		Int("detected", len(intervals)).
		Int("kept", len(ranked)).
		Bool("cache_hit", hit).
		Msg("analysis complete")

	return &Analysis{Input: input, Highlights: ranked, CacheHit: hit}, nil
}

// Extract cuts the given highlights out of input into outputDir
func (p *Pipeline) Extract(ctx context.Context, input string, highlights []highlight.Interval, outputDir string, visualize bool) ([]clips.Clip, error) {
	return p.extractor.Extract(ctx, input, highlights, outputDir, visualize)
}

// Assemble merges clip files into output
func (p *Pipeline) Assemble(ctx context.Context, clipPaths []string, output string, opts reel.MergeOptions) (string, error) {
	return p.assembler.Merge(ctx, clipPaths, output, opts)
}

// ExportApplause writes the applause segments of input as WAV files
func (p *Pipeline) ExportApplause(ctx context.Context, input, outputDir string) ([]string, error) {
	if p.audio == nil || p.audioOut == nil {
		return nil, apperrors.ErrInvalidArgument("audio analysis is not configured")
	}
	analysis, err := p.audio.Analyze(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("audio analysis failed: %w", err)
	}
	return p.audio.ExportApplause(ctx, p.audioOut, input, outputDir, analysis.Applause)
}

// Run analyzes opts.Input, extracts its highlights, merges them into a reel
// and optionally publishes the artifacts. Every run gets its own directory
// named by a fresh run id holding clips/, reel.mp4 and report.json.
//
// Clip failures do not stop the run: the report is returned together with
// the joined clip errors, as Extract does.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	analysis, err := p.Analyze(ctx, opts.Input, AnalyzeOptions{MaxClips: opts.MaxClips, NoCache: opts.NoCache})
	if err != nil {
		return nil, err
	}

	root := opts.OutputDir
	if root == "" {
		root = filepath.Join(p.cfg.WorkDir, "runs")
	}
	report := &Report{
		RunID:      uuid.NewString(),
		Input:      opts.Input,
		StartedAt:  time.Now(),
		CacheHit:   analysis.CacheHit,
		Highlights: analysis.Highlights,
		Clips:      []clips.Clip{},
	}
	report.Dir = filepath.Join(root, report.RunID)
	if err := util.EnsureDir(report.Dir); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	logger := p.logger.With().Str("run", report.RunID).Logger()
	logger.Info().
		Str("input", opts.Input).
		Str("dir", report.Dir).
		Int("highlights", len(report.Highlights)).
		Msg("run started")

	if len(report.Highlights) == 0 {
		logger.Warn().Msg("no highlights found")
		return report, p.writeReport(report)
	}

	extracted, clipErr := p.extractor.Extract(ctx, opts.Input, report.Highlights, filepath.Join(report.Dir, "clips"), opts.Visualize)
	if extracted == nil && clipErr != nil {
		return nil, clipErr
	}
	report.Clips = extracted
	for _, c := range extracted {
		if c.Err != nil {
			report.ClipErrors = append(report.ClipErrors, c.Err.Error())
		}
	}
	paths := clips.Paths(extracted)

	if !opts.SkipReel && len(paths) > 0 {
		out, err := p.assembler.Merge(ctx, paths, filepath.Join(report.Dir, "reel.mp4"), opts.Merge)
		if err != nil {
			if werr := p.writeReport(report); werr != nil {
				logger.Warn().Err(werr).Msg("failed to write report")
			}
			return report, fmt.Errorf("reel assembly failed: %w", err)
		}
		report.Reel = out
	}

	if err := p.writeReport(report); err != nil {
		return report, err
	}

	if opts.Publish {
		if err := p.publish(ctx, report, paths); err != nil {
			return report, err
		}
	}

	logger.Info().
		Int("clips", len(paths)).
		Int("failed", len(report.ClipErrors)).
		Str("reel", report.Reel).
		Int("published", len(report.Published)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("run complete")

	return report, clipErr
}

func (p *Pipeline) publish(ctx context.Context, report *Report, clipPaths []string) error {
	if p.publisher == nil {
		p.logger.Warn().Msg("publishing requested but storage is disabled")
		return nil
	}

	files := append([]string{}, clipPaths...)
	for _, c := range report.Clips {
		if c.OK() && c.Thumbnail != "" {
			files = append(files, c.Thumbnail)
		}
	}
	if report.Reel != "" {
		files = append(files, report.Reel)
	}
	files = append(files, reportPath(report))

	objects, err := p.publisher.UploadAll(ctx, report.RunID, files)
	report.Published = objects
	if werr := p.writeReport(report); werr != nil {
		p.logger.Warn().Err(werr).Msg("failed to update report")
	}
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func reportPath(r *Report) string {
	return filepath.Join(r.Dir, "report.json")
}

func (p *Pipeline) writeReport(r *Report) error {
	r.FinishedAt = time.Now()
	if err := writeJSON(reportPath(r), r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
