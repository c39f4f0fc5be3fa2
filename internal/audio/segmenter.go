package audio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultSampleRate is the analysis sample rate in Hz
	DefaultSampleRate = 22050
	// DefaultApplauseThreshold is the onset peak delta
	DefaultApplauseThreshold = 0.07
	// DefaultMinApplauseDuration in seconds
	DefaultMinApplauseDuration = 0.5
	// DefaultMergeGap joins onsets closer than this many seconds
	DefaultMergeGap = 0.5
)

// Decoder decodes a media file's audio to mono float32 samples
type Decoder interface {
	DecodeAudio(ctx context.Context, path string, sampleRate int) ([]float32, error)
}

// Options configures a Segmenter
type Options struct {
	SampleRate          int
	ApplauseThreshold   float64
	MinApplauseDuration float64
	MergeGap            float64
	Crowd               CrowdOptions
}

// DefaultOptions returns the standard analysis parameters
func DefaultOptions() Options {
	return Options{
		SampleRate:          DefaultSampleRate,
		ApplauseThreshold:   DefaultApplauseThreshold,
		MinApplauseDuration: DefaultMinApplauseDuration,
		MergeGap:            DefaultMergeGap,
		Crowd:               DefaultCrowdOptions(),
	}
}

// Analysis is the audio-derived signal for one source, computed once
// before frame processing
type Analysis struct {
	Applause []Interval    `json:"applause"`
	Crowd    []CrowdWindow `json:"crowd"`
	Duration float64       `json:"duration"`

	once     sync.Once
	applause *Timeline
	crowd    *Timeline
}

func (a *Analysis) index() {
	a.once.Do(func() {
		a.applause = NewTimeline(a.Applause)
		intervals := make([]Interval, len(a.Crowd))
		for i, w := range a.Crowd {
			intervals[i] = w.Interval
		}
		a.crowd = NewTimeline(intervals)
	})
}

// InApplause reports whether t lies inside an applause interval
func (a *Analysis) InApplause(t float64) bool {
	if a == nil {
		return false
	}
	a.index()
	return a.applause.Contains(t)
}

// InCrowd reports whether t lies inside a crowd reaction window
func (a *Analysis) InCrowd(t float64) bool {
	if a == nil {
		return false
	}
	a.index()
	return a.crowd.Contains(t)
}

// Segmenter runs applause and crowd analysis over a media file
type Segmenter struct {
	logger  zerolog.Logger
	decoder Decoder
	opts    Options
}

// NewSegmenter creates a segmenter; zero option fields take defaults
func NewSegmenter(logger zerolog.Logger, decoder Decoder, opts Options) *Segmenter {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.ApplauseThreshold <= 0 {
		opts.ApplauseThreshold = def.ApplauseThreshold
	}
	if opts.MinApplauseDuration < 0 {
		opts.MinApplauseDuration = def.MinApplauseDuration
	}
	if opts.MergeGap <= 0 {
		opts.MergeGap = def.MergeGap
	}
	if opts.Crowd.WindowSize <= 0 {
		opts.Crowd = def.Crowd
	}

	return &Segmenter{
		logger:  logger.With().Str("component", "audio").Logger(),
		decoder: decoder,
		opts:    opts,
	}
}

// Analyze decodes the audio of path and computes applause intervals and
// crowd windows. Missing audio yields an empty analysis.
func (s *Segmenter) Analyze(ctx context.Context, path string) (*Analysis, error) {
	start := time.Now()

	samples, err := s.decoder.DecodeAudio(ctx, path, s.opts.SampleRate)
	if err != nil {
		return nil, err
	}

	analysis := s.AnalyzeSamples(samples, s.opts.SampleRate)
	if len(samples) == 0 {
		s.logger.Warn().Str("input", path).Msg("no audio samples, skipping audio analysis")
		return analysis, nil
	}

	s.logger.Info().
		Str("input", path).
		Float64("audio_seconds", analysis.Duration).
		Int("applause_intervals", len(analysis.Applause)).
		Int("crowd_windows", len(analysis.Crowd)).
		Dur("elapsed", time.Since(start)).
		Msg("audio analysis complete")

	return analysis, nil
}

// AnalyzeSamples runs the analysis over already decoded samples
func (s *Segmenter) AnalyzeSamples(samples []float32, sampleRate int) *Analysis {
	analysis := &Analysis{
		Applause: []Interval{},
		Crowd:    []CrowdWindow{},
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return analysis
	}
	analysis.Duration = float64(len(samples)) / float64(sampleRate)

	onsets := DetectOnsets(samples, sampleRate, s.opts.ApplauseThreshold)
	if applause := MergeOnsets(onsets, s.opts.MergeGap, s.opts.MinApplauseDuration); len(applause) > 0 {
		analysis.Applause = applause
	}
	if crowd := AnalyzeCrowdReactionWith(samples, sampleRate, s.opts.Crowd); len(crowd) > 0 {
		analysis.Crowd = crowd
	}

	s.logger.Debug().
		Int("onsets", len(onsets)).
		Int("applause_intervals", len(analysis.Applause)).
		Msg("onsets merged")

	return analysis
}
