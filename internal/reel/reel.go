package reel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/ffmpeg"
	"github.com/keagan/highlightreel/pkg/util"
	"github.com/rs/zerolog"
)

// FallbackDuration is assumed for clips whose duration cannot be probed
const FallbackDuration = 10 * time.Second

// Default output geometry when no clip could be probed
const (
	defaultWidth  = 1280
	defaultHeight = 720
	defaultFPS    = 30
)

// Transcoder is the subset of the ffmpeg executor the assembler drives
type Transcoder interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	RenderComplex(ctx context.Context, opts ffmpeg.ComplexOptions) error
	Render(ctx context.Context, opts ffmpeg.RenderOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	ApplySubtitles(ctx context.Context, input, subtitles, output, forceStyle string, progressFunc ffmpeg.ProgressFunc) error
}

// MergeOptions configures reel assembly
type MergeOptions struct {
	TransitionDuration float64 `validate:"gte=0"` // seconds; 0 concatenates
	TargetDuration     float64 `validate:"gte=0"` // seconds; 0 keeps each clip's length
	MusicPath          string
	MusicVolume        float64 `validate:"gte=0,lte=2"`
	KeepClipAudio      bool
	Width              int     `validate:"gte=0"`
	Height             int     `validate:"gte=0"`
	FPS                float64 `validate:"gte=0"`
	Progress           func(percent int)
}

// Assembler merges clips into a reel and edits single videos
type Assembler struct {
	logger   zerolog.Logger
	tc       Transcoder
	validate *validator.Validate
	tempDir  string
}

// New creates an assembler; temp files go to tempDir, or the system default
func New(logger zerolog.Logger, tc Transcoder, tempDir string) *Assembler {
	return &Assembler{
		logger:   logger.With().Str("component", "reel").Logger(),
		tc:       tc,
		validate: validator.New(),
		tempDir:  tempDir,
	}
}

// clipInfo is a probed merge input
type clipInfo struct {
	path     string
	duration float64
	info     *ffmpeg.VideoInfo // nil when probing failed
}

// plan is the resolved layout of a crossfaded reel
type plan struct {
	trims      []float64
	offsets    []float64 // offsets[k-1] is the start of the k-th crossfade
	transition float64
	total      float64 // output length in seconds
}

// planMerge computes per-clip trims and crossfade offsets. With a target the
// trims are (target - (n-1)*transition)/n, capped by each clip's length, so
// the trims plus the transitions add up to the target.
func planMerge(durations []float64, transition, target float64) (plan, error) {
	n := len(durations)
	if n == 0 {
		return plan{}, fmt.Errorf("no clips")
	}

	p := plan{
		trims:      make([]float64, n),
		transition: transition,
	}
	if n == 1 {
		p.transition = 0
	}

	even := 0.0
	if target > 0 {
		even = (target - float64(n-1)*p.transition) / float64(n)
		if even <= 0 {
			return plan{}, fmt.Errorf("target %.2fs too short for %d clips with %.2fs transitions", target, n, transition)
		}
	}

	for i, d := range durations {
		trim := d
		if even > 0 {
			trim = math.Min(even, d)
		}
		if n > 1 && trim <= p.transition {
			return plan{}, fmt.Errorf("clip %d trim %.2fs is not longer than the %.2fs transition", i+1, trim, p.transition)
		}
		p.trims[i] = trim
	}

	elapsed := 0.0
	for k := 1; k < n; k++ {
		elapsed += p.trims[k-1]
		p.offsets = append(p.offsets, elapsed-float64(k)*p.transition)
	}

	for _, t := range p.trims {
		p.total += t
	}
	p.total -= float64(n-1) * p.transition
	return p, nil
}

// Merge assembles clips into output with crossfades and optional music.
// A zero transition concatenates the clips instead.
func (a *Assembler) Merge(ctx context.Context, clips []string, output string, opts MergeOptions) (string, error) {
	if len(clips) == 0 {
		return "", apperrors.ErrInvalidArgument("no clips to merge")
	}
	if output == "" {
		return "", apperrors.ErrInvalidArgument("output path is required")
	}
	if err := a.validate.Struct(opts); err != nil {
		return "", apperrors.ErrInvalidArgument(err.Error())
	}

	a.logger.Info().
		Int("clips", len(clips)).
		Str("output", output).
		Float64("transition", opts.TransitionDuration).
		Float64("target", opts.TargetDuration).
		Bool("music", opts.MusicPath != "").
		Msg("merging clips")

	inputs := a.probeClips(ctx, clips)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if opts.TransitionDuration == 0 && opts.TargetDuration == 0 && opts.MusicPath == "" {
		return output, a.concat(ctx, inputs, output, opts)
	}

	durations := make([]float64, len(inputs))
	for i, in := range inputs {
		durations[i] = in.duration
	}
	p, err := planMerge(durations, opts.TransitionDuration, opts.TargetDuration)
	if err != nil {
		return "", apperrors.ErrInvalidArgument(err.Error())
	}

	g := graphOptions{
		width:     opts.Width,
		height:    opts.Height,
		fps:       opts.FPS,
		clipAudio: opts.KeepClipAudio && allHaveAudio(inputs),
		music:     opts.MusicPath != "",
		volume:    opts.MusicVolume,
	}
	if opts.KeepClipAudio && !g.clipAudio {
		a.logger.Warn().Msg("not every clip has audio, dropping clip audio")
	}
	g.width, g.height, g.fps = outputGeometry(inputs, g.width, g.height, g.fps)

	graph := buildMergeGraph(p, g)

	complexInputs := make([]ffmpeg.Input, 0, len(inputs)+1)
	for _, in := range inputs {
		complexInputs = append(complexInputs, ffmpeg.Input{Path: in.path})
	}
	if g.music {
		complexInputs = append(complexInputs, ffmpeg.Input{
			Path: opts.MusicPath,
			Args: []string{"-stream_loop", "-1"},
		})
	}

	tracker := ffmpeg.NewPercentTracker(util.Seconds(p.total), opts.Progress)
	err = a.tc.RenderComplex(ctx, ffmpeg.ComplexOptions{
		Inputs:       complexInputs,
		Graph:        graph.String(),
		Maps:         graph.maps,
		Output:       output,
		HasAudio:     graph.hasAudio,
		ProgressFunc: tracker.Handle,
	})
	if err != nil {
		return "", err
	}
	tracker.Complete()

	a.logger.Info().
		Str("output", output).
		Float64("duration", p.total).
		Int("transitions", len(p.offsets)).
		Msg("reel assembled")
	return output, nil
}

// concat joins clips end to end with the concat demuxer
func (a *Assembler) concat(ctx context.Context, inputs []clipInfo, output string, opts MergeOptions) error {
	paths := make([]string, len(inputs))
	var total float64
	for i, in := range inputs {
		paths[i] = in.path
		total += in.duration
	}

	tracker := ffmpeg.NewPercentTracker(util.Seconds(total), opts.Progress)
	err := a.tc.Concat(ctx, ffmpeg.ConcatOptions{
		Inputs:       paths,
		Output:       output,
		ReEncode:     true,
		ProgressFunc: tracker.Handle,
	})
	if err != nil {
		return err
	}
	tracker.Complete()
	a.logger.Info().Str("output", output).Float64("duration", total).Msg("clips concatenated")
	return nil
}

// probeClips probes every clip; failures fall back to FallbackDuration
func (a *Assembler) probeClips(ctx context.Context, clips []string) []clipInfo {
	inputs := make([]clipInfo, len(clips))
	for i, path := range clips {
		inputs[i] = clipInfo{path: path, duration: FallbackDuration.Seconds()}

		info, err := a.tc.ProbeVideo(ctx, path)
		if err == nil && info.Duration <= 0 {
			err = fmt.Errorf("zero duration")
		}
		if err != nil {
			if ctx.Err() != nil {
				return inputs
			}
			a.logger.Warn().
				Err(apperrors.ErrDurationProbe(path, err)).
				Dur("fallback", FallbackDuration).
				Msg("using fallback clip duration")
			continue
		}
		inputs[i].duration = info.Duration.Seconds()
		inputs[i].info = info
	}
	return inputs
}

func allHaveAudio(inputs []clipInfo) bool {
	for _, in := range inputs {
		if in.info == nil || !in.info.HasAudio {
			return false
		}
	}
	return true
}

// outputGeometry fills unset dimensions from the first probed clip
func outputGeometry(inputs []clipInfo, width, height int, fps float64) (int, int, float64) {
	for _, in := range inputs {
		if in.info == nil {
			continue
		}
		if width <= 0 || height <= 0 {
			width, height = in.info.Width, in.info.Height
		}
		if fps <= 0 {
			fps = in.info.FPS
		}
		break
	}
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}
	if fps <= 0 {
		fps = defaultFPS
	}
	// yuv420p needs even dimensions
	return width &^ 1, height &^ 1, fps
}
