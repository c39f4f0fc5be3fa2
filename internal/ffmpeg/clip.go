package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/highlightreel/pkg/util"
)

// ClipOptions defines frame-exact clip extraction parameters
type ClipOptions struct {
	StartFrame   int
	Frames       int
	FPS          float64
	Output       string
	VideoCodec   string
	AudioCodec   string
	CRF          int // Quality (0-51, lower = better)
	Preset       string
	ProgressFunc ProgressFunc
}

// Duration returns the clip length implied by the frame range
func (o ClipOptions) Duration() time.Duration {
	if o.FPS <= 0 {
		return 0
	}
	return util.Seconds(float64(o.Frames) / o.FPS)
}

// ExtractClip re-encodes Frames frames starting at StartFrame into Output
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	if opts.Frames <= 0 {
		return fmt.Errorf("invalid clip range: %d frames", opts.Frames)
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %f", opts.FPS)
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Int("start_frame", opts.StartFrame).
		Int("frames", opts.Frames).
		Dur("duration", opts.Duration()).
		Msg("extracting clip")

	args := []string{
		"-ss", util.FormatDuration(seekTime(opts.StartFrame, opts.FPS)),
		"-i", input,
		"-frames:v", fmt.Sprintf("%d", opts.Frames),
		"-t", util.FormatDuration(opts.Duration()),
	}
	args = append(args, e.videoEncodeArgs(opts.VideoCodec, opts.CRF, opts.Preset)...)
	args = append(args, e.audioEncodeArgs(opts.AudioCodec)...)
	args = append(args, "-movflags", "+faststart", opts.Output)

	runOpts := RunOptions{
		Args:            args,
		Output:          opts.Output,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("clip extraction complete")
	return nil
}

// seekTime positions an input seek half a frame before startFrame so that
// the frame at startFrame is the first one kept after accurate seeking.
func seekTime(startFrame int, fps float64) time.Duration {
	if startFrame <= 0 || fps <= 0 {
		return 0
	}
	return util.Seconds((float64(startFrame) - 0.5) / fps)
}

// videoEncodeArgs returns H.264 encode flags with executor defaults applied
func (e *Executor) videoEncodeArgs(codec string, crf int, preset string) []string {
	if codec == "" {
		codec = DefaultVideoCodec
	}
	if crf == 0 {
		crf = e.crf
	}
	if preset == "" {
		preset = e.preset
	}
	return []string{
		"-c:v", codec,
		"-preset", preset,
		"-crf", fmt.Sprintf("%d", crf),
		"-pix_fmt", DefaultPixelFormat,
	}
}

// audioEncodeArgs returns AAC encode flags
func (e *Executor) audioEncodeArgs(codec string) []string {
	if codec == "" {
		codec = DefaultAudioCodec
	}
	return []string{"-c:a", codec, "-b:a", DefaultAudioBitrate}
}
