package ffmpeg

import (
	"context"
	"fmt"
	"strings"
)

// Input is one -i source with the flags that must precede it
type Input struct {
	Path string
	Args []string // e.g. -f lavfi, -stream_loop -1
}

// ComplexOptions describes a multi-input render driven by -filter_complex
type ComplexOptions struct {
	Inputs       []Input
	Graph        string
	Maps         []string // output pads or stream specifiers, e.g. "[vout]", "0:a?"
	Output       string
	HasAudio     bool
	VideoCodec   string
	AudioCodec   string
	CRF          int
	Preset       string
	ExtraArgs    []string
	ProgressFunc ProgressFunc
}

// RenderComplex runs a filter_complex graph over several inputs
func (e *Executor) RenderComplex(ctx context.Context, opts ComplexOptions) error {
	args, err := e.complexArgs(opts)
	if err != nil {
		return fmt.Errorf("invalid render options: %w", err)
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("starting filter graph render")
	e.logger.Debug().Str("graph", opts.Graph).Msg("filter graph")

	runOpts := RunOptions{
		Args:            args,
		Output:          opts.Output,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("filter graph render")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("render completed")
	return nil
}

func (e *Executor) complexArgs(opts ComplexOptions) ([]string, error) {
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if strings.TrimSpace(opts.Graph) == "" {
		return nil, fmt.Errorf("filter graph is empty")
	}

	var args []string
	for _, in := range opts.Inputs {
		args = append(args, in.Args...)
		args = append(args, "-i", in.Path)
	}
	args = append(args, "-filter_complex", opts.Graph)
	for _, m := range opts.Maps {
		args = append(args, "-map", m)
	}

	args = append(args, e.videoEncodeArgs(opts.VideoCodec, opts.CRF, opts.Preset)...)
	if opts.HasAudio {
		args = append(args, e.audioEncodeArgs(opts.AudioCodec)...)
	} else {
		args = append(args, "-an")
	}
	args = append(args, opts.ExtraArgs...)
	args = append(args, "-movflags", "+faststart", opts.Output)
	return args, nil
}
