package reel

import (
	"context"
	"fmt"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/ffmpeg"
)

// TitleOptions configures the title card
type TitleOptions struct {
	Duration   float64 `validate:"gt=0,lte=30"`
	Background string  `validate:"required"`
	FontSize   int     `validate:"gt=0"`
	FontColor  string  `validate:"required"`
	FontFile   string
}

// DefaultTitleOptions returns a 3 second white-on-black card
func DefaultTitleOptions() TitleOptions {
	return TitleOptions{
		Duration:   3,
		Background: "black",
		FontSize:   48,
		FontColor:  "white",
	}
}

// AddTitleScreen prepends a generated colour card with centred title text.
// The card matches the input's size and frame rate and is joined to it in
// the same filter graph, so no intermediate file is written.
func (a *Assembler) AddTitleScreen(ctx context.Context, input, output, title string, opts TitleOptions) (string, error) {
	if title == "" {
		return "", apperrors.ErrInvalidArgument("title is required")
	}
	if err := a.validate.Struct(opts); err != nil {
		return "", apperrors.ErrInvalidArgument(err.Error())
	}

	info, err := a.tc.ProbeVideo(ctx, input)
	if err != nil {
		return "", fmt.Errorf("probe failed: %w", err)
	}
	width, height, fps := outputGeometry([]clipInfo{{info: info}}, 0, 0, 0)

	inputs, graph, maps := titleGraph(input, title, opts, width, height, fps, info.HasAudio)

	a.logger.Info().
		Str("input", input).
		Str("title", title).
		Float64("duration", opts.Duration).
		Msg("adding title screen")

	err = a.tc.RenderComplex(ctx, ffmpeg.ComplexOptions{
		Inputs:   inputs,
		Graph:    graph.String(),
		Maps:     maps,
		Output:   output,
		HasAudio: info.HasAudio,
	})
	if err != nil {
		return "", err
	}
	return output, nil
}

// titleGraph builds the inputs and graph for a title card followed by input.
// Input 0 is the card, 1 the video and, with audio, 2 is silence for the card.
func titleGraph(input, title string, opts TitleOptions, width, height int, fps float64, hasAudio bool) ([]ffmpeg.Input, *ffmpeg.FilterGraph, []string) {
	dur := secs(opts.Duration)
	inputs := []ffmpeg.Input{
		{
			Path: fmt.Sprintf("color=c=%s:s=%dx%d:d=%s:r=%s", opts.Background, width, height, dur, secs(fps)),
			Args: []string{"-f", "lavfi"},
		},
		{Path: input},
	}

	text := ffmpeg.DrawTextOptions{
		Text:      title,
		FontFile:  opts.FontFile,
		FontSize:  opts.FontSize,
		FontColor: opts.FontColor,
	}

	g := ffmpeg.NewFilterGraph()
	g.Chain([]string{"0:v"}, ffmpeg.NewFilterBuilder().
		DrawText(text).
		Custom("setsar=1").
		Format(ffmpeg.DefaultPixelFormat).
		Build(), "title")
	g.Chain([]string{"1:v"}, ffmpeg.NewFilterBuilder().
		Fit(width, height).
		FPS(fps).
		Format(ffmpeg.DefaultPixelFormat).
		Build(), "main")

	if !hasAudio {
		g.Chain([]string{"title", "main"}, "concat=n=2:v=1:a=0", "vout")
		return inputs, g, []string{"[vout]"}
	}

	inputs = append(inputs, ffmpeg.Input{
		Path: "anullsrc=r=44100:cl=stereo",
		Args: []string{"-f", "lavfi", "-t", dur},
	})
	g.Chain([]string{"1:a"}, "aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo", "mainaudio")
	g.Chain([]string{"title", "2:a", "main", "mainaudio"}, "concat=n=2:v=1:a=1", "vout", "aout")
	return inputs, g, []string{"[vout]", "[aout]"}
}
