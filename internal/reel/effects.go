package reel

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/ffmpeg"
)

// TextPosition places an overlay vertically
type TextPosition string

const (
	PositionTop    TextPosition = "top"
	PositionCenter TextPosition = "center"
	PositionBottom TextPosition = "bottom"
)

// TextOptions configures a text overlay
type TextOptions struct {
	Position  TextPosition `validate:"omitempty,oneof=top center bottom"`
	FontSize  int          `validate:"gte=0"`
	FontColor string
	FontFile  string
	Box       bool
	Start     float64 `validate:"gte=0"` // seconds; 0 with End 0 shows the text throughout
	End       float64 `validate:"gte=0"`
}

// y returns the drawtext y expression for the position
func (p TextPosition) y() string {
	switch p {
	case PositionTop:
		return "h*0.05"
	case PositionBottom:
		return "h-text_h-h*0.05"
	default:
		return "(h-text_h)/2"
	}
}

// AddTextOverlay draws text over input, optionally only between Start and End
func (a *Assembler) AddTextOverlay(ctx context.Context, input, output, text string, opts TextOptions) (string, error) {
	if text == "" {
		return "", apperrors.ErrInvalidArgument("overlay text is required")
	}
	if err := a.validate.Struct(opts); err != nil {
		return "", apperrors.ErrInvalidArgument(err.Error())
	}
	if opts.End > 0 && opts.End <= opts.Start {
		return "", apperrors.ErrInvalidArgument("overlay end must be after start")
	}

	a.logger.Info().
		Str("input", input).
		Str("position", string(opts.Position)).
		Msg("adding text overlay")

	err := a.tc.Render(ctx, ffmpeg.RenderOptions{
		Input:     input,
		Output:    output,
		Filters:   []string{textFilter(text, opts)},
		CopyAudio: true,
	})
	if err != nil {
		return "", err
	}
	return output, nil
}

func textFilter(text string, opts TextOptions) string {
	dt := ffmpeg.DrawTextOptions{
		Text:      text,
		FontFile:  opts.FontFile,
		FontSize:  opts.FontSize,
		FontColor: opts.FontColor,
		Y:         opts.Position.y(),
		Box:       opts.Box,
	}
	if opts.End > 0 {
		dt.Enable = fmt.Sprintf("between(t,%s,%s)", secs(opts.Start), secs(opts.End))
	} else if opts.Start > 0 {
		dt.Enable = fmt.Sprintf("gte(t,%s)", secs(opts.Start))
	}
	return dt.String()
}

// Effects are colour and speed adjustments; zero values leave the video unchanged
type Effects struct {
	Speed      float64 `validate:"omitempty,gte=0.25,lte=4"`
	Brightness float64 `validate:"gte=-1,lte=1"`
	Contrast   float64 `validate:"omitempty,gte=0,lte=3"`
	Saturation float64 `validate:"omitempty,gte=0,lte=3"`
}

// IsZero reports whether the effects would change nothing
func (e Effects) IsZero() bool {
	return (e.Speed == 0 || e.Speed == 1) &&
		e.Brightness == 0 &&
		(e.Contrast == 0 || e.Contrast == 1) &&
		(e.Saturation == 0 || e.Saturation == 1)
}

// AddEffects applies speed and eq adjustments to input
func (a *Assembler) AddEffects(ctx context.Context, input, output string, effects Effects) (string, error) {
	if err := a.validate.Struct(effects); err != nil {
		return "", apperrors.ErrInvalidArgument(err.Error())
	}
	if effects.IsZero() {
		return "", apperrors.ErrInvalidArgument("no effects requested")
	}

	info, err := a.tc.ProbeVideo(ctx, input)
	if err != nil {
		return "", fmt.Errorf("probe failed: %w", err)
	}

	video, audio := effectFilters(effects)
	if !info.HasAudio {
		audio = nil
	}

	a.logger.Info().
		Str("input", input).
		Float64("speed", effects.Speed).
		Float64("brightness", effects.Brightness).
		Float64("contrast", effects.Contrast).
		Float64("saturation", effects.Saturation).
		Msg("applying effects")

	err = a.tc.Render(ctx, ffmpeg.RenderOptions{
		Input:        input,
		Output:       output,
		Filters:      video,
		AudioFilters: audio,
		CopyAudio:    len(audio) == 0,
	})
	if err != nil {
		return "", err
	}
	return output, nil
}

// effectFilters returns the video and audio filter chains for effects
func effectFilters(e Effects) (video, audio []string) {
	if e.Speed > 0 && e.Speed != 1 {
		video = append(video, "setpts=PTS/"+fmtFloat(e.Speed))
		audio = atempoChain(e.Speed)
	}

	contrast, saturation := e.Contrast, e.Saturation
	if contrast == 0 {
		contrast = 1
	}
	if saturation == 0 {
		saturation = 1
	}
	if e.Brightness != 0 || contrast != 1 || saturation != 1 {
		video = append(video, fmt.Sprintf("eq=brightness=%s:contrast=%s:saturation=%s",
			fmtFloat(e.Brightness), fmtFloat(contrast), fmtFloat(saturation)))
	}
	return video, audio
}

// atempoChain splits a speed factor into atempo stages within [0.5, 2]
func atempoChain(speed float64) []string {
	var chain []string
	for speed > 2 {
		chain = append(chain, "atempo=2")
		speed /= 2
	}
	for speed < 0.5 {
		chain = append(chain, "atempo=0.5")
		speed /= 0.5
	}
	return append(chain, "atempo="+fmtFloat(speed))
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
