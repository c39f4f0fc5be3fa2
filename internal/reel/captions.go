package reel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/overlays"
	"github.com/keagan/highlightreel/pkg/util"
)

// Caption is one subtitle cue, times in seconds
type Caption struct {
	Text  string  `json:"text" yaml:"text" validate:"required"`
	Start float64 `json:"start" yaml:"start" validate:"gte=0"`
	End   float64 `json:"end" yaml:"end" validate:"gtfield=Start"`
}

// CaptionStyle is rendered as an ASS force_style
type CaptionStyle struct {
	FontName     string
	FontSize     int
	FontColor    string // #RRGGBB
	OutlineWidth int
}

// DefaultCaptionStyle returns white 24pt captions with a thin outline
func DefaultCaptionStyle() CaptionStyle {
	return CaptionStyle{FontSize: 24, FontColor: "#FFFFFF", OutlineWidth: 1}
}

// ForceStyle renders the style for the subtitles filter
func (s CaptionStyle) ForceStyle() string {
	var parts []string
	if s.FontName != "" {
		parts = append(parts, "FontName="+s.FontName)
	}
	if s.FontSize > 0 {
		parts = append(parts, fmt.Sprintf("FontSize=%d", s.FontSize))
	}
	if s.FontColor != "" {
		if c, err := overlays.ParseHexColor(s.FontColor); err == nil {
			// ASS colours are &HAABBGGRR with inverted alpha
			parts = append(parts, fmt.Sprintf("PrimaryColour=&H%02X%02X%02X%02X", 255-c.A, c.B, c.G, c.R))
		}
	}
	if s.OutlineWidth > 0 {
		parts = append(parts, fmt.Sprintf("Outline=%d", s.OutlineWidth))
	}
	return strings.Join(parts, ",")
}

// writeSRT writes captions as numbered SRT cues
func writeSRT(w io.Writer, captions []Caption) error {
	bw := bufio.NewWriter(w)
	for i, c := range captions {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1,
			util.FormatSRTTimestamp(util.Seconds(c.Start)),
			util.FormatSRTTimestamp(util.Seconds(c.End)),
			strings.TrimSpace(c.Text))
	}
	return bw.Flush()
}

// AddCaptions burns captions into input. The temporary SRT file is removed
// whether or not the render succeeds.
func (a *Assembler) AddCaptions(ctx context.Context, input, output string, captions []Caption, style CaptionStyle) (string, error) {
	if len(captions) == 0 {
		return "", apperrors.ErrInvalidArgument("no captions")
	}
	for i := range captions {
		if err := a.validate.Struct(captions[i]); err != nil {
			return "", apperrors.ErrInvalidArgument(fmt.Sprintf("caption %d: %v", i+1, err))
		}
	}

	f, err := util.TempFile(a.tempDir, "highlightreel-captions-", ".srt")
	if err != nil {
		return "", fmt.Errorf("failed to create subtitle file: %w", err)
	}
	srt := f.Name()
	defer util.CleanupFiles(srt)

	if err := writeSRT(f, captions); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write subtitle file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write subtitle file: %w", err)
	}

	a.logger.Info().
		Str("input", input).
		Int("captions", len(captions)).
		Msg("adding captions")

	if err := a.tc.ApplySubtitles(ctx, input, srt, output, style.ForceStyle(), nil); err != nil {
		return "", err
	}
	return output, nil
}
