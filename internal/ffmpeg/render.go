package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Render performs a single-input render with video and audio filter chains
func (e *Executor) Render(ctx context.Context, opts RenderOptions) error {
	if err := validateRenderOptions(opts); err != nil {
		return fmt.Errorf("invalid render options: %w", err)
	}

	e.logger.Info().
		Str("input", opts.Input).
		Str("output", opts.Output).
		Int("video_filters", len(opts.Filters)).
		Int("audio_filters", len(opts.AudioFilters)).
		Msg("starting render")

	args := []string{"-i", opts.Input}

	// Build filter chain
	filters := buildFilterChain(opts)
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	if len(opts.AudioFilters) > 0 {
		args = append(args, "-af", strings.Join(opts.AudioFilters, ","))
	}

	args = append(args, e.videoEncodeArgs(opts.VideoCodec, opts.CRF, opts.Preset)...)

	if opts.CopyAudio && len(opts.AudioFilters) == 0 {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, e.audioEncodeArgs(opts.AudioCodec)...)
	}

	// FPS conversion
	if opts.FPS > 0 {
		args = append(args, "-r", fmt.Sprintf("%.2f", opts.FPS))
	}

	// Custom arguments
	if len(opts.CustomArgs) > 0 {
		args = append(args, opts.CustomArgs...)
	}

	args = append(args, "-movflags", "+faststart", opts.Output)

	runOpts := RunOptions{
		Args:            args,
		Output:          opts.Output,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("render completed")
	return nil
}

// ApplySubtitles burns an SRT file into the video with an optional ASS force_style
func (e *Executor) ApplySubtitles(ctx context.Context, input, subtitles, output, forceStyle string, progressFunc ProgressFunc) error {
	if subtitles == "" {
		return fmt.Errorf("subtitles path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("subtitles", subtitles).
		Str("output", output).
		Msg("applying subtitles")

	return e.Render(ctx, RenderOptions{
		Input:        input,
		Output:       output,
		Subtitles:    subtitles,
		ForceStyle:   forceStyle,
		CopyAudio:    true,
		ProgressFunc: progressFunc,
	})
}

// validateRenderOptions validates the render options
func validateRenderOptions(opts RenderOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	if opts.FPS < 0 {
		return fmt.Errorf("FPS cannot be negative")
	}
	return nil
}

// buildFilterChain constructs the video filter chain from render options
func buildFilterChain(opts RenderOptions) []string {
	var filters []string

	// Scaling
	if opts.Width > 0 && opts.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height))
	} else if opts.Scale != "" {
		filters = append(filters, fmt.Sprintf("scale=%s", opts.Scale))
	}

	// Subtitles
	if opts.Subtitles != "" {
		subtitleFilter := fmt.Sprintf("subtitles=%s", escapeSubtitlePath(opts.Subtitles))
		if opts.ForceStyle != "" {
			subtitleFilter += fmt.Sprintf(":force_style='%s'", opts.ForceStyle)
		}
		filters = append(filters, subtitleFilter)
	}

	// Custom filters
	filters = append(filters, opts.Filters...)

	return filters
}

// escapeSubtitlePath escapes the subtitle file path for ffmpeg filters
func escapeSubtitlePath(path string) string {
	// Convert to absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	// Windows: Convert backslashes to forward slashes
	if runtime.GOOS == "windows" {
		absPath = strings.ReplaceAll(absPath, "\\", "/")
	}

	// Escape special characters for ffmpeg filter (covers the drive letter colon)
	escaped := strings.ReplaceAll(absPath, ":", "\\:")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")

	return escaped
}
