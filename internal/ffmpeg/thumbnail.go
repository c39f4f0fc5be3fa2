package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/highlightreel/pkg/util"
)

// GenerateThumbnail creates a JPEG still at a specific timestamp
func (e *Executor) GenerateThumbnail(ctx context.Context, input, output string, timestamp time.Duration, width int) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Dur("timestamp", timestamp).
		Msg("generating thumbnail")

	args := []string{
		"-ss", util.FormatDuration(timestamp),
		"-i", input,
		"-frames:v", "1",
	}
	if width > 0 {
		args = append(args, "-vf", NewFilterBuilder().Custom(fmt.Sprintf("scale=%d:-2", width)).Build())
	}
	args = append(args,
		"-q:v", "2", // high quality JPEG
		output,
	)

	opts := RunOptions{
		Args:   args,
		Output: output,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("thumbnail generation")
		},
	}

	return e.Run(ctx, opts)
}
