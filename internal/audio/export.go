package audio

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/keagan/highlightreel/internal/ffmpeg"
	"github.com/keagan/highlightreel/pkg/util"
)

// Extractor writes a segment of a file's audio to disk
type Extractor interface {
	ExtractAudio(ctx context.Context, input, output string, format ffmpeg.AudioFormat, segment ffmpeg.AudioSegment) error
}

// ExportApplause writes each applause interval of input as a mono WAV file
// named applause_<n>.wav under outputDir and returns the written paths
func (s *Segmenter) ExportApplause(ctx context.Context, extractor Extractor, input, outputDir string, intervals []Interval) ([]string, error) {
	if len(intervals) == 0 {
		return nil, nil
	}
	if err := util.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create applause directory: %w", err)
	}

	format := ffmpeg.DefaultWAVFormat(s.opts.SampleRate)
	paths := make([]string, 0, len(intervals))
	for i, iv := range intervals {
		output := filepath.Join(outputDir, fmt.Sprintf("applause_%d.wav", i+1))
		segment := ffmpeg.AudioSegment{
			Start:    util.Seconds(iv.Start),
			Duration: util.Seconds(iv.Duration()),
		}
		if err := extractor.ExtractAudio(ctx, input, output, format, segment); err != nil {
			return paths, fmt.Errorf("failed to export applause %d %s: %w", i+1, iv, err)
		}
		paths = append(paths, output)
	}

	s.logger.Info().
		Int("segments", len(paths)).
		Str("dir", outputDir).
		Msg("applause audio exported")
	return paths, nil
}
