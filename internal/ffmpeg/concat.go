package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs       []string
	Output       string
	ReEncode     bool
	VideoCodec   string
	AudioCodec   string
	CRF          int
	ProgressFunc ProgressFunc
}

// Concat merges multiple video files into one using the concat demuxer
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Bool("re_encode", opts.ReEncode).
		Msg("concatenating videos")

	// Create temporary concat file list
	concatFile, err := e.createConcatFile(opts.Inputs)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(concatFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
	}

	if opts.ReEncode {
		args = append(args, e.videoEncodeArgs(opts.VideoCodec, opts.CRF, "")...)
		args = append(args, e.audioEncodeArgs(opts.AudioCodec)...)
		args = append(args, "-movflags", "+faststart")
	} else {
		args = append(args, "-c", "copy")
	}

	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		Output:          opts.Output,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("concatenating")
		},
	}

	return e.Run(ctx, runOpts)
}

// createConcatFile generates a temporary file list for ffmpeg concat
func (e *Executor) createConcatFile(inputs []string) (string, error) {
	tmpFile, err := os.CreateTemp(e.tempDir, "highlightreel-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if err := writeConcatList(tmpFile, inputs); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

func writeConcatList(w io.StringWriter, inputs []string) error {
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		// single quotes inside a quoted entry are written as '\''
		quoted := strings.ReplaceAll(absPath, "'", `'\''`)
		if _, err := w.WriteString(fmt.Sprintf("file '%s'\n", quoted)); err != nil {
			return err
		}
	}
	return nil
}
