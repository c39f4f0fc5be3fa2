package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/pkg/util"
)

// AudioFormat defines audio extraction format options
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
	Bitrate    string
}

// DefaultWAVFormat returns mono 16-bit PCM at the analysis sample rate
func DefaultWAVFormat(sampleRate int) AudioFormat {
	return AudioFormat{
		Codec:      "pcm_s16le",
		SampleRate: sampleRate,
		Channels:   1, // mono
		Bitrate:    "",
	}
}

// AudioSegment selects part of the input; a zero Duration means to the end
type AudioSegment struct {
	Start    time.Duration
	Duration time.Duration
}

// ExtractAudio extracts an audio stream, or a segment of it, to a separate file
func (e *Executor) ExtractAudio(ctx context.Context, input, output string, format AudioFormat, segment AudioSegment) error {
	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Int("sample_rate", format.SampleRate).
		Dur("start", segment.Start).
		Dur("duration", segment.Duration).
		Msg("extracting audio")

	var args []string
	if segment.Start > 0 {
		args = append(args, "-ss", util.FormatDuration(segment.Start))
	}
	args = append(args, "-i", input)
	if segment.Duration > 0 {
		args = append(args, "-t", util.FormatDuration(segment.Duration))
	}
	args = append(args,
		"-vn", // no video
		"-acodec", format.Codec,
		"-ar", fmt.Sprintf("%d", format.SampleRate),
		"-ac", fmt.Sprintf("%d", format.Channels),
	)

	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}

	args = append(args, output)

	opts := RunOptions{
		Args:   args,
		Output: output,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio extraction")
		},
	}

	return e.Run(ctx, opts)
}

// DecodeAudio decodes the first audio stream to mono float32 samples at sampleRate.
// Unreadable input yields a DecodeError; input without an audio stream yields no samples.
func (e *Executor) DecodeAudio(ctx context.Context, input string, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	e.logger.Info().
		Str("input", input).
		Int("sample_rate", sampleRate).
		Msg("decoding audio")

	info, err := e.ProbeVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio {
		e.logger.Warn().Str("input", input).Msg("no audio stream")
		return nil, nil
	}

	var pcm bytes.Buffer
	opts := RunOptions{
		Args: []string{
			"-i", input,
			"-vn",
			"-ac", "1",
			"-ar", fmt.Sprintf("%d", sampleRate),
			"-f", "f32le",
			"-acodec", "pcm_f32le",
			"pipe:1",
		},
		Stdout: &pcm,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio decode")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.ErrDecode(input, err)
	}

	samples := decodeFloat32LE(pcm.Bytes())

	e.logger.Debug().
		Int("samples", len(samples)).
		Float64("seconds", float64(len(samples))/float64(sampleRate)).
		Msg("audio decoded")

	return samples, nil
}

// decodeFloat32LE converts little-endian float32 PCM; a trailing partial sample is dropped
func decodeFloat32LE(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
