package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"strconv"
	"time"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/pkg/util"
)

// FrameFunc receives decoded frames in presentation order; index is absolute
// within the source. Returning an error stops decoding.
type FrameFunc func(index int, frame *image.RGBA) error

// StreamOptions selects the frame range to decode
type StreamOptions struct {
	StartFrame int
	Frames     int // 0 means until the end of the stream
	FPS        float64
	Width      int
	Height     int
}

// StreamFrames decodes video frames as RGBA and hands each to fn
func (e *Executor) StreamFrames(ctx context.Context, input string, opts StreamOptions, fn FrameFunc) error {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		info, err := e.ProbeVideo(ctx, input)
		if err != nil {
			return err
		}
		opts.Width, opts.Height, opts.FPS = info.Width, info.Height, info.FPS
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return apperrors.ErrDecode(input, fmt.Errorf("no video stream"))
	}

	var args []string
	if opts.StartFrame > 0 {
		args = append(args, "-ss", util.FormatDuration(seekTime(opts.StartFrame, opts.FPS)))
	}
	args = append(args, "-i", input)
	if opts.Frames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(opts.Frames))
	}
	args = append(args, "-an", "-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1")

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		err := e.Run(streamCtx, RunOptions{
			Args:   args,
			Stdout: pw,
			LogHandler: func(line string) {
				e.logger.Debug().Str("ffmpeg", line).Msg("frame decode")
			},
		})
		pw.CloseWithError(err)
		done <- err
	}()

	var fnErr error
	index := opts.StartFrame
	for {
		frame := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
		// EOF, a truncated trailing frame or a failed run all end the stream;
		// the run error is reported below
		if _, err := io.ReadFull(pr, frame.Pix); err != nil {
			break
		}
		if err := fn(index, frame); err != nil {
			fnErr = err
			break
		}
		index++
	}

	if fnErr != nil {
		cancel()
	}
	pr.CloseWithError(io.ErrClosedPipe)
	runErr := <-done

	switch {
	case fnErr != nil:
		return fnErr
	case ctx.Err() != nil:
		return ctx.Err()
	case runErr != nil:
		return apperrors.ErrDecode(input, runErr)
	}

	e.logger.Debug().
		Str("input", input).
		Int("frames", index-opts.StartFrame).
		Msg("frame stream complete")
	return nil
}

// FrameSink consumes RGBA frames for encoding
type FrameSink interface {
	WriteFrame(frame *image.RGBA) error
	Close() error
	Abort()
}

// EncoderOptions configures a raw-frame encoder
type EncoderOptions struct {
	Output        string
	Width         int
	Height        int
	FPS           float64
	AudioSource   string
	AudioStart    time.Duration
	AudioDuration time.Duration
	VideoCodec    string
	CRF           int
	Preset        string
}

// Encoder writes RGBA frames to an ffmpeg process reading rawvideo on stdin
type Encoder struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error
	width  int
	height int
	closed bool
}

// StartEncoder launches ffmpeg encoding frames from stdin into opts.Output,
// muxing audio from AudioSource when set.
func (e *Executor) StartEncoder(ctx context.Context, opts EncoderOptions) (FrameSink, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid encoder geometry %dx%d@%f", opts.Width, opts.Height, opts.FPS)
	}

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.FormatFloat(opts.FPS, 'f', -1, 64),
		"-i", "pipe:0",
	}
	if opts.AudioSource != "" {
		if opts.AudioStart > 0 {
			args = append(args, "-ss", util.FormatDuration(opts.AudioStart))
		}
		if opts.AudioDuration > 0 {
			args = append(args, "-t", util.FormatDuration(opts.AudioDuration))
		}
		args = append(args, "-i", opts.AudioSource, "-map", "0:v", "-map", "1:a?")
	}
	args = append(args, e.videoEncodeArgs(opts.VideoCodec, opts.CRF, opts.Preset)...)
	if opts.AudioSource != "" {
		args = append(args, e.audioEncodeArgs("")...)
		args = append(args, "-shortest")
	}
	args = append(args, "-movflags", "+faststart", opts.Output)

	encCtx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	enc := &Encoder{
		pw:     pw,
		cancel: cancel,
		done:   make(chan error, 1),
		width:  opts.Width,
		height: opts.Height,
	}

	go func() {
		err := e.Run(encCtx, RunOptions{
			Args:   args,
			Output: opts.Output,
			Stdin:  pr,
			LogHandler: func(line string) {
				e.logger.Debug().Str("ffmpeg", line).Msg("frame encode")
			},
		})
		// unblock writers if ffmpeg exited early
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.CloseWithError(io.ErrClosedPipe)
		}
		enc.done <- err
	}()

	e.logger.Debug().Str("output", opts.Output).Msg("encoder started")
	return enc, nil
}

// WriteFrame sends one frame to the encoder
func (enc *Encoder) WriteFrame(frame *image.RGBA) error {
	if enc.closed {
		return fmt.Errorf("encoder closed")
	}
	b := frame.Bounds()
	if b.Dx() != enc.width || b.Dy() != enc.height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d", b.Dx(), b.Dy(), enc.width, enc.height)
	}

	rowBytes := enc.width * 4
	if frame.Stride == rowBytes {
		_, err := enc.pw.Write(frame.Pix[:rowBytes*enc.height])
		return err
	}
	for y := 0; y < enc.height; y++ {
		offset := y * frame.Stride
		if _, err := enc.pw.Write(frame.Pix[offset : offset+rowBytes]); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the stream and waits for ffmpeg to finish
func (enc *Encoder) Close() error {
	if enc.closed {
		return nil
	}
	enc.closed = true
	enc.pw.Close()
	err := <-enc.done
	enc.cancel()
	return err
}

// Abort kills the encoder; the partial output is removed
func (enc *Encoder) Abort() {
	if enc.closed {
		return
	}
	enc.closed = true
	enc.cancel()
	enc.pw.CloseWithError(context.Canceled)
	<-enc.done
}
