package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/rs/zerolog"
)

// stderrTailLines bounds the diagnostic output attached to a TranscodeError
const stderrTailLines = 20

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
	preset      string
	crf         int
	tempDir     string
}

// Options configures an Executor
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
	Preset      string
	CRF         int
	TempDir     string
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}

	ffmpegPath, err := exec.LookPath(opts.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath(opts.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	if opts.Preset == "" {
		opts.Preset = DefaultPreset
	}
	if opts.CRF == 0 {
		opts.CRF = DefaultCRF
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
		preset:      opts.Preset,
		crf:         opts.CRF,
		tempDir:     opts.TempDir,
	}, nil
}

// Run executes ffmpeg with the given arguments and streams progress.
// A non-zero exit yields a TranscodeError carrying the tail of stderr;
// on any failure opts.Output is removed.
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	// Build args with threads BEFORE other arguments
	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "info"}

	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}

	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var stdout io.ReadCloser
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	} else {
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to create stdout pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := newTailBuffer(stderrTailLines)

	var wg sync.WaitGroup

	// Stream stderr (progress + logs)
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts.ProgressHandler, func(line string) {
			if !isProgressLine(line) {
				tail.Add(line)
			}
			if opts.LogHandler != nil {
				opts.LogHandler(line)
			}
		})
	}()

	// Stream stdout
	if stdout != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scanner := bufio.NewScanner(stdout)
			for scanner.Scan() {
				if opts.LogHandler != nil {
					opts.LogHandler(scanner.Text())
				}
			}
		}()
	}

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if opts.Output != "" {
			removePartial(e.logger, opts.Output)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return apperrors.ErrTranscode(exitCode, tail.String(), err)
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// streamOutput parses ffmpeg output and calls handlers
func (e *Executor) streamOutput(r io.Reader, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesOrCR)

	progressData := &Progress{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if logHandler != nil {
			logHandler(line)
		}

		if parseProgressLine(line, progressData) && progressHandler != nil {
			progressHandler(progressData)
			progressData = &Progress{}
		}
	}
}

// scanLinesOrCR splits on \n or \r; ffmpeg rewrites its stats line with \r
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// removePartial deletes an output file left behind by a failed run
func removePartial(logger zerolog.Logger, path string) {
	if err := os.Remove(path); err == nil {
		logger.Debug().Str("output", path).Msg("removed partial output")
	}
}

// tailBuffer keeps the last n lines written to it
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
