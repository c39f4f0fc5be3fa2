package ffmpeg

import (
	"io"
	"time"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath     string
	Duration     time.Duration
	Width        int
	Height       int
	FPS          float64
	FrameCount   int
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
	SampleRate   int
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	FPS        float64
	Bitrate    string
	Time       string
	OutTime    time.Duration
	Speed      string
	Percentage float64
	Done       bool
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)

	// Output is removed when the run fails or is cancelled
	Output string

	// Stdin feeds pipe:0; Stdout, when set, receives raw pipe:1 bytes
	// instead of line-scanned logging.
	Stdin  io.Reader
	Stdout io.Writer
}

// Default encoding settings
const (
	DefaultCRF          = 23
	DefaultPreset       = "medium"
	DefaultVideoCodec   = "libx264"
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
	DefaultPixelFormat  = "yuv420p"
)

// RenderOptions configures single-input render operations
type RenderOptions struct {
	Input        string
	Output       string
	Subtitles    string
	ForceStyle   string
	Filters      []string
	AudioFilters []string
	CopyAudio    bool
	VideoCodec   string
	AudioCodec   string
	CRF          int
	Preset       string
	Width        int
	Height       int
	FPS          float64
	Scale        string
	ProgressFunc ProgressFunc
	CustomArgs   []string
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)
