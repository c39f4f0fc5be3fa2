package clips

import (
	"context"
	"image"
	"time"

	"github.com/keagan/highlightreel/internal/ffmpeg"
)

// Clip is one extracted highlight. Failed clips carry Err and no file.
type Clip struct {
	Index     int     `json:"index"`
	Path      string  `json:"path,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Frames    int     `json:"frames"`
	Err       error   `json:"-"`
}

// Duration returns the clip length in seconds
func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// OK reports whether the clip was written
func (c Clip) OK() bool {
	return c.Err == nil && c.Path != ""
}

// Paths returns the files of the successfully extracted clips, in order
func Paths(clips []Clip) []string {
	paths := make([]string, 0, len(clips))
	for _, c := range clips {
		if c.OK() {
			paths = append(paths, c.Path)
		}
	}
	return paths
}

// Transcoder is the subset of the ffmpeg executor used for extraction
type Transcoder interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	ExtractClip(ctx context.Context, input string, opts ffmpeg.ClipOptions) error
	StreamFrames(ctx context.Context, input string, opts ffmpeg.StreamOptions, fn ffmpeg.FrameFunc) error
	StartEncoder(ctx context.Context, opts ffmpeg.EncoderOptions) (ffmpeg.FrameSink, error)
}

// Thumbnailer writes a still image of a video at a timestamp
type Thumbnailer interface {
	GenerateThumbnail(ctx context.Context, input, output string, timestamp time.Duration, width int) error
}

// Annotator draws face boxes and emotion labels onto a frame
type Annotator interface {
	DetectAndDraw(ctx context.Context, frame image.Image) (*image.RGBA, error)
}
