package clips

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/keagan/highlightreel/internal/ai"
	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/internal/ffmpeg"
	"github.com/keagan/highlightreel/internal/highlight"
	"github.com/keagan/highlightreel/internal/overlays"
	"github.com/keagan/highlightreel/pkg/util"
	"github.com/rs/zerolog"
)

// Options configures clip extraction
type Options struct {
	Thumbnails     bool
	ThumbnailWidth int
	VideoCodec     string
	CRF            int
	Preset         string
	Style          overlays.Style
}

// DefaultOptions returns the standard extraction settings
func DefaultOptions() Options {
	return Options{
		Thumbnails:     true,
		ThumbnailWidth: 480,
		Style:          overlays.DefaultStyle(),
	}
}

// Extractor cuts highlight intervals out of a source video
type Extractor struct {
	logger    zerolog.Logger
	tc        Transcoder
	thumbs    Thumbnailer
	annotator Annotator
	opts      Options
}

// NewExtractor creates an extractor. thumbs and annotator may be nil; without
// an annotator visualized clips only get the duration badge.
func NewExtractor(logger zerolog.Logger, tc Transcoder, thumbs Thumbnailer, annotator Annotator, opts Options) *Extractor {
	if opts.Style.Thickness == 0 {
		opts.Style = overlays.DefaultStyle()
	}
	return &Extractor{
		logger:    logger.With().Str("component", "clip-extractor").Logger(),
		tc:        tc,
		thumbs:    thumbs,
		annotator: annotator,
		opts:      opts,
	}
}

// frameRange converts an interval to [start, start+count) frames
func frameRange(iv highlight.Interval, fps float64) (start, count int) {
	start = int(math.Round(iv.Start * fps))
	end := int(math.Round(iv.End * fps))
	return start, end - start
}

// ClipName returns the file name of the n-th clip (1-based)
func ClipName(n int) string {
	return fmt.Sprintf("highlight_%d.mp4", n)
}

// BadgeText is the info line drawn on visualized clips
func BadgeText(iv highlight.Interval) string {
	text := fmt.Sprintf("Duration: %.1fs", iv.Duration())
	if iv.HasApplause {
		text += " | Applause"
	}
	return text
}

// Extract writes one clip per highlight into outputDir. The result always has
// one entry per highlight in the same order; failed entries carry Err and
// the returned error joins every clip failure.
func (x *Extractor) Extract(ctx context.Context, video string, highlights []highlight.Interval, outputDir string, addVisualization bool) ([]Clip, error) {
	if err := util.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	info, err := x.tc.ProbeVideo(ctx, video)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}
	if info.FPS <= 0 {
		return nil, apperrors.ErrDecode(video, fmt.Errorf("no frame rate"))
	}

	x.logger.Info().
		Str("video", video).
		Int("highlights", len(highlights)).
		Bool("visualization", addVisualization).
		Str("output_dir", outputDir).
		Msg("extracting highlight clips")

	result := make([]Clip, len(highlights))
	var errs []error

	for i, iv := range highlights {
		n := i + 1
		start, count := frameRange(iv, info.FPS)
		clip := Clip{
			Index:  n,
			Start:  iv.Start,
			End:    iv.End,
			Frames: count,
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if count <= 0 {
			clip.Err = apperrors.ErrClipExtraction(n, fmt.Errorf("empty frame range %d+%d", start, count))
		} else {
			path := filepath.Join(outputDir, ClipName(n))
			var thumb string
			if addVisualization {
				thumb, err = x.extractVisualized(ctx, video, info, iv, start, count, path)
			} else {
				err = x.tc.ExtractClip(ctx, video, ffmpeg.ClipOptions{
					StartFrame: start,
					Frames:     count,
					FPS:        info.FPS,
					Output:     path,
					VideoCodec: x.opts.VideoCodec,
					CRF:        x.opts.CRF,
					Preset:     x.opts.Preset,
				})
				if err == nil {
					err = x.verifyClip(ctx, path)
				}
				if err == nil {
					thumb = x.thumbnail(ctx, path, count, info.FPS)
				}
			}

			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				os.Remove(path)
				clip.Err = apperrors.ErrClipExtraction(n, err)
			} else {
				clip.Path = path
				clip.Thumbnail = thumb
			}
		}

		if clip.Err != nil {
			x.logger.Error().Err(clip.Err).Int("clip", n).Str("interval", iv.String()).Msg("clip extraction failed")
			errs = append(errs, clip.Err)
		} else {
			x.logger.Info().
				Int("clip", n).
				Str("path", clip.Path).
				Int("frames", count).
				Msg("clip extracted")
		}
		result[i] = clip
	}

	return result, errors.Join(errs...)
}

// extractVisualized decodes the clip's frames, draws face annotations and the
// duration badge, and re-encodes them with the source audio. It returns the
// thumbnail path, if one was written.
func (x *Extractor) extractVisualized(ctx context.Context, video string, info *ffmpeg.VideoInfo, iv highlight.Interval, start, count int, output string) (string, error) {
	enc, err := x.tc.StartEncoder(ctx, ffmpeg.EncoderOptions{
		Output:        output,
		Width:         info.Width,
		Height:        info.Height,
		FPS:           info.FPS,
		AudioSource:   audioSource(video, info),
		AudioStart:    util.Seconds(float64(start) / info.FPS),
		AudioDuration: util.Seconds(float64(count) / info.FPS),
		VideoCodec:    x.opts.VideoCodec,
		CRF:           x.opts.CRF,
		Preset:        x.opts.Preset,
	})
	if err != nil {
		return "", err
	}

	badge := BadgeText(iv)
	sampleEvery := int(math.Max(1, math.Round(info.FPS)))
	var best *image.RGBA
	bestScore := -1.0
	written := 0

	err = x.tc.StreamFrames(ctx, video, ffmpeg.StreamOptions{
		StartFrame: start,
		Frames:     count,
		FPS:        info.FPS,
		Width:      info.Width,
		Height:     info.Height,
	}, func(index int, frame *image.RGBA) error {
		if x.opts.Thumbnails && (index-start)%sampleEvery == 0 {
			if a := ai.ScoreAesthetics(frame); a.Score > bestScore {
				best, bestScore = cloneRGBA(frame), a.Score
			}
		}

		out := frame
		if x.annotator != nil {
			drawn, err := x.annotator.DetectAndDraw(ctx, frame)
			switch {
			case err == nil:
				out = drawn
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				x.logger.Warn().Err(err).Int("frame", index).Msg("face annotation failed")
			}
		}
		overlays.DrawBadge(out, badge, x.opts.Style)
		if err := enc.WriteFrame(out); err != nil {
			return err
		}
		written++
		return nil
	})
	if err == nil && written == 0 {
		err = fmt.Errorf("no frames decoded from frame %d", start)
	}
	if err != nil {
		enc.Abort()
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	if best == nil {
		return "", nil
	}
	thumb := thumbnailPath(output)
	if err := writeJPEG(thumb, best); err != nil {
		x.logger.Warn().Err(err).Str("path", thumb).Msg("failed to write thumbnail")
		return "", nil
	}
	return thumb, nil
}

// verifyClip fails when the written clip holds no video frames, as happens
// when the seek lands past the end of the source
func (x *Extractor) verifyClip(ctx context.Context, path string) error {
	info, err := x.tc.ProbeVideo(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to probe clip: %w", err)
	}
	if info.FrameCount <= 0 {
		return fmt.Errorf("clip has no video frames")
	}
	return nil
}

// thumbnail grabs the middle frame of a plain clip; failures only lose the thumbnail
func (x *Extractor) thumbnail(ctx context.Context, clip string, frames int, fps float64) string {
	if !x.opts.Thumbnails || x.thumbs == nil {
		return ""
	}
	thumb := thumbnailPath(clip)
	mid := util.Seconds(float64(frames) / fps / 2)
	if err := x.thumbs.GenerateThumbnail(ctx, clip, thumb, mid, x.opts.ThumbnailWidth); err != nil {
		x.logger.Warn().Err(err).Str("clip", clip).Msg("failed to generate thumbnail")
		return ""
	}
	return thumb
}

func audioSource(video string, info *ffmpeg.VideoInfo) string {
	if !info.HasAudio {
		return ""
	}
	return video
}

func thumbnailPath(clip string) string {
	return strings.TrimSuffix(clip, filepath.Ext(clip)) + ".jpg"
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
