package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/pkg/util"
)

// ProbeVideo extracts metadata from a video file.
// Unreadable input yields a DecodeError.
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.ErrDecode(filePath, fmt.Errorf("ffprobe failed: %w", err))
	}

	info, err := parseProbeOutput(filePath, output)
	if err != nil {
		return nil, apperrors.ErrDecode(filePath, err)
	}
	return info, nil
}

// ProbeDuration returns the container duration of a media file.
// Any failure is reported as a DurationProbeError.
func (e *Executor) ProbeDuration(ctx context.Context, filePath string) (time.Duration, error) {
	info, err := e.ProbeVideo(ctx, filePath)
	if err != nil {
		return 0, apperrors.ErrDurationProbe(filePath, err)
	}
	if info.Duration <= 0 {
		return 0, apperrors.ErrDurationProbe(filePath, fmt.Errorf("no duration reported"))
	}
	return info.Duration, nil
}

func parseProbeOutput(filePath string, output []byte) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{
		FilePath: filePath,
	}

	// Parse duration
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = util.Seconds(dur)
	}

	// Parse bitrate
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	hasVideo := false
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if hasVideo {
				continue
			}
			hasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName

			// Prefer avg_frame_rate; r_frame_rate can report field rate
			if fps := util.ParseFrameRate(stream.AvgFrameRate); fps > 0 {
				info.FPS = fps
			} else if stream.RFrameRate != "" {
				info.FPS = util.ParseFrameRate(stream.RFrameRate)
			}
			if n, err := strconv.Atoi(stream.NbFrames); err == nil {
				info.FrameCount = n
			}
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			if br, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				info.AudioBitrate = br
			}
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = sr
			}
		}
	}

	if !hasVideo && !info.HasAudio {
		return nil, fmt.Errorf("no audio or video streams found")
	}

	if info.FrameCount == 0 && info.FPS > 0 && info.Duration > 0 {
		info.FrameCount = int(info.Duration.Seconds()*info.FPS + 0.5)
	}

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		BitRate      string `json:"bit_rate"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
}
