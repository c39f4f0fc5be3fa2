package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/keagan/highlightreel/pkg/util"
	"github.com/rs/zerolog"
)

// TestResults stores results from all tests for final summary
type TestResults struct {
	ExecutorPath  string
	ProbeResults  *VideoInfo
	ClipCreated   bool
	FramesDecoded int
	AudioSamples  int
	Errors        []string
}

var globalResults = &TestResults{
	Errors: make([]string, 0),
}

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// generateTestVideo renders a lavfi test pattern, optionally with a sine tone
func generateTestVideo(t *testing.T, dir string, seconds int, withAudio bool) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("test_%ds_%v.mp4", seconds, withAudio))
	args := []string{"-y", "-f", "lavfi", "-i", fmt.Sprintf("testsrc=duration=%d:size=320x240:rate=30", seconds)}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=1000:duration=%d", seconds), "-shortest")
	}
	args = append(args, "-pix_fmt", "yuv420p", path)
	if out, err := exec.Command("ffmpeg", args...).CombinedOutput(); err != nil {
		t.Skipf("could not generate test video: %v\n%s", err, out)
	}
	return path
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).Level(zerolog.InfoLevel)
	e, err := New(logger, Options{Threads: 2, TempDir: t.TempDir()})
	if err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("Executor creation failed: %v", err))
		t.Fatalf("failed to create executor: %v", err)
	}
	return e
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	e := newTestExecutor(t)
	if e.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if e.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}
	if e.preset != DefaultPreset || e.crf != DefaultCRF {
		t.Errorf("expected default preset/crf, got %s/%d", e.preset, e.crf)
	}

	globalResults.ExecutorPath = e.ffmpegPath
	t.Logf("ffmpeg: %s", e.ffmpegPath)
	t.Logf("ffprobe: %s", e.ffprobePath)
}

func TestExecutorMissingBinary(t *testing.T) {
	_, err := New(zerolog.Nop(), Options{FFmpegPath: "definitely-not-ffmpeg-binary"})
	if err == nil {
		t.Fatal("expected error for missing ffmpeg binary")
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		complete bool
		outTime  time.Duration
		frame    int
		done     bool
	}{
		{
			name:     "progress block",
			lines:    []string{"frame=120", "fps=30.0", "out_time_us=4000000", "speed=1.5x", "progress=continue"},
			complete: true,
			outTime:  4 * time.Second,
			frame:    120,
		},
		{
			name:     "progress end",
			lines:    []string{"out_time=00:00:10.500000", "progress=end"},
			complete: true,
			outTime:  10500 * time.Millisecond,
			done:     true,
		},
		{
			name:     "stats line",
			lines:    []string{"frame=  120 fps= 30 q=28.0 size=     256kB time=00:00:04.00 bitrate= 524.3kbits/s speed=1.2x"},
			complete: true,
			outTime:  4 * time.Second,
		},
		{
			name:     "incomplete block",
			lines:    []string{"frame=10", "out_time_ms=1000000"},
			complete: false,
			outTime:  time.Second,
			frame:    10,
		},
		{
			name:     "unrelated log line",
			lines:    []string{"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'x.mp4':"},
			complete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Progress{}
			complete := false
			for _, line := range tt.lines {
				complete = parseProgressLine(line, p)
			}
			if complete != tt.complete {
				t.Errorf("complete = %v, want %v", complete, tt.complete)
			}
			if p.OutTime != tt.outTime {
				t.Errorf("OutTime = %v, want %v", p.OutTime, tt.outTime)
			}
			if p.Frame != tt.frame {
				t.Errorf("Frame = %d, want %d", p.Frame, tt.frame)
			}
			if p.Done != tt.done {
				t.Errorf("Done = %v, want %v", p.Done, tt.done)
			}
		})
	}
}

func TestIsProgressLine(t *testing.T) {
	cases := map[string]bool{
		"out_time_us=100":                 true,
		"progress=end":                    true,
		"Stream #0:0: Video: h264":        false,
		"[libx264 @ 0x1] frame I:1 Avg=1": false,
		"no equals sign":                  false,
	}
	for line, want := range cases {
		if got := isProgressLine(line); got != want {
			t.Errorf("isProgressLine(%q) = %v, want %v", line, got, want)
		}
	}
}

func TestPercentTracker(t *testing.T) {
	var reported []int
	tracker := NewPercentTracker(10*time.Second, func(p int) {
		reported = append(reported, p)
	})

	tracker.Handle(&Progress{OutTime: 2 * time.Second})
	tracker.Handle(&Progress{OutTime: 1 * time.Second}) // regress, ignored
	tracker.Handle(&Progress{OutTime: 5 * time.Second})
	tracker.Handle(&Progress{OutTime: 5 * time.Second}) // duplicate, ignored
	tracker.Handle(&Progress{OutTime: 30 * time.Second})
	tracker.Complete()

	want := []int{20, 50, 100}
	if len(reported) != len(want) {
		t.Fatalf("reported %v, want %v", reported, want)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("reported[%d] = %d, want %d", i, reported[i], want[i])
		}
	}
	if tracker.Last() != 100 {
		t.Errorf("Last() = %d, want 100", tracker.Last())
	}
}

func TestPercentTrackerUnknownTotal(t *testing.T) {
	called := false
	tracker := NewPercentTracker(0, func(int) { called = true })
	tracker.Handle(&Progress{OutTime: time.Second})
	if called {
		t.Error("sink should not be called without a total")
	}
	if tracker.Last() != -1 {
		t.Errorf("Last() = %d, want -1", tracker.Last())
	}
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(3)
	for i := 1; i <= 5; i++ {
		tail.Add(fmt.Sprintf("line %d", i))
	}
	want := "line 3\nline 4\nline 5"
	if got := tail.String(); got != want {
		t.Errorf("tail = %q, want %q", got, want)
	}
}

func TestScanLinesOrCR(t *testing.T) {
	data := []byte("frame=1\rframe=2\nlast")
	var tokens []string
	for len(data) > 0 {
		advance, token, _ := scanLinesOrCR(data, true)
		if advance == 0 {
			break
		}
		tokens = append(tokens, string(token))
		data = data[advance:]
	}
	want := []string{"frame=1", "frame=2", "last"}
	if strings.Join(tokens, "|") != strings.Join(want, "|") {
		t.Errorf("tokens = %v, want %v", tokens, want)
	}
}

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(1920, 1080).FPS(30).Build()

	expected := "scale=1920:1080,fps=30.000000"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderChaining(t *testing.T) {
	filter := NewFilterBuilder().
		Fit(1280, 720).
		Format("yuv420p").
		Trim(4.0004).
		SetPTS("PTS-STARTPTS").
		Build()

	expected := "scale=1280:720:force_original_aspect_ratio=decrease," +
		"pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1,format=yuv420p," +
		"trim=duration=4,setpts=PTS-STARTPTS"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderAudio(t *testing.T) {
	filter := NewFilterBuilder().ATrim(2.5).AudioVolume(0.3).ASetPTS("PTS-STARTPTS").Build()
	expected := "atrim=duration=2.5,volume=0.3,asetpts=PTS-STARTPTS"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterGraph(t *testing.T) {
	g := NewFilterGraph().
		Chain([]string{"0:v"}, "scale=640:360", "v0").
		Chain([]string{"v0", "1:v"}, "xfade=transition=fade:duration=1:offset=4", "vout")

	want := "[0:v]scale=640:360[v0];[v0][1:v]xfade=transition=fade:duration=1:offset=4[vout]"
	if got := g.String(); got != want {
		t.Errorf("graph = %q, want %q", got, want)
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
}

func TestDrawTextOptions(t *testing.T) {
	got := DrawTextOptions{
		Text:     "It's 10:30 - 50%",
		FontSize: 36,
		Y:        "h-th-50",
		Box:      true,
		Enable:   "between(t,0,3)",
	}.String()

	want := "drawtext=text='It’s 10\\:30 - 50\\%':fontsize=36:fontcolor=white:" +
		"x=(w-text_w)/2:y=h-th-50:box=1:boxcolor=black@0.5:boxborderw=10:enable='between(t,0,3)'"
	if got != want {
		t.Errorf("drawtext =\n%q\nwant\n%q", got, want)
	}
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a:b", `a\:b`},
		{`back\slash`, `back\\slash`},
		{"don't", "don’t"},
		{"100%", `100\%`},
		{"two\nlines", "two lines"},
	}
	for _, tt := range tests {
		if got := EscapeText(tt.in); got != tt.want {
			t.Errorf("EscapeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildFilterChain(t *testing.T) {
	opts := RenderOptions{
		Width:      1280,
		Height:     720,
		Subtitles:  "/tmp/subs.srt",
		ForceStyle: "FontName=Arial,FontSize=24",
		Filters:    []string{"eq=brightness=0.1"},
	}
	filters := buildFilterChain(opts)
	if len(filters) != 3 {
		t.Fatalf("expected 3 filters, got %v", filters)
	}
	if filters[0] != "scale=1280:720" {
		t.Errorf("unexpected scale filter %q", filters[0])
	}
	if filters[1] != "subtitles=/tmp/subs.srt:force_style='FontName=Arial,FontSize=24'" {
		t.Errorf("unexpected subtitle filter %q", filters[1])
	}
	if filters[2] != "eq=brightness=0.1" {
		t.Errorf("unexpected custom filter %q", filters[2])
	}
}

func TestValidateRenderOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    RenderOptions
		wantErr bool
	}{
		{"valid", RenderOptions{Input: "in.mp4", Output: "out.mp4"}, false},
		{"missing input", RenderOptions{Output: "out.mp4"}, true},
		{"missing output", RenderOptions{Input: "in.mp4"}, true},
		{"crf out of range", RenderOptions{Input: "in.mp4", Output: "out.mp4", CRF: 60}, true},
		{"negative fps", RenderOptions{Input: "in.mp4", Output: "out.mp4", FPS: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRenderOptions(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRenderOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseProbeOutput(t *testing.T) {
	raw := []byte(`{
		"format": {"duration": "12.500000", "bit_rate": "800000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
			 "r_frame_rate": "60/1", "avg_frame_rate": "30000/1001", "nb_frames": "375"},
			{"codec_type": "audio", "codec_name": "aac", "bit_rate": "128000", "sample_rate": "48000"},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 100, "height": 100}
		]
	}`)

	info, err := parseProbeOutput("talk.mp4", raw)
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if math.Abs(info.FPS-29.97) > 0.01 {
		t.Errorf("FPS = %f, want ~29.97", info.FPS)
	}
	if info.Duration != 12500*time.Millisecond {
		t.Errorf("Duration = %v, want 12.5s", info.Duration)
	}
	if info.FrameCount != 375 {
		t.Errorf("FrameCount = %d, want 375", info.FrameCount)
	}
	if !info.HasAudio || info.AudioCodec != "aac" || info.SampleRate != 48000 {
		t.Errorf("unexpected audio info: %+v", info)
	}
	if info.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %s, want first video stream h264", info.VideoCodec)
	}
}

func TestParseProbeOutputDerivesFrameCount(t *testing.T) {
	raw := []byte(`{"format":{"duration":"2.0"},"streams":[{"codec_type":"video","width":320,"height":240,"r_frame_rate":"25/1"}]}`)
	info, err := parseProbeOutput("x.mp4", raw)
	if err != nil {
		t.Fatalf("parseProbeOutput failed: %v", err)
	}
	if info.FrameCount != 50 {
		t.Errorf("FrameCount = %d, want 50", info.FrameCount)
	}
	if info.HasAudio {
		t.Error("expected no audio")
	}
}

func TestParseProbeOutputNoStreams(t *testing.T) {
	if _, err := parseProbeOutput("x.txt", []byte(`{"format":{},"streams":[]}`)); err == nil {
		t.Error("expected error for input without streams")
	}
	if _, err := parseProbeOutput("x.txt", []byte(`not json`)); err == nil {
		t.Error("expected error for malformed output")
	}
}

func TestWriteConcatList(t *testing.T) {
	var sb strings.Builder
	if err := writeConcatList(&sb, []string{"/clips/a.mp4", "/clips/it's.mp4"}); err != nil {
		t.Fatalf("writeConcatList failed: %v", err)
	}
	want := "file '/clips/a.mp4'\nfile '/clips/it'\\''s.mp4'\n"
	if sb.String() != want {
		t.Errorf("concat list = %q, want %q", sb.String(), want)
	}
}

func TestSeekTime(t *testing.T) {
	if got := seekTime(0, 30); got != 0 {
		t.Errorf("seekTime(0) = %v, want 0", got)
	}
	// half a frame before frame 30 at 30fps
	want := util.Seconds(29.5 / 30)
	if got := seekTime(30, 30); got != want {
		t.Errorf("seekTime(30, 30) = %v, want %v", got, want)
	}
}

func TestClipOptionsDuration(t *testing.T) {
	opts := ClipOptions{Frames: 75, FPS: 25}
	if got := opts.Duration(); got != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", got)
	}
	if got := (ClipOptions{Frames: 10}).Duration(); got != 0 {
		t.Errorf("Duration() without fps = %v, want 0", got)
	}
}

func TestDecodeFloat32LE(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []float32{0.5, -1, 0.25} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.WriteByte(0x01) // partial trailing sample

	samples := decodeFloat32LE(buf.Bytes())
	want := []float32{0.5, -1, 0.25}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("samples[%d] = %f, want %f", i, samples[i], want[i])
		}
	}
}

func TestEncodeArgsDefaults(t *testing.T) {
	e := &Executor{logger: zerolog.Nop(), preset: "fast", crf: 20}
	got := strings.Join(e.videoEncodeArgs("", 0, ""), " ")
	if got != "-c:v libx264 -preset fast -crf 20 -pix_fmt yuv420p" {
		t.Errorf("unexpected video args %q", got)
	}
	got = strings.Join(e.audioEncodeArgs(""), " ")
	if got != "-c:a aac -b:a 192k" {
		t.Errorf("unexpected audio args %q", got)
	}
}

func TestComplexArgs(t *testing.T) {
	e := &Executor{logger: zerolog.Nop(), preset: "fast", crf: 20}
	args, err := e.complexArgs(ComplexOptions{
		Inputs: []Input{
			{Path: "a.mp4"},
			{Path: "music.mp3", Args: []string{"-stream_loop", "-1"}},
		},
		Graph:    "[0:v]null[vout];[1:a]anull[aout]",
		Maps:     []string{"[vout]", "[aout]"},
		Output:   "out.mp4",
		HasAudio: true,
	})
	if err != nil {
		t.Fatalf("complexArgs failed: %v", err)
	}
	want := "-i a.mp4 -stream_loop -1 -i music.mp3 -filter_complex [0:v]null[vout];[1:a]anull[aout] " +
		"-map [vout] -map [aout] -c:v libx264 -preset fast -crf 20 -pix_fmt yuv420p -c:a aac -b:a 192k " +
		"-movflags +faststart out.mp4"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("args =\n%s\nwant\n%s", got, want)
	}

	args, _ = e.complexArgs(ComplexOptions{Inputs: []Input{{Path: "a.mp4"}}, Graph: "[0:v]null[vout]", Output: "o.mp4"})
	if !strings.Contains(strings.Join(args, " "), " -an ") {
		t.Errorf("silent render should pass -an: %v", args)
	}

	for _, bad := range []ComplexOptions{
		{Graph: "null", Output: "o.mp4"},
		{Inputs: []Input{{Path: "a.mp4"}}, Graph: "null"},
		{Inputs: []Input{{Path: "a.mp4"}}, Graph: "  ", Output: "o.mp4"},
	} {
		if _, err := e.complexArgs(bad); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestProbeVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := generateTestVideo(t, t.TempDir(), 2, true)
	e := newTestExecutor(t)

	info, err := e.ProbeVideo(context.Background(), path)
	if err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("ProbeVideo failed: %v", err))
		t.Fatalf("ProbeVideo failed: %v", err)
	}
	globalResults.ProbeResults = info

	if info.Width != 320 {
		t.Errorf("expected width 320, got %d", info.Width)
	}
	if info.Height != 240 {
		t.Errorf("expected height 240, got %d", info.Height)
	}
	if math.Abs(info.FPS-30) > 0.01 {
		t.Errorf("expected 30 fps, got %f", info.FPS)
	}
	if !info.HasAudio {
		t.Error("expected audio stream")
	}

	t.Logf("Video info: %dx%d, %.2f fps, duration: %v, frames: %d",
		info.Width, info.Height, info.FPS, info.Duration, info.FrameCount)
}

func TestProbeVideoInvalidFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.ProbeVideo(ctx, filepath.Join(t.TempDir(), "nonexistent.mp4"))
	if !apperrors.HasCode(err, apperrors.CodeDecode) {
		t.Errorf("expected DecodeError for missing file, got %v", err)
	}

	invalidPath := filepath.Join(t.TempDir(), "invalid.txt")
	os.WriteFile(invalidPath, []byte("not a video"), 0644)

	_, err = e.ProbeVideo(ctx, invalidPath)
	if !apperrors.HasCode(err, apperrors.CodeDecode) {
		t.Errorf("expected DecodeError for invalid file, got %v", err)
	}

	_, err = e.ProbeDuration(ctx, invalidPath)
	if !apperrors.HasCode(err, apperrors.CodeDurationProbe) {
		t.Errorf("expected DurationProbeError, got %v", err)
	}
}

func TestExtractClip(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	path := generateTestVideo(t, dir, 3, true)
	e := newTestExecutor(t)

	outputPath := filepath.Join(dir, "clip_output.mp4")
	err := e.ExtractClip(context.Background(), path, ClipOptions{
		StartFrame: 15,
		Frames:     30,
		FPS:        30,
		Output:     outputPath,
		Preset:     "ultrafast",
	})
	if err != nil {
		globalResults.Errors = append(globalResults.Errors, fmt.Sprintf("ExtractClip failed: %v", err))
		t.Fatalf("ExtractClip failed: %v", err)
	}

	info, err := e.ProbeVideo(context.Background(), outputPath)
	if err != nil {
		t.Fatalf("probe of clip failed: %v", err)
	}
	globalResults.ClipCreated = true

	if info.FrameCount != 30 {
		t.Errorf("clip has %d frames, want 30", info.FrameCount)
	}
}

func TestRunFailureReturnsTranscodeError(t *testing.T) {
	skipIfNoFFmpeg(t)

	e := newTestExecutor(t)
	output := filepath.Join(t.TempDir(), "out.mp4")
	err := e.Run(context.Background(), RunOptions{
		Args:   []string{"-i", filepath.Join(t.TempDir(), "missing.mp4"), output},
		Output: output,
	})
	if !apperrors.HasCode(err, apperrors.CodeTranscode) {
		t.Fatalf("expected TranscodeError, got %v", err)
	}
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Detail("stderr") == "" {
		t.Errorf("expected stderr tail in error details, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("partial output should be removed")
	}
}

func TestDecodeAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	e := newTestExecutor(t)
	ctx := context.Background()

	samples, err := e.DecodeAudio(ctx, generateTestVideo(t, dir, 2, true), 8000)
	if err != nil {
		t.Fatalf("DecodeAudio failed: %v", err)
	}
	globalResults.AudioSamples = len(samples)

	// 2s at 8kHz, allowing for encoder priming
	if len(samples) < 15000 || len(samples) > 17000 {
		t.Errorf("got %d samples, want ~16000", len(samples))
	}

	silent, err := e.DecodeAudio(ctx, generateTestVideo(t, dir, 1, false), 8000)
	if err != nil {
		t.Fatalf("DecodeAudio without audio stream failed: %v", err)
	}
	if len(silent) != 0 {
		t.Errorf("expected no samples for video without audio, got %d", len(silent))
	}

	_, err = e.DecodeAudio(ctx, filepath.Join(dir, "missing.wav"), 8000)
	if !apperrors.HasCode(err, apperrors.CodeDecode) {
		t.Errorf("expected DecodeError, got %v", err)
	}
}

func TestStreamFrames(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := generateTestVideo(t, t.TempDir(), 1, false)
	e := newTestExecutor(t)

	var indices []int
	err := e.StreamFrames(context.Background(), path, StreamOptions{StartFrame: 10, Frames: 5}, func(i int, frame *image.RGBA) error {
		if frame.Bounds().Dx() != 320 || frame.Bounds().Dy() != 240 {
			return fmt.Errorf("unexpected frame size %v", frame.Bounds())
		}
		indices = append(indices, i)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamFrames failed: %v", err)
	}
	globalResults.FramesDecoded = len(indices)

	want := []int{10, 11, 12, 13, 14}
	if fmt.Sprint(indices) != fmt.Sprint(want) {
		t.Errorf("frame indices = %v, want %v", indices, want)
	}
}

func TestStreamFramesStopsOnCallbackError(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := generateTestVideo(t, t.TempDir(), 2, false)
	e := newTestExecutor(t)

	stop := fmt.Errorf("stop")
	count := 0
	err := e.StreamFrames(context.Background(), path, StreamOptions{}, func(int, *image.RGBA) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	if err != stop {
		t.Fatalf("expected callback error, got %v", err)
	}
	if count != 3 {
		t.Errorf("callback ran %d times, want 3", count)
	}
}

func TestGenerateThumbnail(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	path := generateTestVideo(t, dir, 2, false)
	e := newTestExecutor(t)

	thumb := filepath.Join(dir, "thumb.jpg")
	if err := e.GenerateThumbnail(context.Background(), path, thumb, time.Second, 160); err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}
	info, err := e.ProbeVideo(context.Background(), thumb)
	if err != nil {
		t.Fatalf("probe thumbnail failed: %v", err)
	}
	if info.Width != 160 {
		t.Errorf("thumbnail width = %d, want 160", info.Width)
	}
}

func TestConcatValidation(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	ctx := context.Background()

	if err := e.Concat(ctx, ConcatOptions{Output: "out.mp4"}); err == nil {
		t.Error("expected error for empty inputs")
	}
	if err := e.Concat(ctx, ConcatOptions{Inputs: []string{"a.mp4"}}); err == nil {
		t.Error("expected error for missing output")
	}
}

// TestMain runs after all tests and prints summary
func TestMain(m *testing.M) {
	code := m.Run()

	// Print summary
	printTestSummary()

	os.Exit(code)
}

func printTestSummary() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🎬 TEST SUMMARY - FFmpeg Layer")
	fmt.Println(strings.Repeat("=", 80))

	if globalResults.ExecutorPath != "" {
		fmt.Printf("\n✓ FFmpeg Binary: %s\n", globalResults.ExecutorPath)
	}

	if globalResults.ProbeResults != nil {
		fmt.Println("\n📹 VIDEO PROBE RESULTS:")
		fmt.Printf("  Resolution:    %dx%d @ %.2f fps\n",
			globalResults.ProbeResults.Width,
			globalResults.ProbeResults.Height,
			globalResults.ProbeResults.FPS)
		fmt.Printf("  Duration:      %v\n", globalResults.ProbeResults.Duration)
		fmt.Printf("  Frames:        %d\n", globalResults.ProbeResults.FrameCount)
		fmt.Printf("  Audio Codec:   %s\n", globalResults.ProbeResults.AudioCodec)
	}

	fmt.Println("\n🎬 PROCESSING RESULTS:")
	if globalResults.ClipCreated {
		fmt.Println("  ✓ Clip Extraction:  SUCCESS")
	} else {
		fmt.Println("  ✗ Clip Extraction:  NOT RUN")
	}
	fmt.Printf("  🎞️  Frames Streamed:  %d\n", globalResults.FramesDecoded)
	fmt.Printf("  🔊 Audio Samples:    %d\n", globalResults.AudioSamples)

	if len(globalResults.Errors) > 0 {
		fmt.Println("\n❌ ERRORS ENCOUNTERED:")
		for i, err := range globalResults.Errors {
			fmt.Printf("  %d. %s\n", i+1, err)
		}
	} else {
		fmt.Println("\n✅ ALL TESTS PASSED - No critical errors")
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}
