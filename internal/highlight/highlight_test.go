package highlight

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keagan/highlightreel/internal/ai"
	"github.com/keagan/highlightreel/internal/audio"
	"github.com/keagan/highlightreel/internal/ffmpeg"
	"github.com/rs/zerolog"
)

const testFPS = 30.0

// fakeVideo streams frames whose first two bytes encode the frame index
type fakeVideo struct {
	frames int
}

func (v *fakeVideo) ProbeVideo(_ context.Context, path string) (*ffmpeg.VideoInfo, error) {
	return &ffmpeg.VideoInfo{
		FilePath:   path,
		Duration:   time.Duration(float64(v.frames) / testFPS * float64(time.Second)),
		Width:      2,
		Height:     2,
		FPS:        testFPS,
		FrameCount: v.frames,
	}, nil
}

func (v *fakeVideo) StreamFrames(ctx context.Context, _ string, _ ffmpeg.StreamOptions, fn ffmpeg.FrameFunc) error {
	for i := 0; i < v.frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
		frame.Pix[0] = byte(i % 256)
		frame.Pix[1] = byte(i / 256)
		if err := fn(i, frame); err != nil {
			return err
		}
	}
	return nil
}

func frameIndex(img image.Image) int {
	pix := img.(*image.RGBA).Pix
	return int(pix[0]) + int(pix[1])*256
}

// fakeEvents marks frames in [from, to) important and fails on failAt, or on
// every frame when failAll is set
type fakeEvents struct {
	from, to int
	failAt   int
	failAll  bool
	calls    int32
}

func (f *fakeEvents) Classify(_ context.Context, frame image.Image, _ float64) (bool, []ai.Detection, error) {
	atomic.AddInt32(&f.calls, 1)
	i := frameIndex(frame)
	if i == f.failAt || f.failAll {
		return false, nil, errors.New("inference failed")
	}
	if i >= f.from && i < f.to {
		return true, []ai.Detection{{Class: "person", Confidence: float64(i) / 1000}}, nil
	}
	return false, nil, nil
}

// fakeFaces reports a positive crowd for frames in [from, to)
type fakeFaces struct {
	from, to int
	calls    int32
}

func (f *fakeFaces) Sample(_ context.Context, frame image.Image) (ai.FaceReaction, error) {
	atomic.AddInt32(&f.calls, 1)
	i := frameIndex(frame)
	if i >= f.from && i < f.to {
		return ai.FaceReaction{FaceCount: 6, HappyRatio: 0.8, Reaction: ai.ReactionPositive, Confidence: 0.8, Sampled: true}, nil
	}
	return ai.FaceReaction{FaceCount: 2, Reaction: ai.ReactionNeutral}, nil
}

type fakeAudio struct {
	analysis *audio.Analysis
	err      error
}

func (f *fakeAudio) Analyze(context.Context, string) (*audio.Analysis, error) {
	return f.analysis, f.err
}

func at(t float64) FrameSignals { return FrameSignals{Time: t} }

func hit(t float64) FrameSignals { return FrameSignals{Time: t, Important: true} }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAccumulatorRuns(t *testing.T) {
	acc := NewAccumulator(2.0)
	for _, s := range []FrameSignals{
		at(0), hit(1), hit(2), hit(3.5), at(4), // kept: 2.5s
		hit(5), hit(6), at(7), // dropped: 1s
		at(8),
	} {
		acc.Observe(s)
	}
	got := acc.Finish()
	if len(got) != 1 {
		t.Fatalf("expected 1 interval, got %v", got)
	}
	if got[0].Start != 1 || got[0].End != 3.5 {
		t.Errorf("interval = %s, want [1, 3.5]", got[0])
	}
	if len(got[0].Detections) != 0 || got[0].AvgFace != nil {
		t.Errorf("unexpected content %+v", got[0])
	}
}

func TestAccumulatorMinDurationBoundary(t *testing.T) {
	tests := []struct {
		name string
		end  float64
		want int
	}{
		{"exactly min", 2.0, 1},
		{"just below", 1.999, 0},
		{"single frame", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := NewAccumulator(2.0)
			acc.Observe(hit(0))
			acc.Observe(hit(tt.end))
			acc.Observe(at(tt.end + 1))
			if got := acc.Finish(); len(got) != tt.want {
				t.Errorf("got %d intervals, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAccumulatorFinalizesAtEOF(t *testing.T) {
	acc := NewAccumulator(1.0)
	happy := &ai.FaceReaction{FaceCount: 6, HappyRatio: 0.9, Reaction: ai.ReactionPositive, Sampled: true}
	calm := &ai.FaceReaction{FaceCount: 8, HappyRatio: 0.5, SurpriseRatio: 0.1, Reaction: ai.ReactionNeutral, Sampled: true}

	acc.Observe(FrameSignals{Time: 0, Face: happy})
	acc.Observe(FrameSignals{Time: 1, Face: calm, Important: true})
	acc.Observe(FrameSignals{Time: 2, Face: happy})
	if !acc.Open() {
		t.Fatal("expected an open interval")
	}

	got := acc.Finish()
	if len(got) != 1 {
		t.Fatalf("expected open interval to be emitted at EOF, got %v", got)
	}
	avg := got[0].AvgFace
	if avg == nil {
		t.Fatal("expected face summary at EOF")
	}
	if !approx(avg.FaceCount, 20.0/3) || !approx(avg.HappyRatio, 2.3/3) || !approx(avg.SurpriseRatio, 0.1/3) {
		t.Errorf("unexpected summary %+v", avg)
	}
	if len(got[0].FaceReactions) != 3 {
		t.Errorf("expected 3 face reactions, got %d", len(got[0].FaceReactions))
	}
	if acc.Open() || len(acc.Finish()) != 0 {
		t.Error("Finish should reset the accumulator")
	}
}

func TestAccumulatorSticky(t *testing.T) {
	acc := NewAccumulator(0)
	acc.Observe(FrameSignals{Time: 0, InApplause: true, InCrowd: true})
	acc.Observe(FrameSignals{Time: 1, Important: true, Detections: []ai.Detection{{Class: "person"}}})
	acc.Observe(FrameSignals{Time: 2, Important: true, Detections: []ai.Detection{{Class: "cheering"}, {Class: "person"}}})
	got := acc.Finish()

	if len(got) != 1 || !got[0].HasApplause || !got[0].HasCrowdNoise {
		t.Fatalf("expected sticky applause and crowd flags, got %+v", got)
	}
	var classes []string
	for _, d := range got[0].Detections {
		classes = append(classes, d.Class)
	}
	if !reflect.DeepEqual(classes, []string{"person", "cheering", "person"}) {
		t.Errorf("detections out of order: %v", classes)
	}
}

func TestAccumulatorCrowdNoiseAloneIsNotHighlight(t *testing.T) {
	acc := NewAccumulator(0)
	acc.Observe(FrameSignals{Time: 0, InCrowd: true})
	acc.Observe(FrameSignals{Time: 1, Face: &ai.FaceReaction{Reaction: ai.ReactionNeutral, Confidence: 0.9}})
	if got := acc.Finish(); len(got) != 0 {
		t.Errorf("expected no intervals, got %v", got)
	}
}

func TestAccumulatorSurprisedReaction(t *testing.T) {
	acc := NewAccumulator(0.5)
	surprised := &ai.FaceReaction{FaceCount: 5, SurpriseRatio: 0.8, Reaction: ai.ReactionSurprised, Sampled: true}
	acc.Observe(FrameSignals{Time: 0, Face: surprised})
	acc.Observe(FrameSignals{Time: 1, Face: surprised})
	if got := acc.Finish(); len(got) != 1 || !approx(got[0].AvgFace.SurpriseRatio, 0.8) {
		t.Errorf("expected surprised interval, got %+v", got)
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	got := NewAccumulator(2).Finish()
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestEngineDetect(t *testing.T) {
	events := &fakeEvents{from: 30, to: 120, failAt: -1}
	opts := DefaultOptions()
	opts.AnalyzeAudio = false
	opts.AnalyzeFaces = false

	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 150}, events, nil, nil, opts)
	got, err := e.Detect(context.Background(), "match.mp4")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 interval, got %v", got)
	}
	if !approx(got[0].Start, 1.0) || !approx(got[0].End, 119/testFPS) {
		t.Errorf("interval = %s, want [1.00s, 3.97s]", got[0])
	}
	if len(got[0].Detections) != 90 {
		t.Errorf("expected 90 detections, got %d", len(got[0].Detections))
	}
	if events.calls != 150 {
		t.Errorf("expected 150 classified frames, got %d", events.calls)
	}
}

func TestEngineWorkersMatchSequential(t *testing.T) {
	run := func(workers int) []Interval {
		opts := DefaultOptions()
		opts.Workers = workers
		e := NewEngine(zerolog.Nop(),
			&fakeVideo{frames: 300},
			&fakeEvents{from: 10, to: 100, failAt: -1},
			&fakeFaces{from: 150, to: 260},
			&fakeAudio{analysis: &audio.Analysis{Applause: []audio.Interval{{Start: 5, End: 6}}}},
			opts)
		got, err := e.Detect(context.Background(), "match.mp4")
		if err != nil {
			t.Fatalf("Detect with %d workers failed: %v", workers, err)
		}
		return got
	}

	sequential := run(1)
	if len(sequential) != 2 {
		t.Fatalf("expected 2 intervals, got %v", sequential)
	}
	for _, workers := range []int{3, 8} {
		if got := run(workers); !reflect.DeepEqual(got, sequential) {
			t.Errorf("%d workers produced %v, want %v", workers, got, sequential)
		}
	}
}

func TestEngineApplauseOnly(t *testing.T) {
	analysis := &audio.Analysis{Applause: []audio.Interval{{Start: 0.5, End: 3.0}}}
	opts := DefaultOptions()
	opts.AnalyzeFaces = false

	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 150}, &fakeEvents{failAt: -1}, nil, &fakeAudio{analysis: analysis}, opts)
	got, err := e.Detect(context.Background(), "match.mp4")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 1 || !approx(got[0].Start, 0.5) || !approx(got[0].End, 3.0) || !got[0].HasApplause {
		t.Errorf("expected applause interval [0.5, 3.0], got %+v", got)
	}
}

func TestEngineAudioDisabled(t *testing.T) {
	analysis := &audio.Analysis{Applause: []audio.Interval{{Start: 0, End: 4}}}
	opts := DefaultOptions()
	opts.AnalyzeAudio = false
	faces := &fakeFaces{}
	opts.AnalyzeFaces = false

	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 150}, &fakeEvents{failAt: -1}, faces, &fakeAudio{analysis: analysis}, opts)
	got, _ := e.Detect(context.Background(), "match.mp4")
	if len(got) != 0 {
		t.Errorf("expected no intervals with audio disabled, got %v", got)
	}
	if faces.calls != 0 {
		t.Errorf("face sampler called %d times with faces disabled", faces.calls)
	}
}

func TestEngineFrameStride(t *testing.T) {
	events := &fakeEvents{from: 0, to: 90, failAt: -1}
	opts := DefaultOptions()
	opts.AnalyzeAudio = false
	opts.FrameStride = 3

	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 150}, events, nil, nil, opts)
	got, err := e.Detect(context.Background(), "match.mp4")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if events.calls != 50 {
		t.Errorf("expected 50 classified frames, got %d", events.calls)
	}
	if len(got) != 1 || !approx(got[0].End, 87/testFPS) {
		t.Errorf("unexpected intervals %v", got)
	}
}

func TestEngineSkipsFailedFrames(t *testing.T) {
	events := &fakeEvents{from: 0, to: 90, failAt: 45}
	opts := DefaultOptions()
	opts.AnalyzeAudio = false

	var logs bytes.Buffer
	e := NewEngine(zerolog.New(&logs), &fakeVideo{frames: 120}, events, nil, nil, opts)
	got, err := e.Detect(context.Background(), "match.mp4")
	if err != nil {
		t.Fatalf("per-frame failure should not abort detection: %v", err)
	}
	if !strings.Contains(logs.String(), `"skipped":1`) {
		t.Errorf("skipped frame count missing from logs:\n%s", logs.String())
	}
	if len(got) != 1 || got[0].Start != 0 || !approx(got[0].End, 89/testFPS) {
		t.Errorf("failed frame should not split the interval, got %v", got)
	}
	if len(got[0].Detections) != 89 {
		t.Errorf("expected 89 detections, got %d", len(got[0].Detections))
	}
}

func TestEngineAllFramesFailed(t *testing.T) {
	opts := DefaultOptions()
	opts.AnalyzeAudio = false
	opts.Workers = 4

	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 30}, &fakeEvents{failAt: -1, failAll: true}, nil, nil, opts)
	got, err := e.Detect(context.Background(), "match.mp4")
	if err == nil || !strings.Contains(err.Error(), "inference failed") {
		t.Fatalf("expected detection to fail when no frame could be analyzed, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no intervals, got %v", got)
	}
}

func TestEngineAudioError(t *testing.T) {
	opts := DefaultOptions()
	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 10}, &fakeEvents{failAt: -1}, nil, &fakeAudio{err: errors.New("decode failed")}, opts)
	if _, err := e.Detect(context.Background(), "match.mp4"); err == nil {
		t.Error("expected audio error to abort detection")
	}
}

func TestEngineCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := DefaultOptions()
	opts.AnalyzeAudio = false
	e := NewEngine(zerolog.Nop(), &fakeVideo{frames: 10}, &fakeEvents{failAt: -1}, nil, nil, opts)
	if _, err := e.Detect(ctx, "match.mp4"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHeuristicScore(t *testing.T) {
	h := NewHeuristicScorer()
	quiet := Interval{Start: 0, End: 2}
	loud := Interval{Start: 0, End: 10, HasApplause: true, AvgFace: &FaceSummary{HappyRatio: 1}, Detections: make([]ai.Detection, 50)}

	if got := h.Score(quiet); !approx(got, 0.3*0.2) {
		t.Errorf("quiet score = %f, want 0.06", got)
	}
	if got := h.Score(loud); !approx(got, 1.0) {
		t.Errorf("loud score = %f, want 1.0", got)
	}
}

func TestRank(t *testing.T) {
	intervals := []Interval{
		{Start: 0, End: 2},
		{Start: 10, End: 20, HasApplause: true},
		{Start: 30, End: 33},
		{Start: 40, End: 50, HasApplause: true},
	}

	got := Rank(intervals, 2, nil)
	if len(got) != 2 || got[0].Start != 10 || got[1].Start != 40 {
		t.Errorf("expected the two applause intervals in order, got %v", got)
	}
	if got[0].Score <= 0 {
		t.Error("ranked intervals should carry their score")
	}
	if intervals[1].Score != 0 {
		t.Error("Rank should not modify its input")
	}

	if all := Rank(intervals, 0, nil); len(all) != 4 || all[3].Start != 40 {
		t.Errorf("max 0 should keep all intervals in order, got %v", all)
	}
}
