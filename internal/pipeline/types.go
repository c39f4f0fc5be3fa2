package pipeline

import (
	"context"
	"time"

	"github.com/keagan/highlightreel/internal/clips"
	"github.com/keagan/highlightreel/internal/highlight"
	"github.com/keagan/highlightreel/internal/reel"
	"github.com/keagan/highlightreel/internal/storage"
)

// Detector finds highlight intervals in a video
type Detector interface {
	Detect(ctx context.Context, videoPath string) ([]highlight.Interval, error)
}

// ClipExtractor cuts intervals out of a video
type ClipExtractor interface {
	Extract(ctx context.Context, videoPath string, highlights []highlight.Interval, outputDir string, addVisualization bool) ([]clips.Clip, error)
}

// ReelAssembler merges clips into one video
type ReelAssembler interface {
	Merge(ctx context.Context, clips []string, output string, opts reel.MergeOptions) (string, error)
}

// Publisher uploads run artifacts
type Publisher interface {
	UploadAll(ctx context.Context, runID string, files []string) ([]storage.Object, error)
}

// AnalyzeOptions configures analysis behavior
type AnalyzeOptions struct {
	MaxClips int  // keep the best N intervals; 0 keeps all
	NoCache  bool // skip the result cache lookup
}

// Analysis is the ranked result of analyzing one video
type Analysis struct {
	Input      string               `json:"input"`
	Highlights []highlight.Interval `json:"highlights"`
	CacheHit   bool                 `json:"cache_hit"`
}

// RunOptions configures a full analyze, extract, merge and publish run
type RunOptions struct {
	Input     string
	OutputDir string // defaults to <work_dir>/runs
	MaxClips  int
	Visualize bool
	SkipReel  bool
	Publish   bool
	NoCache   bool
	Merge     reel.MergeOptions
}

// Report describes one run; it is written to report.json in the run directory
type Report struct {
	RunID      string               `json:"run_id"`
	Input      string               `json:"input"`
	Dir        string               `json:"dir"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	CacheHit   bool                 `json:"cache_hit"`
	Highlights []highlight.Interval `json:"highlights"`
	Clips      []clips.Clip         `json:"clips"`
	ClipErrors []string             `json:"clip_errors,omitempty"`
	Reel       string               `json:"reel,omitempty"`
	Published  []storage.Object     `json:"published,omitempty"`
}
