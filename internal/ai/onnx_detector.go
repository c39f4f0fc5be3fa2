package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// DetectorOptions configures an ONNX YOLO detector
type DetectorOptions struct {
	ModelPath      string
	RuntimeLibrary string // onnxruntime shared library; empty uses the platform default
	InputSize      int
	InputName      string
	OutputName     string
	Labels         []string
	IoUThreshold   float64
}

// ONNXDetector runs a YOLOv8-family ONNX model. Outputs are expected as
// [1, 4+classes(+extra), anchors] with boxes as center x, center y, width,
// height in input pixels.
type ONNXDetector struct {
	logger    zerolog.Logger
	modelPath string
	inputSize int
	labels    []string
	iou       float64
	session   *ort.DynamicAdvancedSession
}

var envMu sync.Mutex

// initRuntime initializes the shared onnxruntime environment once
func initRuntime(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return ort.InitializeEnvironment()
}

// ShutdownRuntime releases the onnxruntime environment after every
// detector has been closed
func ShutdownRuntime() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// NewONNXDetector loads the model; missing or unreadable weights yield a ModelLoadError
func NewONNXDetector(logger zerolog.Logger, opts DetectorOptions) (*ONNXDetector, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	if opts.InputName == "" {
		opts.InputName = "images"
	}
	if opts.OutputName == "" {
		opts.OutputName = "output0"
	}
	if len(opts.Labels) == 0 {
		opts.Labels = COCOLabels()
	}
	if opts.IoUThreshold <= 0 {
		opts.IoUThreshold = 0.45
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, apperrors.ErrModelLoad(opts.ModelPath, fmt.Errorf("model file not found: %w", err))
	}

	if err := initRuntime(opts.RuntimeLibrary); err != nil {
		return nil, apperrors.ErrModelLoad(opts.ModelPath, fmt.Errorf("failed to initialize ONNX runtime: %w", err))
	}

	sess, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		nil,
	)
	if err != nil {
		return nil, apperrors.ErrModelLoad(opts.ModelPath, fmt.Errorf("failed to create session: %w", err))
	}

	logger.Info().
		Str("model", opts.ModelPath).
		Int("input_size", opts.InputSize).
		Int("classes", len(opts.Labels)).
		Msg("detection model loaded")

	return &ONNXDetector{
		logger:    logger.With().Str("component", "detector").Str("model", opts.ModelPath).Logger(),
		modelPath: opts.ModelPath,
		inputSize: opts.InputSize,
		labels:    opts.Labels,
		iou:       opts.IoUThreshold,
		session:   sess,
	}, nil
}

// Detect runs the model on img and returns detections at or above confidence
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := d.inputSize
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), preprocess(img, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	// nil outputs are allocated by the runtime with the model's shape
	outputs := []ort.ArbitraryTensor{nil}
	if err := d.session.Run([]ort.ArbitraryTensor{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	shape := out.GetShape()
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	bounds := img.Bounds()
	scaleX := float64(bounds.Dx()) / float64(size)
	scaleY := float64(bounds.Dy()) / float64(size)

	raw, err := decodeOutput(out.GetData(), int(shape[1]), int(shape[2]), d.labels, confidence, scaleX, scaleY, bounds)
	if err != nil {
		return nil, err
	}
	dets := nonMaxSuppression(raw, d.iou)

	d.logger.Debug().
		Int("candidates", len(raw)).
		Int("detections", len(dets)).
		Msg("detection complete")

	return dets, nil
}

// Close releases the model session
func (d *ONNXDetector) Close() error {
	d.logger.Info().Msg("closing detection model session")
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return err
		}
		d.session = nil
	}
	return nil
}

// preprocess resizes img to size x size and returns normalised CHW RGB data
func preprocess(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	plane := size * size
	data := make([]float32, 3*plane)
	bounds := resized.Bounds()

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
			idx++
		}
	}
	return data
}

// decodeOutput converts raw [channels, anchors] predictions into detections
// in source coordinates, before suppression
func decodeOutput(data []float32, channels, anchors int, labels []string, confidence, scaleX, scaleY float64, bounds image.Rectangle) ([]Detection, error) {
	classes := len(labels)
	if channels < 4+classes {
		return nil, fmt.Errorf("model output has %d channels, need at least %d for %d classes", channels, 4+classes, classes)
	}
	if len(data) < channels*anchors {
		return nil, fmt.Errorf("model output has %d values, want %d", len(data), channels*anchors)
	}

	at := func(c, a int) float64 { return float64(data[c*anchors+a]) }

	var dets []Detection
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, 0.0
		for c := 0; c < classes; c++ {
			if s := at(4+c, a); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < confidence {
			continue
		}

		cx, cy, w, h := at(0, a), at(1, a), at(2, a), at(3, a)
		box := BoundingBox{
			X1: clampInt(int((cx-w/2)*scaleX), bounds.Min.X, bounds.Max.X),
			Y1: clampInt(int((cy-h/2)*scaleY), bounds.Min.Y, bounds.Max.Y),
			X2: clampInt(int((cx+w/2)*scaleX), bounds.Min.X, bounds.Max.X),
			Y2: clampInt(int((cy+h/2)*scaleY), bounds.Min.Y, bounds.Max.Y),
		}
		if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
			continue
		}

		dets = append(dets, Detection{
			Class:      labels[best],
			Confidence: bestScore,
			Box:        box,
		})
	}
	return dets, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
