package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
)

// FixedEmotion labels every face with the same emotion
type FixedEmotion struct {
	Label      string
	Confidence float64
}

// Classify returns the fixed label
func (f FixedEmotion) Classify(_ context.Context, _ image.Image) (Emotion, error) {
	label := f.Label
	if label == "" {
		label = EmotionNeutral
	}
	return Emotion{Label: label, Confidence: f.Confidence}, nil
}

// EmotionOptions configures an HTTP emotion classifier
type EmotionOptions struct {
	URL      string
	Timeout  time.Duration
	CropSize int // crops are resized to a square of this size; 0 keeps them as is
	// MaxElapsed bounds retries of a single request
	MaxElapsed time.Duration
}

// HTTPEmotionClassifier posts JPEG face crops to an emotion service's
// /detect endpoint and reads back the dominant emotion
type HTTPEmotionClassifier struct {
	logger zerolog.Logger
	client *http.Client
	url    string
	crop   int
	maxEl  time.Duration
}

type emotionScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type emotionResponse struct {
	Emotions        []emotionScore `json:"emotions"`
	DominantEmotion string         `json:"dominant_emotion"`
}

// NewHTTPEmotionClassifier creates a client for the emotion service at opts.URL
func NewHTTPEmotionClassifier(logger zerolog.Logger, opts EmotionOptions) *HTTPEmotionClassifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 30 * time.Second
	}
	return &HTTPEmotionClassifier{
		logger: logger.With().Str("component", "emotion-client").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
		url:    strings.TrimRight(opts.URL, "/"),
		crop:   opts.CropSize,
		maxEl:  opts.MaxElapsed,
	}
}

// Classify sends the face crop and returns the dominant emotion, retrying
// transport failures and 5xx responses with exponential backoff
func (c *HTTPEmotionClassifier) Classify(ctx context.Context, face image.Image) (Emotion, error) {
	if c.crop > 0 {
		face = resize.Resize(uint(c.crop), uint(c.crop), face, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, face, &jpeg.Options{Quality: 90}); err != nil {
		return Emotion{}, fmt.Errorf("failed to encode face crop: %w", err)
	}

	var result Emotion
	attempt := 0
	detect := func() error {
		attempt++
		emo, err := c.post(ctx, buf.Bytes())
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Msg("emotion request failed")
			return err
		}
		result = emo
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = c.maxEl

	if err := backoff.Retry(detect, backoff.WithContext(bo, ctx)); err != nil {
		return Emotion{}, fmt.Errorf("emotion detection failed after %d attempts: %w", attempt, err)
	}
	return result, nil
}

func (c *HTTPEmotionClassifier) post(ctx context.Context, crop []byte) (Emotion, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "face.jpg")
	if err != nil {
		return Emotion{}, backoff.Permanent(err)
	}
	if _, err := part.Write(crop); err != nil {
		return Emotion{}, backoff.Permanent(err)
	}
	if err := mw.Close(); err != nil {
		return Emotion{}, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/detect", &body)
	if err != nil {
		return Emotion{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Emotion{}, backoff.Permanent(ctx.Err())
		}
		return Emotion{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("emotion %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return Emotion{}, err
		}
		return Emotion{}, backoff.Permanent(err)
	}

	var out emotionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Emotion{}, backoff.Permanent(fmt.Errorf("emotion decode: %w", err))
	}
	return dominant(out), nil
}

// dominant picks the named dominant emotion, or the best scored one
func dominant(resp emotionResponse) Emotion {
	label := resp.DominantEmotion
	var best emotionScore
	for _, s := range resp.Emotions {
		if label != "" && strings.EqualFold(s.Label, label) {
			return Emotion{Label: NormalizeEmotion(label), Confidence: s.Score}
		}
		if s.Score > best.Score {
			best = s
		}
	}
	if label != "" {
		return Emotion{Label: NormalizeEmotion(label), Confidence: 1}
	}
	if best.Label == "" {
		return Emotion{Label: EmotionNeutral}
	}
	return Emotion{Label: NormalizeEmotion(best.Label), Confidence: best.Score}
}

// NormalizeEmotion maps common label variants onto the sampler's labels
func NormalizeEmotion(label string) string {
	switch l := strings.ToLower(strings.TrimSpace(label)); l {
	case "happiness", "joy", "smile":
		return EmotionHappy
	case "surprised", "surprise":
		return EmotionSurprise
	case "":
		return EmotionNeutral
	default:
		return l
	}
}
