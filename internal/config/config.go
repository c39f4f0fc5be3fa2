package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix prefixes every environment override, e.g. HIGHLIGHT_DETECTION_MIN_CONFIDENCE
const EnvPrefix = "HIGHLIGHT"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir" split_words:"true" validate:"required"`
	TempDir     string `yaml:"temp_dir" split_words:"true"`
	Concurrency int    `yaml:"concurrency" validate:"gte=1"`
	LogFormat   string `yaml:"log_format" split_words:"true" validate:"oneof=console json"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Detection DetectionConfig `yaml:"detection"`
	Face      FaceConfig      `yaml:"face"`
	Audio     AudioConfig     `yaml:"audio"`
	Reel      ReelConfig      `yaml:"reel"`
	Subtitles SubtitleConfig  `yaml:"subtitles"`
	Overlays  OverlayConfig   `yaml:"overlays"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path" split_words:"true"`
	ProbePath  string `yaml:"probe_path" split_words:"true"`
	Threads    int    `yaml:"threads" validate:"gte=0"`
	Preset     string `yaml:"preset"`
	CRF        int    `yaml:"crf" validate:"gte=0,lte=51"`
}

// DetectionConfig drives the object detector and the fusion engine
type DetectionConfig struct {
	ModelPath        string   `yaml:"model_path" split_words:"true"`
	FaceModelPath    string   `yaml:"face_model_path" split_words:"true"`
	RuntimeLibrary   string   `yaml:"runtime_library" split_words:"true"`
	InputSize        int      `yaml:"input_size" split_words:"true" validate:"gte=32"`
	InputName        string   `yaml:"input_name" split_words:"true"`
	OutputName       string   `yaml:"output_name" split_words:"true"`
	Labels           []string `yaml:"labels"`
	ImportantClasses []string `yaml:"important_classes" split_words:"true" validate:"min=1"`
	MinConfidence    float64  `yaml:"min_confidence" split_words:"true" validate:"gte=0,lte=1"`
	IoUThreshold     float64  `yaml:"iou_threshold" split_words:"true" validate:"gt=0,lte=1"`
	MinDuration      float64  `yaml:"min_duration" split_words:"true" validate:"gte=0"`
	FrameStride      int      `yaml:"frame_stride" split_words:"true" validate:"gte=1"`
	AnalyzeAudio     bool     `yaml:"analyze_audio" split_words:"true"`
	AnalyzeFaces     bool     `yaml:"analyze_faces" split_words:"true"`
	MaxClips         int      `yaml:"max_clips" split_words:"true" validate:"gte=0"`
}

type FaceConfig struct {
	MinFaces         int           `yaml:"min_faces" split_words:"true" validate:"gte=1"`
	MinHappyRatio    float64       `yaml:"min_happy_ratio" split_words:"true" validate:"gte=0,lte=1"`
	MinSurpriseRatio float64       `yaml:"min_surprise_ratio" split_words:"true" validate:"gte=0,lte=1"`
	Confidence       float64       `yaml:"confidence" validate:"gte=0,lte=1"`
	EmotionURL       string        `yaml:"emotion_url" split_words:"true" validate:"omitempty,url"`
	EmotionTimeout   time.Duration `yaml:"emotion_timeout" split_words:"true"`
	FallbackEmotion  string        `yaml:"fallback_emotion" split_words:"true"`
	CropSize         int           `yaml:"crop_size" split_words:"true" validate:"gte=16"`
}

type AudioConfig struct {
	SampleRate        int     `yaml:"sample_rate" split_words:"true" validate:"gte=8000"`
	ApplauseThreshold float64 `yaml:"applause_threshold" split_words:"true" validate:"gte=0"`
	ApplauseMinDur    float64 `yaml:"applause_min_duration" split_words:"true" validate:"gte=0"`
	MergeGap          float64 `yaml:"merge_gap" split_words:"true" validate:"gt=0"`
	CrowdWindow       float64 `yaml:"crowd_window" split_words:"true" validate:"gt=0"`
	MidThresholdDB    float64 `yaml:"mid_threshold_db" split_words:"true"`
	HighThresholdDB   float64 `yaml:"high_threshold_db" split_words:"true"`
}

type ReelConfig struct {
	TargetDuration     float64 `yaml:"target_duration" split_words:"true" validate:"gte=0"`
	TransitionDuration float64 `yaml:"transition_duration" split_words:"true" validate:"gte=0"`
	MusicPath          string  `yaml:"music_path" split_words:"true"`
	MusicVolume        float64 `yaml:"music_volume" split_words:"true" validate:"gte=0,lte=2"`
	KeepClipAudio      bool    `yaml:"keep_clip_audio" split_words:"true"`
	Width              int     `yaml:"width" validate:"gte=0"`
	Height             int     `yaml:"height" validate:"gte=0"`
	FPS                float64 `yaml:"fps" validate:"gte=0"`
	Visualize          bool    `yaml:"visualize"`
	Thumbnails         bool    `yaml:"thumbnails"`
}

type SubtitleConfig struct {
	FontName     string `yaml:"font_name" split_words:"true"`
	FontSize     int    `yaml:"font_size" split_words:"true" validate:"gt=0"`
	FontColor    string `yaml:"font_color" split_words:"true" validate:"hexcolor"`
	OutlineWidth int    `yaml:"outline_width" split_words:"true" validate:"gte=0"`
}

type OverlayConfig struct {
	BadgeColor string `yaml:"badge_color" split_words:"true" validate:"hexcolor"`
	BoxColor   string `yaml:"box_color" split_words:"true" validate:"hexcolor"`
	TextSize   int    `yaml:"text_size" split_words:"true" validate:"gt=0"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=none memory redis"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr" split_words:"true" validate:"required_if=Backend redis"`
	RedisDB   int           `yaml:"redis_db" split_words:"true" validate:"gte=0"`
	Password  string        `yaml:"password"`
}

type StorageConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Endpoint        string        `yaml:"endpoint" validate:"required_if=Enabled true"`
	AccessKeyID     string        `yaml:"access_key_id" split_words:"true"`
	SecretAccessKey string        `yaml:"secret_access_key" split_words:"true"`
	BucketName      string        `yaml:"bucket_name" split_words:"true" validate:"required_if=Enabled true"`
	Prefix          string        `yaml:"prefix"`
	UseSSL          bool          `yaml:"use_ssl" split_words:"true"`
	Region          string        `yaml:"region"`
	URLExpiry       time.Duration `yaml:"url_expiry" split_words:"true"`
}

// Load reads configuration from file, then applies .env and HIGHLIGHT_* overrides
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		WorkDir:     "./work",
		TempDir:     os.TempDir(),
		Concurrency: 4,
		LogFormat:   "console",
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
			Preset:     "medium",
			CRF:        23,
		},
		Detection: DetectionConfig{
			ModelPath:        "./models/yolov8n.onnx",
			FaceModelPath:    "./models/yolov8n-face.onnx",
			InputSize:        640,
			InputName:        "images",
			OutputName:       "output0",
			ImportantClasses: []string{"person", "dancing", "cheering", "celebrating"},
			MinConfidence:    0.5,
			IoUThreshold:     0.45,
			MinDuration:      2.0,
			FrameStride:      1,
			AnalyzeAudio:     true,
			AnalyzeFaces:     true,
		},
		Face: FaceConfig{
			MinFaces:         5,
			MinHappyRatio:    0.7,
			MinSurpriseRatio: 0.7,
			Confidence:       0.5,
			EmotionTimeout:   10 * time.Second,
			FallbackEmotion:  "neutral",
			CropSize:         224,
		},
		Audio: AudioConfig{
			SampleRate:        22050,
			ApplauseThreshold: 0.07,
			ApplauseMinDur:    0.5,
			MergeGap:          0.5,
			CrowdWindow:       1.0,
			MidThresholdDB:    -30,
			HighThresholdDB:   -40,
		},
		Reel: ReelConfig{
			TargetDuration:     60,
			TransitionDuration: 1.0,
			MusicVolume:        0.3,
			KeepClipAudio:      true,
			Thumbnails:         true,
		},
		Subtitles: SubtitleConfig{
			FontName:     "Arial",
			FontSize:     24,
			FontColor:    "#FFFFFF",
			OutlineWidth: 2,
		},
		Overlays: OverlayConfig{
			BadgeColor: "#00FF00",
			BoxColor:   "#00FF00",
			TextSize:   1,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       24 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		Storage: StorageConfig{
			BucketName: "highlights",
			Region:     "us-east-1",
			Prefix:     "reels",
			URLExpiry:  24 * time.Hour,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".highlightreel", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
