package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keagan/highlightreel/internal/config"
	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/rs/zerolog"
)

// Store holds serialized analysis results
type Store interface {
	// Get returns the value and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value; ttl <= 0 keeps it until deleted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const keyPrefix = "highlightreel:analysis:"

// New builds the store selected by cfg.Backend
func New(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "cache").Logger()

	switch cfg.Backend {
	case "", "none":
		logger.Debug().Msg("result cache disabled")
		return Noop{}, nil
	case "memory":
		logger.Debug().Msg("using in-memory result cache")
		return NewMemoryStore(defaultCleanupInterval), nil
	case "redis":
		store, err := NewRedisStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("connected to redis result cache")
		return store, nil
	default:
		return nil, apperrors.ErrInvalidArgument(fmt.Sprintf("unknown cache backend %q", cfg.Backend))
	}
}

// Key derives a cache key from the video's identity and the analysis
// options. Any change to the file's size or modification time, or to the
// options, yields a different key.
func Key(path string, options any) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	opts, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to encode options: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", path, st.Size(), st.ModTime().UnixNano())
	h.Write(opts)
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// GetJSON decodes a cached value into v and reports whether it was found.
// Undecodable entries are treated as misses.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.ErrCache("encode", err)
	}
	return s.Set(ctx, key, data, ttl)
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Noop) Delete(context.Context, string) error {
	return nil
}

func (Noop) Close() error {
	return nil
}
