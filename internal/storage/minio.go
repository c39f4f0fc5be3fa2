package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/keagan/highlightreel/internal/config"
	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

const (
	defaultURLExpiry = 24 * time.Hour
	maxUploadElapsed = 2 * time.Minute
)

// Object is an uploaded file
type Object struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Publisher uploads clips, reels and reports to an S3-compatible bucket
type Publisher struct {
	logger    zerolog.Logger
	client    *minio.Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// New connects to the endpoint and makes sure the bucket exists
func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperrors.ErrStorage("connect", err).WithDetail("endpoint", cfg.Endpoint)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}
	p := &Publisher{
		logger:    logger.With().Str("component", "storage").Logger(),
		client:    client,
		bucket:    cfg.BucketName,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		urlExpiry: expiry,
	}

	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return apperrors.ErrStorage("bucket check", err).WithDetail("bucket", p.bucket)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return apperrors.ErrStorage("bucket create", err).WithDetail("bucket", p.bucket)
	}
	p.logger.Info().Str("bucket", p.bucket).Msg("created bucket")
	return nil
}

// ObjectKey places a local file under prefix/runID/
func (p *Publisher) ObjectKey(runID, file string) string {
	return objectKey(p.prefix, runID, file)
}

func objectKey(prefix, runID, file string) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if runID != "" {
		parts = append(parts, runID)
	}
	return path.Join(append(parts, filepath.Base(file))...)
}

// contentType guesses the MIME type from the extension
func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".json":
		return "application/json"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// retryable reports whether an upload error may succeed on retry
func retryable(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 || resp.StatusCode == 0
}

// Upload puts file under runID, retrying transient failures, and returns a
// presigned URL for it
func (p *Publisher) Upload(ctx context.Context, runID, file string) (Object, error) {
	st, err := os.Stat(file)
	if err != nil {
		return Object{}, apperrors.ErrStorage("upload", err).WithDetail("file", file)
	}
	key := p.ObjectKey(runID, file)

	attempt := 0
	put := func() error {
		attempt++
		_, err := p.client.FPutObject(ctx, p.bucket, key, file, minio.PutObjectOptions{
			ContentType: contentType(file),
		})
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		p.logger.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("upload failed, retrying")
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = maxUploadElapsed

	if err := backoff.Retry(put, backoff.WithContext(bo, ctx)); err != nil {
		return Object{}, apperrors.ErrStorage("upload", err).
			WithDetail("key", key).
			WithDetail("attempts", fmt.Sprintf("%d", attempt))
	}

	url, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.urlExpiry, nil)
	if err != nil {
		return Object{}, apperrors.ErrStorage("presign", err).WithDetail("key", key)
	}

	p.logger.Info().
		Str("key", key).
		Int64("size", st.Size()).
		Int("attempts", attempt).
		Msg("uploaded")
	return Object{Key: key, URL: url.String(), Size: st.Size()}, nil
}

// UploadAll uploads files in order and stops at the first failure
func (p *Publisher) UploadAll(ctx context.Context, runID string, files []string) ([]Object, error) {
	objects := make([]Object, 0, len(files))
	for _, f := range files {
		obj, err := p.Upload(ctx, runID, f)
		if err != nil {
			return objects, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
