package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a failure kind
type Code string

const (
	CodeDecode          Code = "DECODE_FAILED"
	CodeModelLoad       Code = "MODEL_LOAD_FAILED"
	CodeClipExtraction  Code = "CLIP_EXTRACTION_FAILED"
	CodeTranscode       Code = "TRANSCODE_FAILED"
	CodeDurationProbe   Code = "DURATION_PROBE_FAILED"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeStorage         Code = "STORAGE_FAILED"
	CodeCache           Code = "CACHE_FAILED"
)

func (c Code) String() string {
	return string(c)
}

// AppError is the error type shared by every component
type AppError struct {
	Raw       error
	Code      Code
	Message   string
	Details   map[string]string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap exposes the underlying cause
func (e AppError) Unwrap() error {
	return e.Raw
}

// Is matches any AppError carrying the same code
func (e AppError) Is(target error) bool {
	var t AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// Detail returns a detail value or the empty string
func (e AppError) Detail(key string) string {
	return e.Details[key]
}

// Kind returns a bare AppError usable as an errors.Is target
func Kind(code Code) AppError {
	return AppError{Code: code}
}

// HasCode reports whether any error in the chain is an AppError with code
func HasCode(err error, code Code) bool {
	return errors.Is(err, Kind(code))
}

// ErrDecode reports unreadable video or audio input
func ErrDecode(path string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      CodeDecode,
		Message:   fmt.Sprintf("cannot decode %s", path),
		Details:   map[string]string{"path": path},
		Timestamp: time.Now(),
	}
}

// ErrModelLoad reports missing or corrupt model weights
func ErrModelLoad(model string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      CodeModelLoad,
		Message:   fmt.Sprintf("cannot load model %s", model),
		Details:   map[string]string{"model": model},
		Timestamp: time.Now(),
	}
}

// ErrClipExtraction reports a failure confined to one highlight interval
func ErrClipExtraction(index int, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      CodeClipExtraction,
		Message:   fmt.Sprintf("clip %d extraction failed", index),
		Details:   map[string]string{"index": fmt.Sprintf("%d", index)},
		Timestamp: time.Now(),
	}
}

// ErrTranscode reports a non-zero transcoder exit with its diagnostic tail
func ErrTranscode(exitCode int, stderr string, err error) AppError {
	return AppError{
		Raw:     err,
		Code:    CodeTranscode,
		Message: fmt.Sprintf("transcoder exited with status %d", exitCode),
		Details: map[string]string{
			"exit_code": fmt.Sprintf("%d", exitCode),
			"stderr":    stderr,
		},
		Timestamp: time.Now(),
	}
}

// ErrDurationProbe reports a clip whose duration could not be read
func ErrDurationProbe(path string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      CodeDurationProbe,
		Message:   fmt.Sprintf("cannot probe duration of %s", path),
		Details:   map[string]string{"path": path},
		Timestamp: time.Now(),
	}
}

func ErrInvalidArgument(message string) AppError {
	return AppError{
		Code:      CodeInvalidArgument,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func ErrStorage(op string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      CodeStorage,
		Message:   fmt.Sprintf("storage %s failed", op),
		Timestamp: time.Now(),
	}
}

func ErrCache(op string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      CodeCache,
		Message:   fmt.Sprintf("cache %s failed", op),
		Timestamp: time.Now(),
	}
}
