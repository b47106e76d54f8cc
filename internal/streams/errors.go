package streams

import (
	"errors"
	"fmt"

	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/capture"
)

// Sentinels matched with errors.Is on errors returned by the registry.
var (
	ErrNotFound          = cameras.ErrNotFound
	ErrConfigInvalid     = cameras.ErrConfigInvalid
	ErrSourceUnavailable = capture.ErrSourceUnavailable
	ErrNotStreaming      = errors.New("stream not active")
	ErrClosed            = errors.New("stream registry closed")
)

// StreamError represents a domain-specific error
type StreamError struct {
	Code     string
	CameraID string
	Message  string
	Cause    error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.CameraID, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.CameraID, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeCameraNotFound    = "CAMERA_NOT_FOUND"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	ErrCodeNotStreaming      = "STREAM_NOT_ACTIVE"
	ErrCodeClosed            = "REGISTRY_CLOSED"
)

// NewStreamError creates a new stream error
func NewStreamError(code, cameraID, message string, cause error) *StreamError {
	return &StreamError{
		Code:     code,
		CameraID: cameraID,
		Message:  message,
		Cause:    cause,
	}
}

// Code returns the StreamError code carried by err, or "" if there is none.
func Code(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
