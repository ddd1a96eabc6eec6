package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed run.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
	KindAcquisitionFailed   ErrorKind = "ACQUISITION_FAILED"
	KindArtifactNotFound    ErrorKind = "ARTIFACT_NOT_FOUND"
	KindExtractionFailed    ErrorKind = "EXTRACTION_FAILED"
	KindTranscriptionFailed ErrorKind = "TRANSCRIPTION_FAILED"
	KindBusy                ErrorKind = "BUSY"
)

// Sentinel markers, one per kind, so callers can use errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrAcquisitionFailed   = errors.New("acquisition failed")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrBusy                = errors.New("pipeline busy")
)

var kindMarkers = map[ErrorKind]error{
	KindInvalidInput:        ErrInvalidInput,
	KindAcquisitionFailed:   ErrAcquisitionFailed,
	KindArtifactNotFound:    ErrArtifactNotFound,
	KindExtractionFailed:    ErrExtractionFailed,
	KindTranscriptionFailed: ErrTranscriptionFailed,
	KindBusy:                ErrBusy,
}

// PipelineError is the only error type a run returns to its caller.
type PipelineError struct {
	Kind    ErrorKind      `json:"code"`
	Stage   Stage          `json:"stage,omitempty"`
	Message string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// NewPipelineError builds a classified error for the given stage.
func NewPipelineError(kind ErrorKind, stage Stage, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (cause: %v)", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// Is matches the sentinel marker of the error's kind.
func (e *PipelineError) Is(target error) bool {
	marker, ok := kindMarkers[e.Kind]
	return ok && marker == target
}

// WithDetail attaches a diagnostic key/value pair and returns the receiver.
func (e *PipelineError) WithDetail(key string, value any) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus maps the kind onto a response status: 400 for caller mistakes,
// 503 when no run slot was available, 500 for every downstream failure.
func (e *PipelineError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body sent for a failed run.
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  ErrorKind `json:"code"`
	Stage Stage     `json:"stage,omitempty"`
}

// ToResponse strips the cause and details; they are for logs only.
func (e *PipelineError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Kind, Stage: e.Stage}
}

// AsPipelineError extracts a *PipelineError from err if present.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
