package engine

import (
	"errors"
	"fmt"

	"speech-orchestrator/internal/domain"
)

// ErrUnknownModel is returned when a load names a model absent from the catalog.
var ErrUnknownModel = errors.New("unknown model")

// ErrModelDisabled is returned when a load names a disabled model.
var ErrModelDisabled = errors.New("model is disabled")

// ErrUnknownFamily is returned when no factory is registered for a kind.
var ErrUnknownFamily = errors.New("unknown engine family")

// ErrCapabilityUnsupported is returned when the active engine cannot
// transcribe whole files and no fallback route is available. Engine
// substitution is never attempted.
var ErrCapabilityUnsupported = errors.New("active engine does not support file transcription")

// ErrNotReady is returned when live recognition is started without a loaded
// engine or a bound audio device.
var ErrNotReady = errors.New("engine or audio device not ready")

// ConstructionError wraps a fault raised while a factory built an adapter.
type ConstructionError struct {
	Kind domain.ModelKind
	Err  error
}

// Error formats the construction failure with its family.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s adapter: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// ValidationReason classifies model layout validation failures.
type ValidationReason string

const (
	ReasonMissingPath         ValidationReason = "missing_path"
	ReasonMissingRequiredFile ValidationReason = "missing_required_file"
	ReasonUnsupportedKind     ValidationReason = "unsupported_kind"
)

// ValidationError describes why a model layout failed validation.
type ValidationError struct {
	Reason ValidationReason
	Path   string
	// File is the required entry that was missing, relative to Path.
	File string
}

// Error formats the validation failure for logs and events.
func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonMissingPath:
		return fmt.Sprintf("model path does not exist: %s", e.Path)
	case ReasonMissingRequiredFile:
		return fmt.Sprintf("model at %s is missing required file: %s", e.Path, e.File)
	case ReasonUnsupportedKind:
		return fmt.Sprintf("unsupported model kind for path: %s", e.Path)
	default:
		return fmt.Sprintf("invalid model files at %s", e.Path)
	}
}
