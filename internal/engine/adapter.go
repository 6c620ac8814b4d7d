// Package engine hosts the adapter registry, model layout validation, and
// the orchestrator that owns the currently loaded recognition engine.
package engine

import (
	"context"

	"speech-orchestrator/internal/domain"
)

// Adapter is the uniform capability surface over one recognition backend.
// Implementations wrap a native recognizer and expose the attributes needed
// for identity reconciliation.
type Adapter interface {
	// Family reports the engine family this adapter belongs to.
	Family() domain.ModelKind
	// ModelPath returns the model directory the adapter was constructed from.
	ModelPath() string
	// Quantized reports whether the bound model uses reduced-precision weights.
	Quantized() bool
	// VersionTag returns the model version tag recovered from the bound files,
	// or empty when the family has no versioned variants.
	VersionTag() string
	// SupportsFileTranscription reports whether the adapter can transcribe a
	// whole file natively. Adapters reporting true also implement
	// FileTranscriber.
	SupportsFileTranscription() bool

	// TranscribeChunk feeds one PCM chunk (16 kHz mono s16le) and returns any
	// newly finalized text, or empty when the utterance is still open.
	TranscribeChunk(pcm []byte) (string, error)
	// FinalResult flushes and returns any pending text.
	FinalResult() string
	// Reset clears decoder state between utterances.
	Reset()
	// Close releases native resources.
	Close() error
}

// FileTranscriber is the optional whole-file transcription capability.
type FileTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}
