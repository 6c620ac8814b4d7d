package engine

import (
	"fmt"

	"speech-orchestrator/internal/domain"
)

// kaldiAdapter wraps the directory-based recognizer family. It streams
// chunks only; whole files are routed through the transcription pipeline.
type kaldiAdapter struct {
	path string
	rec  chunkRecognizer
}

// NewKaldiAdapter is the registry factory for the directory-based family.
func NewKaldiAdapter(desc domain.ModelDescriptor) (Adapter, error) {
	rec, err := newKaldiRecognizer(desc)
	if err != nil {
		return nil, fmt.Errorf("kaldi recognizer: %w", err)
	}
	return &kaldiAdapter{path: desc.Path, rec: rec}, nil
}

func (a *kaldiAdapter) Family() domain.ModelKind { return domain.KindKaldi }
func (a *kaldiAdapter) ModelPath() string        { return a.path }

// Quantized is always false: the family has no quantized variants.
func (a *kaldiAdapter) Quantized() bool    { return false }
func (a *kaldiAdapter) VersionTag() string { return "" }

func (a *kaldiAdapter) SupportsFileTranscription() bool { return false }

// TranscribeChunk feeds one PCM chunk and returns any finalized text.
func (a *kaldiAdapter) TranscribeChunk(pcm []byte) (string, error) {
	return a.rec.AcceptWaveform(pcm)
}

// FinalResult flushes pending text from the recognizer.
func (a *kaldiAdapter) FinalResult() string { return a.rec.FinalResult() }

func (a *kaldiAdapter) Reset()       { a.rec.Reset() }
func (a *kaldiAdapter) Close() error { return a.rec.Close() }
