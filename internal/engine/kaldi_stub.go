//go:build !vosk

package engine

import (
	"errors"

	"speech-orchestrator/internal/domain"
)

// Default no-cgo build: the directory-based family is unavailable unless
// built with the vosk tag.
func newKaldiRecognizer(domain.ModelDescriptor) (chunkRecognizer, error) {
	return nil, errors.New("built without kaldi support (rebuild with -tags vosk)")
}
