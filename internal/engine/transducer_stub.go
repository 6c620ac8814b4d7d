//go:build !sherpa

package engine

import (
	"errors"

	"speech-orchestrator/internal/domain"
)

// Default no-cgo build: the transducer family is unavailable unless built
// with the sherpa tag.
func newTransducerRecognizer(domain.ModelDescriptor) (chunkRecognizer, error) {
	return nil, errors.New("built without transducer support (rebuild with -tags sherpa)")
}
