//go:build vosk

package engine

import (
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"

	"speech-orchestrator/internal/domain"
)

// voskRecognizer backs the directory-based family with the Kaldi runtime.
type voskRecognizer struct {
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

// newKaldiRecognizer opens the model directory and builds a recognizer at
// the configured sample rate.
func newKaldiRecognizer(desc domain.ModelDescriptor) (chunkRecognizer, error) {
	model, err := vosk.NewModel(desc.Path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", desc.Path, err)
	}

	sampleRate := desc.Params.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	rec, err := vosk.NewRecognizer(model, float64(sampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	rec.SetWords(1)

	return &voskRecognizer{model: model, rec: rec}, nil
}

// AcceptWaveform feeds one chunk; a non-zero return from the runtime means
// an utterance closed and its text is available.
func (r *voskRecognizer) AcceptWaveform(pcm []byte) (string, error) {
	if r.rec.AcceptWaveform(pcm) == 0 {
		return "", nil
	}
	return parseResultText(r.rec.Result()), nil
}

// FinalResult flushes the runtime's pending utterance.
func (r *voskRecognizer) FinalResult() string {
	return parseResultText(r.rec.FinalResult())
}

func (r *voskRecognizer) Reset() {
	r.rec.Reset()
}

func (r *voskRecognizer) Close() error {
	r.rec.Free()
	r.model.Free()
	return nil
}
