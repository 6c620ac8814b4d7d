package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"speech-orchestrator/internal/domain"
)

// fileChunkSamples is the per-read sample count for native file
// transcription, matching the pipeline's 4000-byte PCM chunks.
const fileChunkSamples = 2000

// transducerAdapter wraps the three-component transducer family. It
// supports both chunk streaming and native whole-file transcription.
type transducerAdapter struct {
	path   string
	params domain.ModelParams
	rec    chunkRecognizer
}

// NewTransducerAdapter is the registry factory for the transducer family.
func NewTransducerAdapter(desc domain.ModelDescriptor) (Adapter, error) {
	rec, err := newTransducerRecognizer(desc)
	if err != nil {
		return nil, fmt.Errorf("transducer recognizer: %w", err)
	}
	return &transducerAdapter{path: desc.Path, params: desc.Params, rec: rec}, nil
}

func (a *transducerAdapter) Family() domain.ModelKind { return domain.KindTransducer }
func (a *transducerAdapter) ModelPath() string        { return a.path }
func (a *transducerAdapter) Quantized() bool          { return a.params.Quantized }
func (a *transducerAdapter) VersionTag() string       { return a.params.VersionTag }

func (a *transducerAdapter) SupportsFileTranscription() bool { return true }

// TranscribeChunk feeds one PCM chunk and returns any finalized text.
func (a *transducerAdapter) TranscribeChunk(pcm []byte) (string, error) {
	return a.rec.AcceptWaveform(pcm)
}

// FinalResult flushes pending text from the recognizer.
func (a *transducerAdapter) FinalResult() string { return a.rec.FinalResult() }

func (a *transducerAdapter) Reset()       { a.rec.Reset() }
func (a *transducerAdapter) Close() error { return a.rec.Close() }

// TranscribeFile decodes a 16 kHz mono WAV file and streams its frames
// through the recognizer, joining finalized utterances in order.
func (a *transducerAdapter) TranscribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return "", fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:   make([]int, fileChunkSamples),
	}

	a.rec.Reset()
	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return "", fmt.Errorf("read audio frames: %w", err)
		}
		if n == 0 {
			break
		}

		text, err := a.rec.AcceptWaveform(intSamplesToBytes(buf.Data[:n]))
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	if final := a.rec.FinalResult(); final != "" {
		parts = append(parts, final)
	}
	return strings.Join(parts, " "), nil
}
