//go:build sherpa

package engine

import (
	"fmt"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"speech-orchestrator/internal/domain"
)

// sherpaRecognizer backs the transducer family with the sherpa-onnx runtime.
type sherpaRecognizer struct {
	rec        *sherpa.OnlineRecognizer
	stream     *sherpa.OnlineStream
	sampleRate int
}

// newTransducerRecognizer builds an online transducer recognizer from the
// resolved component file paths and descriptor parameters.
func newTransducerRecognizer(desc domain.ModelDescriptor) (chunkRecognizer, error) {
	encoder, decoder, joiner, tokens := transducerFilePaths(desc.Path, desc.Params)

	sampleRate := desc.Params.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	featureDim := desc.Params.FeatureDim
	if featureDim <= 0 {
		featureDim = 80
	}
	threads := desc.Params.Threads
	if threads <= 0 {
		threads = 4
	}
	method := desc.Params.DecodingMethod
	if method == "" {
		method = "greedy_search"
	}

	config := sherpa.OnlineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{SampleRate: sampleRate, FeatureDim: featureDim},
		ModelConfig: sherpa.OnlineModelConfig{
			Transducer: sherpa.OnlineTransducerModelConfig{
				Encoder: encoder,
				Decoder: decoder,
				Joiner:  joiner,
			},
			Tokens:     tokens,
			NumThreads: threads,
			Provider:   "cpu",
		},
		DecodingMethod: method,
		EnableEndpoint: 1,
	}

	rec := sherpa.NewOnlineRecognizer(&config)
	if rec == nil {
		return nil, fmt.Errorf("create online recognizer for %s", desc.Path)
	}

	return &sherpaRecognizer{
		rec:        rec,
		stream:     sherpa.NewOnlineStream(rec),
		sampleRate: sampleRate,
	}, nil
}

// AcceptWaveform feeds one chunk, decodes everything ready, and returns the
// utterance text when the endpoint detector closes it.
func (r *sherpaRecognizer) AcceptWaveform(pcm []byte) (string, error) {
	r.stream.AcceptWaveform(r.sampleRate, int16ToFloat32(pcm))
	for r.rec.IsReady(r.stream) {
		r.rec.Decode(r.stream)
	}

	if !r.rec.IsEndpoint(r.stream) {
		return "", nil
	}

	text := strings.TrimSpace(r.rec.GetResult(r.stream).Text)
	r.rec.Reset(r.stream)
	return text, nil
}

// FinalResult flushes the open utterance.
func (r *sherpaRecognizer) FinalResult() string {
	for r.rec.IsReady(r.stream) {
		r.rec.Decode(r.stream)
	}
	text := strings.TrimSpace(r.rec.GetResult(r.stream).Text)
	r.rec.Reset(r.stream)
	return text
}

func (r *sherpaRecognizer) Reset() {
	r.rec.Reset(r.stream)
}

func (r *sherpaRecognizer) Close() error {
	sherpa.DeleteOnlineStream(r.stream)
	sherpa.DeleteOnlineRecognizer(r.rec)
	return nil
}
