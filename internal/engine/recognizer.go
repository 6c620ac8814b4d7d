package engine

import (
	"encoding/binary"
	"encoding/json"
	"strings"
)

// chunkRecognizer abstracts the native streaming recognizer binding so
// adapters stay buildable without cgo. AcceptWaveform returns finalized
// text when an utterance closes, empty otherwise.
type chunkRecognizer interface {
	AcceptWaveform(pcm []byte) (string, error)
	FinalResult() string
	Reset()
	Close() error
}

// parseResultText extracts the "text" field from a recognizer JSON result.
func parseResultText(raw string) string {
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return ""
	}
	return strings.TrimSpace(result.Text)
}

// int16ToFloat32 converts little-endian s16le PCM bytes to [-1, 1] samples.
func int16ToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// intSamplesToBytes converts decoded integer samples to s16le PCM bytes.
func intSamplesToBytes(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}
