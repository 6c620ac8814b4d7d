package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"speech-orchestrator/internal/domain"
)

// writeFiles creates empty files under dir, creating parent directories.
func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", full, err)
		}
		if err := os.WriteFile(full, []byte("stub"), 0o644); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}
}

// TestValidateLayoutKaldi checks the directory-based layout requirement.
func TestValidateLayoutKaldi(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, filepath.Join("am", "final.mdl"))

	if err := ValidateLayout(dir, domain.KindKaldi, domain.ModelParams{}); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

// TestValidateLayoutKaldiMissingAcousticModel checks the failure detail.
func TestValidateLayoutKaldiMissingAcousticModel(t *testing.T) {
	dir := t.TempDir()

	err := ValidateLayout(dir, domain.KindKaldi, domain.ModelParams{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Reason != ReasonMissingRequiredFile {
		t.Fatalf("reason = %s", verr.Reason)
	}
	if verr.File != filepath.Join("am", "final.mdl") {
		t.Fatalf("file = %s", verr.File)
	}
}

// TestValidateLayoutTransducerVariants checks component names derived from
// quantization and version tag.
func TestValidateLayoutTransducerVariants(t *testing.T) {
	cases := []struct {
		name   string
		params domain.ModelParams
		files  []string
	}{
		{
			name:   "standard untagged",
			params: domain.ModelParams{},
			files: []string{
				"encoder-epoch-99-avg-1.onnx",
				"decoder-epoch-99-avg-1.onnx",
				"joiner-epoch-99-avg-1.onnx",
				"tokens.txt",
			},
		},
		{
			name:   "quantized tagged",
			params: domain.ModelParams{Quantized: true, VersionTag: "2023-06-26"},
			files: []string{
				"encoder-epoch-99-avg-1-chunk-16-left-128.int8.onnx",
				"decoder-epoch-99-avg-1-chunk-16-left-128.int8.onnx",
				"joiner-epoch-99-avg-1-chunk-16-left-128.int8.onnx",
				"tokens.txt",
			},
		},
		{
			name:   "explicit overrides",
			params: domain.ModelParams{Encoder: "enc.onnx", Decoder: "dec.onnx", Joiner: "join.onnx", Tokens: "vocab.txt"},
			files:  []string{"enc.onnx", "dec.onnx", "join.onnx", "vocab.txt"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, tc.files...)

			if err := ValidateLayout(dir, domain.KindTransducer, tc.params); err != nil {
				t.Fatalf("validate: %v", err)
			}
		})
	}
}

// TestValidateLayoutTransducerWrongVariantFails checks that a quantized
// descriptor does not accept a standard-precision file set.
func TestValidateLayoutTransducerWrongVariantFails(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"encoder-epoch-99-avg-1.onnx",
		"decoder-epoch-99-avg-1.onnx",
		"joiner-epoch-99-avg-1.onnx",
		"tokens.txt",
	)

	err := ValidateLayout(dir, domain.KindTransducer, domain.ModelParams{Quantized: true})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Reason != ReasonMissingRequiredFile {
		t.Fatalf("reason = %s", verr.Reason)
	}
}

// TestValidateLayoutMissingPath checks the nonexistent path reason.
func TestValidateLayoutMissingPath(t *testing.T) {
	err := ValidateLayout(filepath.Join(t.TempDir(), "absent"), domain.KindKaldi, domain.ModelParams{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Reason != ReasonMissingPath {
		t.Fatalf("reason = %s", verr.Reason)
	}
}

// TestValidateLayoutUnsupportedKind checks the unknown kind reason.
func TestValidateLayoutUnsupportedKind(t *testing.T) {
	err := ValidateLayout(t.TempDir(), domain.ModelKind("hybrid"), domain.ModelParams{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Reason != ReasonUnsupportedKind {
		t.Fatalf("reason = %s", verr.Reason)
	}
}
