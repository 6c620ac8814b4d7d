package engine

import (
	"os"
	"path/filepath"

	"speech-orchestrator/internal/domain"
)

// layoutTemplate declares the required file set for one model kind. The
// required names may depend on the descriptor's construction parameters.
type layoutTemplate struct {
	requiredFiles func(params domain.ModelParams) []string
}

// transducerSuffixes maps a version tag to the shared stem of the three
// transducer component files. Unknown tags fall back to the untagged stem.
var transducerSuffixes = map[string]string{
	"":           "-epoch-99-avg-1",
	"2023-06-26": "-epoch-99-avg-1-chunk-16-left-128",
}

// layoutTemplates drives validation per kind. The configured kind is always
// authoritative; the path string is never consulted for classification.
var layoutTemplates = map[domain.ModelKind]layoutTemplate{
	domain.KindKaldi: {
		requiredFiles: func(domain.ModelParams) []string {
			return []string{filepath.Join("am", "final.mdl")}
		},
	},
	domain.KindTransducer: {
		requiredFiles: func(params domain.ModelParams) []string {
			encoder, decoder, joiner, tokens := transducerFileNames(params)
			return []string{encoder, decoder, joiner, tokens}
		},
	},
}

// transducerFileNames derives the component file names for a transducer
// model from its quantization flag and version tag. Explicit overrides in
// the parameters win.
func transducerFileNames(params domain.ModelParams) (encoder, decoder, joiner, tokens string) {
	suffix, ok := transducerSuffixes[params.VersionTag]
	if !ok {
		suffix = transducerSuffixes[""]
	}

	ext := ".onnx"
	if params.Quantized {
		ext = ".int8.onnx"
	}

	encoder = params.Encoder
	if encoder == "" {
		encoder = "encoder" + suffix + ext
	}
	decoder = params.Decoder
	if decoder == "" {
		decoder = "decoder" + suffix + ext
	}
	joiner = params.Joiner
	if joiner == "" {
		joiner = "joiner" + suffix + ext
	}
	tokens = params.Tokens
	if tokens == "" {
		tokens = "tokens.txt"
	}
	return encoder, decoder, joiner, tokens
}

// transducerFilePaths resolves the component names to absolute paths under
// modelPath. Override names that are already absolute are kept as-is.
func transducerFilePaths(modelPath string, params domain.ModelParams) (encoder, decoder, joiner, tokens string) {
	encoder, decoder, joiner, tokens = transducerFileNames(params)
	resolve := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(modelPath, name)
	}
	return resolve(encoder), resolve(decoder), resolve(joiner), resolve(tokens)
}

// ValidateLayout confirms the expected file layout for kind exists under
// path before an adapter is constructed. Failures are *ValidationError.
func ValidateLayout(path string, kind domain.ModelKind, params domain.ModelParams) error {
	if _, err := os.Stat(path); err != nil {
		return &ValidationError{Reason: ReasonMissingPath, Path: path}
	}

	template, ok := layoutTemplates[kind]
	if !ok {
		return &ValidationError{Reason: ReasonUnsupportedKind, Path: path}
	}

	for _, name := range template.requiredFiles(params) {
		full := name
		if !filepath.IsAbs(full) {
			full = filepath.Join(path, name)
		}
		if _, err := os.Stat(full); err != nil {
			return &ValidationError{Reason: ReasonMissingRequiredFile, Path: path, File: name}
		}
	}
	return nil
}
