package domain

// ModelKind identifies the engine family a model requires.
type ModelKind string

const (
	// KindKaldi is the directory-based model layout (acoustic model
	// subdirectory containing one fixed model file).
	KindKaldi ModelKind = "kaldi"
	// KindTransducer is the three-component encoder/decoder/joiner layout
	// plus a vocabulary file.
	KindTransducer ModelKind = "transducer"
)

// ModelParams carries construction parameters forwarded to the engine
// adapter factory. Explicit file name overrides win over the names derived
// from Quantized and VersionTag.
type ModelParams struct {
	Quantized      bool   `json:"quantized"`
	VersionTag     string `json:"versionTag,omitempty"`
	Threads        int    `json:"threads,omitempty"`
	SampleRate     int    `json:"sampleRate,omitempty"`
	FeatureDim     int    `json:"featureDim,omitempty"`
	DecodingMethod string `json:"decodingMethod,omitempty"`
	Encoder        string `json:"encoder,omitempty"`
	Decoder        string `json:"decoder,omitempty"`
	Joiner         string `json:"joiner,omitempty"`
	Tokens         string `json:"tokens,omitempty"`
}

// ModelDescriptor is the identity of one installable model. Descriptors are
// read from the catalog file and never mutated afterwards.
type ModelDescriptor struct {
	Name    string      `json:"name"`
	Kind    ModelKind   `json:"kind"`
	Path    string      `json:"path"`
	Enabled bool        `json:"enabled"`
	Params  ModelParams `json:"params,omitempty"`
}

// JobStatus tracks each stage of a single file transcription job.
type JobStatus string

const (
	JobStatusIdle        JobStatus = "idle"
	JobStatusProbing     JobStatus = "probing"
	JobStatusConverting  JobStatus = "converting"
	JobStatusStreaming   JobStatus = "streaming"
	JobStatusAggregating JobStatus = "aggregating"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// Job stores identity, lifecycle status, and accumulated output of one
// transcription attempt.
type Job struct {
	ID              string    `json:"id"`
	FilePath        string    `json:"filePath,omitempty"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	Status          JobStatus `json:"status"`
	Progress        int       `json:"progress"`
	Text            string    `json:"text,omitempty"`
}

// AudioDevice describes one capture or playback endpoint. Devices are
// enumerated outside this core and consumed opaquely.
type AudioDevice struct {
	Index      string `json:"index"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sampleRate"`
	IsInput    bool   `json:"isInput"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelsPath   string `json:"modelsPath"`
	DefaultModel string `json:"defaultModel"`
	OutputDir    string `json:"outputDir"`
}
