package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"speech-orchestrator/internal/config"
	"speech-orchestrator/internal/domain"
	"speech-orchestrator/internal/jobs"
)

// FileRouter routes a whole-file transcription through the streaming
// pipeline when the active engine has no native file capability. The target
// of the routed job is the orchestrator itself.
type FileRouter func(ctx context.Context, path string) (string, error)

// Orchestrator owns the currently loaded adapter and reconciles the
// declared model identity against the adapter's observable attributes. All
// state is guarded by one exclusive lock so adapter swaps are never
// observed mid-flight by concurrent decode calls.
type Orchestrator struct {
	catalog  config.Catalog
	registry *Registry
	bus      jobs.Emitter
	log      zerolog.Logger

	mu          sync.Mutex
	declared    string
	adapter     Adapter
	device      *domain.AudioDevice
	recognizing bool
	router      FileRouter
}

// NewOrchestrator creates an orchestrator with no engine loaded.
func NewOrchestrator(catalog config.Catalog, registry *Registry, bus jobs.Emitter, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		registry: registry,
		bus:      bus,
		log:      log,
	}
}

// SetFileRouter installs the pipeline fallback used by TranscribeFile for
// engines without native whole-file transcription.
func (o *Orchestrator) SetFileRouter(router FileRouter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.router = router
}

// Load resolves name in the catalog, validates the model layout, and
// constructs a fresh adapter. The load is atomic: any failure leaves the
// previously loaded adapter untouched.
func (o *Orchestrator) Load(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loadLocked(name)
}

// loadLocked performs the load sequence. Callers hold o.mu.
func (o *Orchestrator) loadLocked(name string) error {
	desc, ok := o.catalog.Descriptor(name)
	if !ok {
		return o.failLoad(name, fmt.Errorf("%w: %s", ErrUnknownModel, name))
	}
	if !desc.Enabled {
		return o.failLoad(name, fmt.Errorf("%w: %s", ErrModelDisabled, name))
	}

	if err := ValidateLayout(desc.Path, desc.Kind, desc.Params); err != nil {
		return o.failLoad(name, err)
	}

	adapter, err := o.registry.Create(desc)
	if err != nil {
		return o.failLoad(name, err)
	}

	if o.adapter != nil {
		if closeErr := o.adapter.Close(); closeErr != nil {
			o.log.Warn().Err(closeErr).Msg("closing previous engine")
		}
	}
	o.adapter = adapter
	o.declared = name

	o.log.Info().Str("model", name).Str("family", string(desc.Kind)).Msg("engine loaded")
	o.emit(jobs.Event{Type: jobs.EventTypeModel, Model: name, Success: true})
	o.emit(jobs.Event{Type: jobs.EventTypeStatus, Message: "Loaded model: " + name})
	return nil
}

// failLoad logs and reports one failed load attempt without touching state.
func (o *Orchestrator) failLoad(name string, err error) error {
	o.log.Error().Err(err).Str("model", name).Msg("engine load failed")
	o.emit(jobs.Event{Type: jobs.EventTypeModel, Model: name, Success: false})
	o.emit(jobs.Event{Type: jobs.EventTypeError, Message: fmt.Sprintf("load model %s: %v", name, err)})
	return err
}

// ActiveIdentity returns the engine identity to report externally. The
// declared identity wins over a re-inferred one whenever its family matches
// the adapter; attribute mismatches are logged, never silently corrected.
func (o *Orchestrator) ActiveIdentity() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.adapter == nil {
		return ""
	}

	family := o.adapter.Family()

	// A family with no quantization or version variants admits only one
	// identity per catalog, so the adapter alone determines it.
	if family == domain.KindKaldi {
		if desc, ok := o.catalog.Descriptor(o.declared); ok && desc.Kind == family {
			return o.declared
		}
		if name, ok := o.findByAttributes(family); ok {
			o.declared = name
			return name
		}
		return string(family)
	}

	if o.declared != "" {
		if desc, ok := o.catalog.Descriptor(o.declared); ok && desc.Kind == family {
			if desc.Params.Quantized != o.adapter.Quantized() || desc.Params.VersionTag != o.adapter.VersionTag() {
				o.log.Warn().
					Str("declared", o.declared).
					Bool("adapterQuantized", o.adapter.Quantized()).
					Str("adapterVersionTag", o.adapter.VersionTag()).
					Msg("declared model identity disagrees with engine attributes")
			}
			return o.declared
		}
	}

	if name, ok := o.findByAttributes(family); ok {
		o.declared = name
		return name
	}
	return string(family)
}

// findByAttributes infers an identity purely from adapter attributes by
// scanning the catalog in name order.
func (o *Orchestrator) findByAttributes(family domain.ModelKind) (string, bool) {
	descriptors := o.catalog.Descriptors()
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc := descriptors[name]
		if desc.Kind != family {
			continue
		}
		if family == domain.KindKaldi {
			return name, true
		}
		if desc.Params.Quantized == o.adapter.Quantized() && desc.Params.VersionTag == o.adapter.VersionTag() {
			return name, true
		}
	}
	return "", false
}

// TranscribeBuffer feeds one PCM chunk to the active engine. It never
// returns an error: a missing engine or a decode fault yields no text and
// an error event, so a tight capture loop keeps running.
func (o *Orchestrator) TranscribeBuffer(pcm []byte) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.adapter == nil {
		o.emit(jobs.Event{Type: jobs.EventTypeError, Message: "no engine loaded for buffer transcription"})
		return "", false
	}

	text, err := o.adapter.TranscribeChunk(pcm)
	if err != nil {
		o.log.Error().Err(err).Msg("buffer transcription fault")
		o.emit(jobs.Event{Type: jobs.EventTypeError, Message: fmt.Sprintf("buffer transcription: %v", err)})
		return "", false
	}
	return text, text != ""
}

// TranscribeFile transcribes a whole media file with the active engine,
// loading the declared (or default) model first when none is active. An
// engine without the file capability is routed through the pipeline for the
// directory-based family and rejected otherwise; a different engine is
// never substituted.
func (o *Orchestrator) TranscribeFile(ctx context.Context, path string) (string, error) {
	o.mu.Lock()

	if o.adapter == nil {
		name := o.declared
		if name == "" {
			name = o.catalog.DefaultModel()
		}
		if err := o.loadLocked(name); err != nil {
			o.mu.Unlock()
			return "", err
		}
	}

	adapter := o.adapter
	family := adapter.Family()

	if adapter.SupportsFileTranscription() {
		transcriber, ok := adapter.(FileTranscriber)
		if !ok {
			o.mu.Unlock()
			err := fmt.Errorf("%w: adapter advertises file capability without implementing it", ErrCapabilityUnsupported)
			o.emit(jobs.Event{Type: jobs.EventTypeError, Message: err.Error()})
			return "", err
		}

		// Decode runs under the lock: a concurrent load must not replace the
		// adapter mid-file.
		defer o.mu.Unlock()
		text, err := transcriber.TranscribeFile(ctx, path)
		if err != nil {
			o.log.Error().Err(err).Str("path", path).Msg("file transcription fault")
			o.emit(jobs.Event{Type: jobs.EventTypeError, Message: fmt.Sprintf("transcribe file: %v", err)})
			return "", err
		}
		return text, nil
	}

	router := o.router
	o.mu.Unlock()

	if family == domain.KindKaldi && router != nil {
		// The routed pipeline feeds chunks back through TranscribeBuffer,
		// which re-acquires the lock per call.
		text, err := router(ctx, path)
		if err != nil {
			o.log.Error().Err(err).Str("path", path).Msg("routed file transcription fault")
			o.emit(jobs.Event{Type: jobs.EventTypeError, Message: fmt.Sprintf("transcribe file: %v", err)})
			return "", err
		}
		return text, nil
	}

	o.emit(jobs.Event{Type: jobs.EventTypeError, Message: ErrCapabilityUnsupported.Error()})
	return "", ErrCapabilityUnsupported
}

// SetDevice binds the audio device used by live recognition.
func (o *Orchestrator) SetDevice(device domain.AudioDevice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.device = &device
	o.emit(jobs.Event{Type: jobs.EventTypeStatus, Message: "Selected device: " + device.Name})
}

// StartRecognition begins live capture recognition. Starting while already
// recognizing is a no-op success and emits no duplicate event.
func (o *Orchestrator) StartRecognition() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.recognizing {
		return nil
	}
	if o.adapter == nil || o.device == nil {
		o.emit(jobs.Event{Type: jobs.EventTypeError, Message: ErrNotReady.Error()})
		return ErrNotReady
	}

	o.recognizing = true
	o.emit(jobs.Event{Type: jobs.EventTypeRecognition, Started: true})
	o.emit(jobs.Event{Type: jobs.EventTypeStatus, Message: "Recognition started"})
	return nil
}

// StopRecognition ends live capture recognition. Stopping while idle is a
// no-op success and emits no duplicate event.
func (o *Orchestrator) StopRecognition() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.recognizing {
		return nil
	}

	o.recognizing = false
	o.emit(jobs.Event{Type: jobs.EventTypeRecognition, Started: false})
	o.emit(jobs.Event{Type: jobs.EventTypeStatus, Message: "Recognition stopped"})
	return nil
}

// Recognizing reports whether live recognition is active.
func (o *Orchestrator) Recognizing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recognizing
}

// FinalResult flushes any pending text from the active engine.
func (o *Orchestrator) FinalResult() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.adapter == nil {
		return ""
	}
	return o.adapter.FinalResult()
}

// Reset clears the active engine's decoder state.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.adapter != nil {
		o.adapter.Reset()
	}
}

// AvailableModels maps catalog model names to their enabled flag.
func (o *Orchestrator) AvailableModels() map[string]bool {
	descriptors := o.catalog.Descriptors()
	out := make(map[string]bool, len(descriptors))
	for name, desc := range descriptors {
		out[name] = desc.Enabled
	}
	return out
}

// Close releases the active engine, if any.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.adapter == nil {
		return nil
	}
	err := o.adapter.Close()
	o.adapter = nil
	o.declared = ""
	return err
}

// emit publishes an event when a bus is configured.
func (o *Orchestrator) emit(event jobs.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}
