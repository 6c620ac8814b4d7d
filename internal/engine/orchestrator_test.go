package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"speech-orchestrator/internal/domain"
	"speech-orchestrator/internal/jobs"
)

// fakeAdapter is a configurable in-memory Adapter.
type fakeAdapter struct {
	family    domain.ModelKind
	path      string
	quantized bool
	version   string

	supportsFile bool
	fileText     string

	chunkText string
	chunkErr  error
	finalText string

	closed bool
	resets int
}

func (f *fakeAdapter) Family() domain.ModelKind          { return f.family }
func (f *fakeAdapter) ModelPath() string                 { return f.path }
func (f *fakeAdapter) Quantized() bool                   { return f.quantized }
func (f *fakeAdapter) VersionTag() string                { return f.version }
func (f *fakeAdapter) SupportsFileTranscription() bool   { return f.supportsFile }
func (f *fakeAdapter) FinalResult() string               { return f.finalText }
func (f *fakeAdapter) Reset()                            { f.resets++ }
func (f *fakeAdapter) Close() error                      { f.closed = true; return nil }
func (f *fakeAdapter) TranscribeChunk([]byte) (string, error) {
	return f.chunkText, f.chunkErr
}

func (f *fakeAdapter) TranscribeFile(context.Context, string) (string, error) {
	return f.fileText, nil
}

// fakeCatalog is an in-memory config.Catalog.
type fakeCatalog struct {
	models map[string]domain.ModelDescriptor
	def    string
}

func (c *fakeCatalog) Descriptor(name string) (domain.ModelDescriptor, bool) {
	desc, ok := c.models[name]
	return desc, ok
}

func (c *fakeCatalog) Descriptors() map[string]domain.ModelDescriptor {
	out := make(map[string]domain.ModelDescriptor, len(c.models))
	for name, desc := range c.models {
		out[name] = desc
	}
	return out
}

func (c *fakeCatalog) DefaultModel() string { return c.def }

// writeKaldiModel creates a valid directory layout and returns its path.
func writeKaldiModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, filepath.Join("am", "final.mdl"))
	return dir
}

// writeTransducerModel creates a valid component layout for params.
func writeTransducerModel(t *testing.T, params domain.ModelParams) string {
	t.Helper()
	dir := t.TempDir()
	encoder, decoder, joiner, tokens := transducerFileNames(params)
	writeFiles(t, dir, encoder, decoder, joiner, tokens)
	return dir
}

// newTestOrchestrator builds an orchestrator whose factories hand out the
// provided adapters by family.
func newTestOrchestrator(catalog *fakeCatalog, bus jobs.Emitter, adapters map[domain.ModelKind]*fakeAdapter) *Orchestrator {
	registry := NewRegistry(zerolog.Nop())
	for kind, adapter := range adapters {
		a := adapter
		registry.Register(kind, func(domain.ModelDescriptor) (Adapter, error) { return a, nil })
	}
	return NewOrchestrator(catalog, registry, bus, zerolog.Nop())
}

// TestOrchestratorLoadUnknownModel verifies the unknown-name failure path.
func TestOrchestratorLoadUnknownModel(t *testing.T) {
	bus := jobs.NewEventBus(100)
	o := newTestOrchestrator(&fakeCatalog{models: map[string]domain.ModelDescriptor{}}, bus, nil)

	if err := o.Load("ghost"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("error = %v, want %v", err, ErrUnknownModel)
	}

	events := bus.Since(0)
	if len(events) == 0 {
		t.Fatal("expected failure events")
	}
	if events[0].Type != jobs.EventTypeModel || events[0].Success {
		t.Fatalf("first event = %+v, want failed model event", events[0])
	}
}

// TestOrchestratorLoadDisabledModel verifies disabled models are rejected.
func TestOrchestratorLoadDisabledModel(t *testing.T) {
	catalog := &fakeCatalog{models: map[string]domain.ModelDescriptor{
		"off": {Name: "off", Kind: domain.KindKaldi, Path: writeKaldiModel(t), Enabled: false},
	}}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), nil)

	if err := o.Load("off"); !errors.Is(err, ErrModelDisabled) {
		t.Fatalf("error = %v, want %v", err, ErrModelDisabled)
	}
}

// TestOrchestratorLoadIsAtomic verifies a failed load leaves the previous
// engine active and unclosed.
func TestOrchestratorLoadIsAtomic(t *testing.T) {
	goodPath := writeKaldiModel(t)
	catalog := &fakeCatalog{models: map[string]domain.ModelDescriptor{
		"good": {Name: "good", Kind: domain.KindKaldi, Path: goodPath, Enabled: true},
		"bad":  {Name: "bad", Kind: domain.KindKaldi, Path: filepath.Join(goodPath, "absent"), Enabled: true},
	}}
	adapter := &fakeAdapter{family: domain.KindKaldi, path: goodPath}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), map[domain.ModelKind]*fakeAdapter{
		domain.KindKaldi: adapter,
	})

	if err := o.Load("good"); err != nil {
		t.Fatalf("load good: %v", err)
	}

	err := o.Load("bad")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	if adapter.closed {
		t.Fatal("previous adapter must survive a failed load")
	}
	if got := o.ActiveIdentity(); got != "good" {
		t.Fatalf("active identity = %q, want good", got)
	}
}

// TestOrchestratorLoadSwapClosesPrevious verifies engine replacement.
func TestOrchestratorLoadSwapClosesPrevious(t *testing.T) {
	kaldiPath := writeKaldiModel(t)
	transducerPath := writeTransducerModel(t, domain.ModelParams{})
	catalog := &fakeCatalog{models: map[string]domain.ModelDescriptor{
		"kaldi-ru": {Name: "kaldi-ru", Kind: domain.KindKaldi, Path: kaldiPath, Enabled: true},
		"zip-ru":   {Name: "zip-ru", Kind: domain.KindTransducer, Path: transducerPath, Enabled: true},
	}}

	first := &fakeAdapter{family: domain.KindKaldi, path: kaldiPath}
	second := &fakeAdapter{family: domain.KindTransducer, path: transducerPath}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), map[domain.ModelKind]*fakeAdapter{
		domain.KindKaldi:      first,
		domain.KindTransducer: second,
	})

	if err := o.Load("kaldi-ru"); err != nil {
		t.Fatalf("load kaldi: %v", err)
	}
	if err := o.Load("zip-ru"); err != nil {
		t.Fatalf("load transducer: %v", err)
	}

	if !first.closed {
		t.Fatal("expected previous adapter to be closed")
	}
	if got := o.ActiveIdentity(); got != "zip-ru" {
		t.Fatalf("active identity = %q, want zip-ru", got)
	}
}

// TestOrchestratorActiveIdentityDeclaredWins verifies that a declared name
// with a matching family is kept even when adapter attributes disagree, and
// that the disagreement is logged as a warning rather than corrected.
func TestOrchestratorActiveIdentityDeclaredWins(t *testing.T) {
	params := domain.ModelParams{Quantized: true}
	path := writeTransducerModel(t, params)
	catalog := &fakeCatalog{models: map[string]domain.ModelDescriptor{
		"zip-int8": {Name: "zip-int8", Kind: domain.KindTransducer, Path: path, Enabled: true, Params: params},
	}}

	// The adapter reports standard precision, contradicting the descriptor.
	adapter := &fakeAdapter{family: domain.KindTransducer, path: path, quantized: false}
	registry := NewRegistry(zerolog.Nop())
	registry.Register(domain.KindTransducer, func(domain.ModelDescriptor) (Adapter, error) { return adapter, nil })

	var logBuf bytes.Buffer
	o := NewOrchestrator(catalog, registry, jobs.NewEventBus(100), zerolog.New(&logBuf))

	if err := o.Load("zip-int8"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := o.ActiveIdentity(); got != "zip-int8" {
		t.Fatalf("active identity = %q, want zip-int8", got)
	}

	logged := logBuf.String()
	if !strings.Contains(logged, `"level":"warn"`) || !strings.Contains(logged, "disagrees with engine attributes") {
		t.Fatalf("expected identity mismatch warning, log:\n%s", logged)
	}
}

// TestOrchestratorActiveIdentityInferredFromAttributes verifies the catalog
// scan used when no declared name applies.
func TestOrchestratorActiveIdentityInferredFromAttributes(t *testing.T) {
	quantized := domain.ModelParams{Quantized: true, VersionTag: "2023-06-26"}
	catalog := &fakeCatalog{models: map[string]domain.ModelDescriptor{
		"zip-std":  {Name: "zip-std", Kind: domain.KindTransducer, Path: "/m/std", Enabled: true},
		"zip-int8": {Name: "zip-int8", Kind: domain.KindTransducer, Path: "/m/int8", Enabled: true, Params: quantized},
	}}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), nil)

	o.adapter = &fakeAdapter{family: domain.KindTransducer, quantized: true, version: "2023-06-26"}

	if got := o.ActiveIdentity(); got != "zip-int8" {
		t.Fatalf("active identity = %q, want zip-int8", got)
	}
	// The inferred name is persisted as the new declared identity.
	if o.declared != "zip-int8" {
		t.Fatalf("declared = %q, want zip-int8", o.declared)
	}
}

// TestOrchestratorActiveIdentityNoEngine verifies the empty identity.
func TestOrchestratorActiveIdentityNoEngine(t *testing.T) {
	o := newTestOrchestrator(&fakeCatalog{models: map[string]domain.ModelDescriptor{}}, jobs.NewEventBus(10), nil)
	if got := o.ActiveIdentity(); got != "" {
		t.Fatalf("active identity = %q, want empty", got)
	}
}

// TestOrchestratorTranscribeBuffer verifies chunk decoding and its
// never-fails contract.
func TestOrchestratorTranscribeBuffer(t *testing.T) {
	bus := jobs.NewEventBus(100)
	o := newTestOrchestrator(&fakeCatalog{models: map[string]domain.ModelDescriptor{}}, bus, nil)

	if text, ok := o.TranscribeBuffer([]byte{0, 0}); ok || text != "" {
		t.Fatalf("no engine: got (%q, %v), want empty miss", text, ok)
	}

	o.adapter = &fakeAdapter{family: domain.KindKaldi, chunkText: "привет мир"}
	text, ok := o.TranscribeBuffer([]byte{0, 0})
	if !ok || text != "привет мир" {
		t.Fatalf("got (%q, %v)", text, ok)
	}

	o.adapter = &fakeAdapter{family: domain.KindKaldi, chunkErr: errors.New("native fault")}
	if text, ok := o.TranscribeBuffer([]byte{0, 0}); ok || text != "" {
		t.Fatalf("fault: got (%q, %v), want empty miss", text, ok)
	}

	var errorEvents int
	for _, event := range bus.Since(0) {
		if event.Type == jobs.EventTypeError {
			errorEvents++
		}
	}
	if errorEvents != 2 {
		t.Fatalf("error events = %d, want 2", errorEvents)
	}
}

// TestOrchestratorTranscribeFileNative verifies the native file path with a
// lazy default-model load.
func TestOrchestratorTranscribeFileNative(t *testing.T) {
	params := domain.ModelParams{}
	path := writeTransducerModel(t, params)
	catalog := &fakeCatalog{
		def: "zip-ru",
		models: map[string]domain.ModelDescriptor{
			"zip-ru": {Name: "zip-ru", Kind: domain.KindTransducer, Path: path, Enabled: true},
		},
	}
	adapter := &fakeAdapter{family: domain.KindTransducer, path: path, supportsFile: true, fileText: "это тест"}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), map[domain.ModelKind]*fakeAdapter{
		domain.KindTransducer: adapter,
	})

	text, err := o.TranscribeFile(context.Background(), "/media/talk.wav")
	if err != nil {
		t.Fatalf("transcribe file: %v", err)
	}
	if text != "это тест" {
		t.Fatalf("text = %q", text)
	}
	if got := o.ActiveIdentity(); got != "zip-ru" {
		t.Fatalf("active identity = %q, want lazily loaded default", got)
	}
}

// TestOrchestratorTranscribeFileRoutesKaldi verifies the pipeline fallback
// for the family without native file decoding.
func TestOrchestratorTranscribeFileRoutesKaldi(t *testing.T) {
	path := writeKaldiModel(t)
	catalog := &fakeCatalog{
		def: "kaldi-ru",
		models: map[string]domain.ModelDescriptor{
			"kaldi-ru": {Name: "kaldi-ru", Kind: domain.KindKaldi, Path: path, Enabled: true},
		},
	}
	adapter := &fakeAdapter{family: domain.KindKaldi, path: path}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), map[domain.ModelKind]*fakeAdapter{
		domain.KindKaldi: adapter,
	})

	var routedPath string
	o.SetFileRouter(func(_ context.Context, p string) (string, error) {
		routedPath = p
		return "routed text", nil
	})

	text, err := o.TranscribeFile(context.Background(), "/media/talk.mp4")
	if err != nil {
		t.Fatalf("transcribe file: %v", err)
	}
	if text != "routed text" {
		t.Fatalf("text = %q", text)
	}
	if routedPath != "/media/talk.mp4" {
		t.Fatalf("routed path = %q", routedPath)
	}
}

// TestOrchestratorTranscribeFileRouterFaultEmitsError verifies a failed
// routed transcription surfaces through the event stream, not just the
// returned error.
func TestOrchestratorTranscribeFileRouterFaultEmitsError(t *testing.T) {
	path := writeKaldiModel(t)
	catalog := &fakeCatalog{
		def: "kaldi-ru",
		models: map[string]domain.ModelDescriptor{
			"kaldi-ru": {Name: "kaldi-ru", Kind: domain.KindKaldi, Path: path, Enabled: true},
		},
	}
	bus := jobs.NewEventBus(100)
	o := newTestOrchestrator(catalog, bus, map[domain.ModelKind]*fakeAdapter{
		domain.KindKaldi: {family: domain.KindKaldi, path: path},
	})

	cause := errors.New("decode stream ended early")
	o.SetFileRouter(func(context.Context, string) (string, error) {
		return "", cause
	})

	if _, err := o.TranscribeFile(context.Background(), "/media/talk.mp4"); !errors.Is(err, cause) {
		t.Fatalf("error = %v, want %v", err, cause)
	}

	var sawError bool
	for _, event := range bus.Since(0) {
		if event.Type == jobs.EventTypeError && strings.Contains(event.Message, "decode stream ended early") {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("expected an error event for the routed fault")
	}
}

// TestOrchestratorTranscribeFileUnsupported verifies fail-closed capability
// checking: no substitution, an explicit error.
func TestOrchestratorTranscribeFileUnsupported(t *testing.T) {
	path := writeTransducerModel(t, domain.ModelParams{})
	catalog := &fakeCatalog{
		def: "zip-ru",
		models: map[string]domain.ModelDescriptor{
			"zip-ru": {Name: "zip-ru", Kind: domain.KindTransducer, Path: path, Enabled: true},
		},
	}
	adapter := &fakeAdapter{family: domain.KindTransducer, path: path, supportsFile: false}
	o := newTestOrchestrator(catalog, jobs.NewEventBus(100), map[domain.ModelKind]*fakeAdapter{
		domain.KindTransducer: adapter,
	})
	o.SetFileRouter(func(context.Context, string) (string, error) {
		t.Fatal("router must not be used for non-kaldi families")
		return "", nil
	})

	_, err := o.TranscribeFile(context.Background(), "/media/talk.wav")
	if !errors.Is(err, ErrCapabilityUnsupported) {
		t.Fatalf("error = %v, want %v", err, ErrCapabilityUnsupported)
	}
}

// TestOrchestratorRecognitionLifecycle verifies ready checks and idempotent
// start/stop behavior.
func TestOrchestratorRecognitionLifecycle(t *testing.T) {
	bus := jobs.NewEventBus(100)
	o := newTestOrchestrator(&fakeCatalog{models: map[string]domain.ModelDescriptor{}}, bus, nil)

	if err := o.StartRecognition(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("error = %v, want %v", err, ErrNotReady)
	}

	o.adapter = &fakeAdapter{family: domain.KindKaldi}
	o.SetDevice(domain.AudioDevice{Index: "2", Name: "USB mic", IsInput: true})

	if err := o.StartRecognition(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := o.StartRecognition(); err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if !o.Recognizing() {
		t.Fatal("expected recognizing")
	}

	if err := o.StopRecognition(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := o.StopRecognition(); err != nil {
		t.Fatalf("repeat stop: %v", err)
	}

	var recognitionEvents int
	for _, event := range bus.Since(0) {
		if event.Type == jobs.EventTypeRecognition {
			recognitionEvents++
		}
	}
	if recognitionEvents != 2 {
		t.Fatalf("recognition events = %d, want one start and one stop", recognitionEvents)
	}
}

// TestOrchestratorClose verifies engine release.
func TestOrchestratorClose(t *testing.T) {
	o := newTestOrchestrator(&fakeCatalog{models: map[string]domain.ModelDescriptor{}}, jobs.NewEventBus(10), nil)
	adapter := &fakeAdapter{family: domain.KindKaldi}
	o.adapter = adapter
	o.declared = "kaldi-ru"

	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !adapter.closed {
		t.Fatal("expected adapter to be closed")
	}
	if got := o.ActiveIdentity(); got != "" {
		t.Fatalf("active identity after close = %q, want empty", got)
	}
}
