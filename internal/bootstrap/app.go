// Package bootstrap wires configuration, the engine registry, the
// transcription pipeline, and the Wails UI runtime into one application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"speech-orchestrator/internal/config"
	"speech-orchestrator/internal/diagnostics"
	"speech-orchestrator/internal/domain"
	"speech-orchestrator/internal/engine"
	"speech-orchestrator/internal/jobs"
	"speech-orchestrator/internal/media"
	"speech-orchestrator/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// ModelStatus is the per-model listing entry shown in the UI.
type ModelStatus struct {
	Name    string           `json:"name"`
	Kind    domain.ModelKind `json:"kind"`
	Enabled bool             `json:"enabled"`
	Valid   bool             `json:"valid"`
	Error   string           `json:"error,omitempty"`
}

// App wires configuration, engines, jobs, pipeline, and UI runtime callbacks.
type App struct {
	Settings     domain.Settings
	Store        config.Store
	Catalog      config.Catalog
	Jobs         *jobs.Manager
	Orchestrator *engine.Orchestrator
	Pipeline     *transcribe.Pipeline
	Diagnostics  domain.DiagnosticReport

	assets  fs.FS
	checker *diagnostics.Checker
	events  *jobs.EventBus
	log     zerolog.Logger

	mu         sync.Mutex
	runtimeCtx context.Context
}

// pushBus stores events and forwards each published event to the UI runtime.
type pushBus struct {
	bus        *jobs.EventBus
	runtimeCtx func() context.Context
}

// Publish records the event and emits a push notification when the UI is up.
func (b *pushBus) Publish(event jobs.Event) jobs.Event {
	published := b.bus.Publish(event)
	if ctx := b.runtimeCtx(); ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
	return published
}

// New builds the application with persisted settings, the model catalog, and
// startup diagnostics.
func New(log zerolog.Logger) (*App, error) {
	return NewWithAssets(nil, log)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS, log zerolog.Logger) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	configDir := filepath.Join(homeDir, ".speech-orchestrator")
	store := config.NewJSONStore(filepath.Join(configDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	catalog, err := config.LoadCatalog(filepath.Join(configDir, "models.json"))
	if err != nil {
		return nil, fmt.Errorf("load model catalog: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Catalog:     catalog,
		Jobs:        jobs.NewManager(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
		log:         log,
	}

	bus := &pushBus{bus: app.events, runtimeCtx: app.currentRuntimeContext}

	registry := engine.NewRegistry(log)
	registry.Register(domain.KindKaldi, engine.NewKaldiAdapter)
	registry.Register(domain.KindTransducer, engine.NewTransducerAdapter)

	app.Orchestrator = engine.NewOrchestrator(catalog, registry, bus, log)
	app.Pipeline = transcribe.New(
		media.NewFFProber(),
		media.NewFFmpegConverter(3*time.Second),
		media.NewFFmpegDecoder(),
		app.Jobs,
		bus,
		log,
	)

	// Directory-layout engines have no native whole-file decode; route those
	// requests through the streaming pipeline with the orchestrator as target.
	app.Orchestrator.SetFileRouter(func(ctx context.Context, path string) (string, error) {
		return app.Pipeline.Transcribe(ctx, path, app.Orchestrator)
	})

	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Speech Orchestrator",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context for push events and dialogs.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops any active job and releases the loaded engine.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.Pipeline.Stop(); err != nil {
		a.log.Warn().Err(err).Msg("stopping pipeline on shutdown")
	}
	if err := a.Orchestrator.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing engine on shutdown")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// LoadModel loads the named model into the engine orchestrator.
func (a *App) LoadModel(name string) error {
	return a.Orchestrator.Load(name)
}

// ActiveModel returns the identity of the currently loaded engine, or an
// empty string when none is loaded.
func (a *App) ActiveModel() string {
	return a.Orchestrator.ActiveIdentity()
}

// AvailableModels maps catalog model names to their enabled flag.
func (a *App) AvailableModels() map[string]bool {
	return a.Orchestrator.AvailableModels()
}

// Models returns the catalog with per-model on-disk validation results.
func (a *App) Models() []ModelStatus {
	descriptors := a.Catalog.Descriptors()

	out := make([]ModelStatus, 0, len(descriptors))
	for name, desc := range descriptors {
		status := ModelStatus{
			Name:    name,
			Kind:    desc.Kind,
			Enabled: desc.Enabled,
			Valid:   true,
		}
		if err := engine.ValidateLayout(desc.Path, desc.Kind, desc.Params); err != nil {
			status.Valid = false
			status.Error = err.Error()
		}
		out = append(out, status)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StartTranscription creates a file transcription job and runs it
// asynchronously against the active engine.
func (a *App) StartTranscription(inputPath string) (domain.Job, error) {
	inputPath = strings.TrimSpace(inputPath)
	if inputPath == "" {
		return domain.Job{}, fmt.Errorf("input path is empty")
	}

	return a.Pipeline.Start(inputPath, a.Orchestrator)
}

// CancelTranscription cancels the currently running job, if any.
func (a *App) CancelTranscription() error {
	if !a.Jobs.IsRunning() {
		return jobs.ErrNoRunningJob
	}
	return a.Pipeline.Stop()
}

// TranscribeFile transcribes one file synchronously with the active engine,
// loading the default model first when none is loaded.
func (a *App) TranscribeFile(path string) (string, error) {
	ctx := a.currentRuntimeContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return a.Orchestrator.TranscribeFile(ctx, path)
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// SetAudioDevice binds the audio device used by live recognition.
func (a *App) SetAudioDevice(device domain.AudioDevice) {
	a.Orchestrator.SetDevice(device)
}

// StartRecognition begins live recognition with the bound device.
func (a *App) StartRecognition() error {
	return a.Orchestrator.StartRecognition()
}

// StopRecognition ends live recognition.
func (a *App) StopRecognition() error {
	return a.Orchestrator.StopRecognition()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()

	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx := a.currentRuntimeContext()
	if ctx == nil {
		return "", errors.New("runtime context is not initialized")
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// currentRuntimeContext returns the Wails runtime context, or nil before
// startup and after shutdown.
func (a *App) currentRuntimeContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runtimeCtx
}

// normalizeSettings trims user-provided paths and model names.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelsPath = strings.TrimSpace(settings.ModelsPath)
	settings.DefaultModel = strings.TrimSpace(settings.DefaultModel)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	return settings
}
