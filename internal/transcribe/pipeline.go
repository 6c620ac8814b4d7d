// Package transcribe runs the staged file transcription flow: probe,
// convert, stream PCM into a recognition target, and aggregate the result.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speech-orchestrator/internal/domain"
	"speech-orchestrator/internal/jobs"
	"speech-orchestrator/internal/media"
)

const (
	// pcmChunkSize is the number of raw PCM bytes fed to the target per call.
	pcmChunkSize = 4000
	// progressThrottle limits how often streaming progress events are emitted.
	progressThrottle = 200 * time.Millisecond
	// streamSampleRate and streamBytesPerSample describe the decode output
	// format (16 kHz mono s16le) used to size progress estimates.
	streamSampleRate     = 16000
	streamBytesPerSample = 2
)

// Progress band boundaries per pipeline stage.
const (
	progressProbed    = 5
	progressConverted = 20
	progressStreamed  = 90
	progressComplete  = 100
)

// BufferTarget consumes PCM chunks and produces text. Satisfied by the
// engine orchestrator.
type BufferTarget interface {
	TranscribeBuffer(pcm []byte) (string, bool)
	FinalResult() string
	Reset()
}

// Pipeline executes file transcription jobs against a recognition target.
type Pipeline struct {
	prober    media.Prober
	converter media.Converter
	decoder   media.Decoder
	jobs      *jobs.Manager
	bus       jobs.Emitter
	log       zerolog.Logger

	now      func() time.Time
	newJobID func() string

	stopGrace   time.Duration
	joinTimeout time.Duration

	mu chan struct{} // capacity 1, held while a job goroutine is live

	stateMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a pipeline for the given collaborators.
func New(prober media.Prober, converter media.Converter, decoder media.Decoder, manager *jobs.Manager, bus jobs.Emitter, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		prober:      prober,
		converter:   converter,
		decoder:     decoder,
		jobs:        manager,
		bus:         bus,
		log:         log.With().Str("component", "pipeline").Logger(),
		now:         time.Now,
		newJobID:    uuid.NewString,
		stopGrace:   3 * time.Second,
		joinTimeout: 5 * time.Second,
		mu:          make(chan struct{}, 1),
	}
}

// Start launches a transcription job for filePath and returns its initial
// snapshot. Only one job may run at a time.
func (p *Pipeline) Start(filePath string, target BufferTarget) (domain.Job, error) {
	select {
	case p.mu <- struct{}{}:
	default:
		return domain.Job{}, jobs.ErrJobAlreadyRunning
	}

	jobID := p.newJobID()
	if err := p.jobs.Start(jobID, filePath); err != nil {
		<-p.mu
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.stateMu.Lock()
	p.cancel = cancel
	p.done = done
	p.stateMu.Unlock()

	job := p.jobs.Current()
	p.emitStatus(jobID, domain.JobStatusProbing, "probing media")

	go func() {
		defer close(done)
		defer func() { <-p.mu }()
		p.run(ctx, jobID, filePath, target)
	}()

	return job, nil
}

// Stop cancels the active job, if any, and waits for its goroutine to exit.
// Stopping an idle pipeline is a no-op.
func (p *Pipeline) Stop() error {
	p.stateMu.Lock()
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()
	if cancel == nil || !p.jobs.IsRunning() {
		return nil
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(p.joinTimeout):
		return fmt.Errorf("job did not stop within %s", p.joinTimeout)
	}
}

// run executes all stages for one job and emits exactly one completion-class
// event: a result, an error with failed status, or a cancelled status.
func (p *Pipeline) run(ctx context.Context, jobID, filePath string, target BufferTarget) {
	text, err := p.execute(ctx, jobID, filePath, target, true)
	if err != nil {
		// A killed decoder surfaces as a decode error, not context.Canceled,
		// so the context itself decides whether this was a cancellation.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || p.jobs.Current().Status == domain.JobStatusCancelled {
			p.finishCancelled(jobID)
			return
		}
		p.finishFailed(jobID, err)
		return
	}

	p.jobs.SetText(text)
	p.jobs.SetProgress(progressComplete)
	if err := p.jobs.Transition(domain.JobStatusDone); err != nil {
		p.log.Warn().Err(err).Msg("transition to done rejected")
	}

	p.log.Info().Str("job", jobID).Int("chars", len(text)).Msg("transcription complete")
	p.bus.Publish(jobs.Event{
		JobID:       jobID,
		Type:        jobs.EventTypeResult,
		Status:      domain.JobStatusDone,
		Text:        text,
		Percent:     progressComplete,
		Success:     true,
		EmptyResult: text == "",
	})
}

// Transcribe runs the staged flow synchronously and returns the aggregated
// transcript. Used when the engine layer routes a file through the pipeline
// without managing job state. It occupies the same single-job slot as Start:
// two PCM streams must never interleave into one recognition target.
func (p *Pipeline) Transcribe(ctx context.Context, filePath string, target BufferTarget) (string, error) {
	select {
	case p.mu <- struct{}{}:
	default:
		return "", jobs.ErrJobAlreadyRunning
	}
	defer func() { <-p.mu }()

	return p.execute(ctx, "", filePath, target, false)
}

// execute performs probe, convert, stream and aggregate. Temp artifacts are
// removed on every exit path. When tracked is false no job state or events
// are produced.
func (p *Pipeline) execute(ctx context.Context, jobID, filePath string, target BufferTarget, tracked bool) (string, error) {
	duration, err := p.prober.Probe(ctx, filePath)
	if err != nil {
		return "", stageErr("probe", err)
	}
	if tracked {
		p.jobs.SetDuration(duration)
		p.setProgress(jobID, progressProbed, "probed")
		if err := p.transition(domain.JobStatusConverting, "converting to wav"); err != nil {
			return "", err
		}
	}

	tmpDir, err := os.MkdirTemp("", "speech-orchestrator-")
	if err != nil {
		return "", stageErr("convert", fmt.Errorf("create temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.log.Warn().Err(err).Str("dir", tmpDir).Msg("temp cleanup failed")
		}
	}()

	wavPath := filepath.Join(tmpDir, "audio.wav")
	if err := p.converter.Convert(ctx, filePath, wavPath); err != nil {
		return "", stageErr("convert", err)
	}
	if tracked {
		p.setProgress(jobID, progressConverted, "converted")
		if err := p.transition(domain.JobStatusStreaming, "streaming audio"); err != nil {
			return "", err
		}
	}

	parts, err := p.stream(ctx, jobID, wavPath, duration, target, tracked)
	if err != nil {
		return "", stageErr("stream", err)
	}
	if tracked {
		p.setProgress(jobID, progressStreamed, "streamed")
		if err := p.transition(domain.JobStatusAggregating, "aggregating"); err != nil {
			return "", err
		}
	}

	if final := strings.TrimSpace(target.FinalResult()); final != "" {
		parts = append(parts, final)
	}
	target.Reset()

	// Shaping runs once over the joined aggregate, never per fragment:
	// utterance boundaries are not sentence boundaries.
	return shapeText(strings.Join(parts, " ")), nil
}

// stream feeds decoded PCM into the target in fixed-size chunks and collects
// intermediate text segments.
func (p *Pipeline) stream(ctx context.Context, jobID, wavPath string, duration float64, target BufferTarget, tracked bool) ([]string, error) {
	stream, err := p.decoder.Start(ctx, wavPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if ctx.Err() != nil {
			if err := stream.Stop(p.stopGrace); err != nil {
				p.log.Warn().Err(err).Msg("decode stream stop failed")
			}
		}
	}()

	totalBytes := int64(duration * streamSampleRate * streamBytesPerSample)
	var consumed int64
	var parts []string
	lastEmit := time.Time{}

	buf := make([]byte, pcmChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := io.ReadFull(stream, buf)
		if n > 0 {
			consumed += int64(n)
			if text, ok := target.TranscribeBuffer(buf[:n]); ok && strings.TrimSpace(text) != "" {
				parts = append(parts, text)
				if tracked {
					p.bus.Publish(jobs.Event{
						JobID: jobID,
						Type:  jobs.EventTypeText,
						Text:  text,
					})
				}
			}
		}

		atEOF := readErr == io.EOF || readErr == io.ErrUnexpectedEOF
		if tracked {
			now := p.now()
			if atEOF || now.Sub(lastEmit) >= progressThrottle {
				lastEmit = now
				p.setProgress(jobID, streamPercent(consumed, totalBytes), "streaming")
			}
		}

		if atEOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: read pcm: %v", media.ErrDecode, readErr)
		}
	}

	if err := stream.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// streamPercent maps consumed bytes to the streaming progress band.
func streamPercent(consumed, total int64) int {
	if total <= 0 {
		return progressConverted
	}
	frac := float64(consumed) / float64(total)
	if frac > 1 {
		frac = 1
	}
	return progressConverted + int(frac*float64(progressStreamed-progressConverted))
}

// transition applies a job stage change and emits the matching status event.
func (p *Pipeline) transition(status domain.JobStatus, message string) error {
	if err := p.jobs.Transition(status); err != nil {
		return err
	}
	p.emitStatus(p.jobs.Current().ID, status, message)
	return nil
}

// setProgress updates the job and publishes a progress event.
func (p *Pipeline) setProgress(jobID string, percent int, message string) {
	p.jobs.SetProgress(percent)
	p.bus.Publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeProgress,
		Percent: p.jobs.Current().Progress,
		Message: message,
	})
}

// emitStatus publishes a status event for the given stage.
func (p *Pipeline) emitStatus(jobID string, status domain.JobStatus, message string) {
	p.bus.Publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// finishFailed marks the job failed and publishes the terminal error event.
func (p *Pipeline) finishFailed(jobID string, cause error) {
	if err := p.jobs.Transition(domain.JobStatusFailed); err != nil {
		p.log.Warn().Err(err).Msg("transition to failed rejected")
	}
	p.log.Error().Err(cause).Str("job", jobID).Msg("transcription failed")
	p.bus.Publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Message: cause.Error(),
	})
}

// finishCancelled records cancellation and publishes the terminal status.
func (p *Pipeline) finishCancelled(jobID string) {
	if p.jobs.Current().Status != domain.JobStatusCancelled {
		if err := p.jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
			p.log.Warn().Err(err).Msg("cancel after stop rejected")
		}
	}
	p.log.Info().Str("job", jobID).Msg("transcription cancelled")
	p.emitStatus(jobID, domain.JobStatusCancelled, "cancelled")
}
