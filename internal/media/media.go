// Package media wraps the external ffprobe/ffmpeg tools behind small
// interfaces so the transcription pipeline never touches os/exec directly.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrProbe marks failures while reading media metadata.
var ErrProbe = errors.New("media probe failed")

// ErrDecode marks failures while decoding media to PCM.
var ErrDecode = errors.New("media decode failed")

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Prober reports the duration of a media file in seconds.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// FFProber probes media via the ffprobe CLI.
type FFProber struct {
	binary string
	runner commandRunner
}

// NewFFProber creates a prober using ffprobe from PATH.
func NewFFProber() *FFProber {
	return &FFProber{binary: "ffprobe", runner: &execRunner{}}
}

// probeFormat is the subset of ffprobe's JSON output we consume.
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the container duration in seconds.
func (p *FFProber) Probe(ctx context.Context, path string) (float64, error) {
	result, err := p.runner.Run(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe exit %d: %v", ErrProbe, result.ExitCode, err)
	}

	var parsed probeFormat
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe output: %v", ErrProbe, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("%w: no usable duration for %s", ErrProbe, path)
	}
	return duration, nil
}

// Converter normalizes a media file to canonical PCM WAV (16 kHz mono).
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// FFmpegConverter converts media via the ffmpeg CLI. Cancelling the context
// sends a graceful termination signal first and force-kills after the
// configured grace period.
type FFmpegConverter struct {
	binary string
	grace  time.Duration
}

// NewFFmpegConverter creates a converter using ffmpeg from PATH.
func NewFFmpegConverter(grace time.Duration) *FFmpegConverter {
	return &FFmpegConverter{binary: "ffmpeg", grace: grace}
}

// Convert writes a 16 kHz mono s16le WAV file to dst.
func (c *FFmpegConverter) Convert(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, c.binary,
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dst,
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = c.grace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: ffmpeg conversion: %v: %s", ErrDecode, err, lastLine(stderr.String()))
	}
	return nil
}

// DecodeStream is a running decode process exposing raw s16le PCM. It must
// be stopped or drained; both release the process.
type DecodeStream interface {
	io.Reader
	// Stop requests termination, escalating to a forced kill after grace.
	Stop(grace time.Duration) error
	// Wait blocks until the process exits and returns its final status.
	Wait() error
}

// Decoder starts a PCM decode process for a media file.
type Decoder interface {
	Start(ctx context.Context, path string) (DecodeStream, error)
}

// FFmpegDecoder streams raw PCM via the ffmpeg CLI.
type FFmpegDecoder struct {
	binary string
}

// NewFFmpegDecoder creates a decoder using ffmpeg from PATH.
func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{binary: "ffmpeg"}
}

// Start launches ffmpeg decoding path to 16 kHz mono s16le on stdout.
func (d *FFmpegDecoder) Start(ctx context.Context, path string) (DecodeStream, error) {
	cmd := exec.CommandContext(ctx, d.binary,
		"-hide_banner",
		"-nostdin",
		"-i", path,
		"-ar", "16000",
		"-ac", "1",
		"-f", "s16le",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrDecode, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrDecode, err)
	}

	return &ffmpegStream{cmd: cmd, stdout: stdout, stderr: &stderr}, nil
}

// ffmpegStream owns one running decode process.
type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer

	waitOnce sync.Once
	waitErr  error
}

// Read returns decoded PCM bytes from the process stdout.
func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Wait reaps the process exactly once.
func (s *ffmpegStream) Wait() error {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()
		if err != nil {
			s.waitErr = fmt.Errorf("%w: ffmpeg decode: %v: %s", ErrDecode, err, lastLine(s.stderr.String()))
		}
	})
	return s.waitErr
}

// Stop signals the process to terminate and force-kills after grace.
func (s *ffmpegStream) Stop(grace time.Duration) error {
	if s.cmd.Process == nil {
		return nil
	}

	_ = s.cmd.Process.Signal(os.Interrupt)

	done := make(chan struct{})
	go func() {
		_ = s.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		if err := s.cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	}
}

// lastLine returns the final non-empty line of tool output for error text.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
