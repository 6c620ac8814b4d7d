package jobs

import (
	"errors"
	"fmt"
	"sync"

	"speech-orchestrator/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks the single allowed active job and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start creates a new job for filePath and moves it to the probing stage.
func (m *Manager) Start(jobID, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:       jobID,
		FilePath: filePath,
		Status:   domain.JobStatusProbing,
	}
	return nil
}

// Transition validates and applies state transitions for the current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// SetDuration records the probed media duration on the current job.
func (m *Manager) SetDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.DurationSeconds = seconds
}

// SetProgress applies a progress update. Progress never moves backwards
// within one job.
func (m *Manager) SetProgress(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if percent < m.current.Progress {
		return
	}
	if percent > 100 {
		percent = 100
	}
	m.current.Progress = percent
}

// SetText records the final aggregated transcript on the current job.
func (m *Manager) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Text = text
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears job metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Cancel moves an active job to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Status) {
		return ErrNoRunningJob
	}
	m.current.Status = domain.JobStatusCancelled
	return nil
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusProbing, domain.JobStatusConverting,
		domain.JobStatusStreaming, domain.JobStatusAggregating:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusProbing
	case domain.JobStatusProbing:
		return to == domain.JobStatusConverting || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusConverting:
		return to == domain.JobStatusStreaming || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusStreaming:
		return to == domain.JobStatusAggregating || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusAggregating:
		return to == domain.JobStatusDone || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	case domain.JobStatusDone, domain.JobStatusFailed, domain.JobStatusCancelled:
		return to == domain.JobStatusProbing || to == domain.JobStatusIdle
	default:
		return false
	}
}
