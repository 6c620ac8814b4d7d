package transcribe

import "fmt"

// PipelineError attributes a transcription failure to the stage it occurred
// in.
type PipelineError struct {
	Stage string
	Err   error
}

// Error formats the failure with its stage.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// stageErr wraps err with its stage, passing nil through.
func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Stage: stage, Err: err}
}
