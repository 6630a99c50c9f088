package tally

import (
	"errors"
	"fmt"
)

// Step names a stage of an analysis run.
type Step string

const (
	StepLoad     Step = "load"
	StepTokenize Step = "tokenize"
	StepExtract  Step = "extract"
)

var (
	// ErrLoad marks a model that could not be loaded.
	ErrLoad = errors.New("load error")
	// ErrIO marks a text file that could not be read.
	ErrIO = errors.New("io error")
	// ErrExtract marks a failure inside the NER engine.
	ErrExtract = errors.New("extraction error")
)

// StepError records which stage failed. It matches both its step sentinel
// and the underlying cause with errors.Is.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message(), e.Err)
}

// Unwrap exposes the step sentinel and the cause.
func (e *StepError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *StepError) sentinel() error {
	switch e.Step {
	case StepLoad:
		return ErrLoad
	case StepTokenize:
		return ErrIO
	default:
		return ErrExtract
	}
}

// Message is the human readable name of the failed step.
func (e *StepError) Message() string {
	switch e.Step {
	case StepLoad:
		return "Unable to load model file"
	case StepTokenize:
		return "Unable to tokenize file"
	default:
		return "Unable to extract entities"
	}
}

func stepErr(step Step, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}
