package common

import (
	"errors"
	"fmt"
)

var (
	// ErrClassification means no engine signature matched.
	ErrClassification = errors.New("no engine signature matched")
	// ErrAdapterResolution means a required launch value could not be found.
	ErrAdapterResolution = errors.New("required value could not be resolved")
	// ErrTransform means a file transformation failed.
	ErrTransform = errors.New("transformation failed")
)

// Stage names a step of the launch pipeline.
type Stage string

const (
	StageClassify  Stage = "classify"
	StageSetup     Stage = "setup"
	StageTransform Stage = "transform"
	StageLaunch    Stage = "launch"
	StageConfine   Stage = "confine"
	StageRun       Stage = "run"
)

// StageError is the single diagnostic surfaced when the pipeline aborts.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fail wraps err as a StageError.
func Fail(stage Stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}
