package enhance

import (
	"errors"
	"fmt"

	"github.com/roach88/classweave/internal/classname"
)

// ErrorCode categorizes run errors.
type ErrorCode string

const (
	// CodeResolutionMiss means a class's bytes were found in no tier.
	CodeResolutionMiss ErrorCode = "RESOLUTION_MISS"

	// CodeIOFailure means reading or writing a class file failed.
	CodeIOFailure ErrorCode = "IO_FAILURE"

	// CodeTransformFailure means a pass failed or panicked.
	CodeTransformFailure ErrorCode = "TRANSFORM_FAILURE"

	// CodeSetupFailure means the classpath, loader or manifest could not be
	// built. The run is aborted before any class is transformed.
	CodeSetupFailure ErrorCode = "SETUP_FAILURE"

	// CodeCancelled means the run stopped scheduling classes on request.
	CodeCancelled ErrorCode = "CANCELLED"
)

// RunError is an error raised during a run.
//
// Class is empty for run-level errors (setup, cancellation).
type RunError struct {
	Code    ErrorCode
	Message string
	Class   classname.Name
	Err     error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Class != "" {
		return fmt.Sprintf("%s: %s (class=%s)", e.Code, msg, e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsSetupError reports whether err aborted a run during setup.
func IsSetupError(err error) bool {
	return hasCode(err, CodeSetupFailure)
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return hasCode(err, CodeCancelled)
}

// IsClassError reports whether err is scoped to a single class.
func IsClassError(err error) bool {
	var re *RunError
	if !errors.As(err, &re) {
		return false
	}
	switch re.Code {
	case CodeIOFailure, CodeTransformFailure, CodeResolutionMiss:
		return true
	}
	return false
}

func hasCode(err error, code ErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func setupError(msg string, err error) *RunError {
	return &RunError{Code: CodeSetupFailure, Message: msg, Err: err}
}

func classError(code ErrorCode, name classname.Name, err error) *RunError {
	return &RunError{Code: code, Class: name, Err: err}
}
