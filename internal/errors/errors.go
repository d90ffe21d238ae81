package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline failure. Each kind maps to its own exit code.
type Kind string

const (
	KindConfig     Kind = "config"
	KindUpstream   Kind = "upstream"
	KindDataFormat Kind = "data_format"
	KindIO         Kind = "io"
)

// PipelineError is the error type returned by every stage of an export run.
type PipelineError struct {
	Kind    Kind                   `json:"kind"`
	Stage   string                 `json:"stage,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"cause,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	var msg string
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, e.Message)
	} else {
		msg = fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WithContext attaches a key/value pair and returns the same error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithStage sets the stage name when it is not already set.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// NewConfigError reports a missing or malformed catalog, setting or credential.
func NewConfigError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindConfig, Message: message, Cause: cause}
}

// NewUpstreamError reports a remote call that failed after all retries.
func NewUpstreamError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindUpstream, Message: message, Cause: cause}
}

// NewDataFormatError reports a value or period that could not be parsed, or
// a pivot collision.
func NewDataFormatError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindDataFormat, Message: message, Cause: cause}
}

// NewIOError reports a failure writing the output artifact.
func NewIOError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindIO, Message: message, Cause: cause}
}

// Configf builds a config error from a format string, without a cause.
func Configf(format string, args ...interface{}) *PipelineError {
	return NewConfigError(fmt.Sprintf(format, args...), nil)
}

// Upstreamf builds an upstream error from a format string, without a cause.
func Upstreamf(format string, args ...interface{}) *PipelineError {
	return NewUpstreamError(fmt.Sprintf(format, args...), nil)
}

// DataFormatf builds a data format error from a format string, without a cause.
func DataFormatf(format string, args ...interface{}) *PipelineError {
	return NewDataFormatError(fmt.Sprintf(format, args...), nil)
}

// IOf builds an io error from a format string, without a cause.
func IOf(format string, args ...interface{}) *PipelineError {
	return NewIOError(fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of the first PipelineError in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindUpstream:
		return 3
	case KindDataFormat:
		return 4
	case KindIO:
		return 5
	default:
		return 1
	}
}
