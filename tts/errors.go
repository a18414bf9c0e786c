package tts

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for the pipeline.
var (
	// Segmentation errors
	ErrSegmentTooLong = errors.New("segment exceeds maximum character limit")
	ErrEmptyContent   = errors.New("empty content provided")
	ErrTextTooShort   = errors.New("text is too short to synthesize")

	// Synthesis errors
	ErrSynthesisFailed = errors.New("synthesis failed")
	ErrNotReady        = errors.New("synthesis precondition not ready")
	ErrVoiceNotFound   = errors.New("requested voice not found")
	ErrInvalidVoice    = errors.New("invalid voice embedding")
	ErrInvalidQuality  = errors.New("invalid quality")
	ErrInvalidSpeed    = errors.New("invalid speed")

	// Playback errors
	ErrPlaybackDevice  = errors.New("playback device error")
	ErrDeviceClosed    = errors.New("playback device is closed")
	ErrNothingToExport = errors.New("no audio to export")

	// Configuration errors
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	ErrStateTransition   = errors.New("invalid state transition")
)

// SegmentTooLongError reports a single natural text unit that cannot fit in
// one segment.
type SegmentTooLongError struct {
	Unit  string
	Limit int
}

func (e *SegmentTooLongError) Error() string {
	unit := []rune(e.Unit)
	preview := string(unit)
	if len(unit) > 40 {
		preview = string(unit[:40]) + "…"
	}
	return fmt.Sprintf("a single segment exceeds the maximum character limit of %d characters (%d): %q",
		e.Limit, len(unit), preview)
}

func (e *SegmentTooLongError) Unwrap() error { return ErrSegmentTooLong }

// SynthesisFailedError is returned when the synthesizer rejects a segment.
// Index is 1-based.
type SynthesisFailedError struct {
	Index int
	Err   error
}

func (e *SynthesisFailedError) Error() string {
	return fmt.Sprintf("synthesis failed for segment %d: %v", e.Index, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *SynthesisFailedError) Unwrap() []error {
	return []error{ErrSynthesisFailed, e.Err}
}

// PreconditionError is returned when generation is requested before its
// inputs are loaded.
type PreconditionError struct {
	What string
	Err  error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("not ready: %s: %v", e.What, e.Err)
	}
	return "not ready: " + e.What
}

func (e *PreconditionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotReady, e.Err}
	}
	return []error{ErrNotReady}
}

// PlaybackDeviceError wraps failures of the audio output primitive.
type PlaybackDeviceError struct {
	Op  string
	Err error
}

func (e *PlaybackDeviceError) Error() string {
	return fmt.Sprintf("playback device %s: %v", e.Op, e.Err)
}

func (e *PlaybackDeviceError) Unwrap() []error {
	return []error{ErrPlaybackDevice, e.Err}
}

// IsRecoverableError checks if an error is recoverable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	// Non-recoverable errors
	for _, target := range []error{ErrInvalidConfig, ErrNotReady, ErrDeviceClosed} {
		if errors.Is(err, target) {
			return false
		}
	}

	// A device failure never stops generation.
	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for warnings that don't prevent operation.
	SeverityWarning
	// SeverityError is for errors that prevent normal operation.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// TTSError attaches the component and action to an error before it is shown
// to the user or logged.
type TTSError struct {
	Err       error                  // The underlying error
	Component string                 // Component that generated the error
	Action    string                 // Action being performed when error occurred
	Severity  ErrorSeverity          // Severity of the error
	Timestamp time.Time              // When the error occurred
	Context   map[string]interface{} // Additional context
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *TTSError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewTTSError creates a new error with context.
func NewTTSError(err error, component, action string) *TTSError {
	severity := SeverityError
	if errors.Is(err, ErrPlaybackDevice) {
		severity = SeverityWarning
	}
	return &TTSError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  severity,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WithSeverity sets the error severity.
func (e *TTSError) WithSeverity(severity ErrorSeverity) *TTSError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Fields flattens the error into key/value pairs for the logger.
func (e *TTSError) Fields() []interface{} {
	fields := []interface{}{"component", e.Component, "action", e.Action, "severity", e.Severity.String()}
	for k, v := range e.Context {
		fields = append(fields, k, v)
	}
	return fields
}
