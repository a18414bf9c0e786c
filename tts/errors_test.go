package tts

import (
	"errors"
	"strings"
	"testing"
)

// TestIsRecoverableError tests the IsRecoverableError function.
func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
	}{
		// Non-recoverable errors
		{"invalid config", ErrInvalidConfig, false},
		{"not ready", &PreconditionError{What: "voice embedding"}, false},
		{"device closed", ErrDeviceClosed, false},

		// Recoverable errors
		{"synthesis failed", &SynthesisFailedError{Index: 2, Err: errors.New("boom")}, true},
		{"device error", &PlaybackDeviceError{Op: "schedule", Err: errors.New("busy")}, true},
		{"segment too long", &SegmentTooLongError{Unit: "x", Limit: 1}, true},

		// Nil error is recoverable
		{"nil error", nil, true},

		// Unknown error is recoverable by default
		{"unknown error", errors.New("unknown"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRecoverableError(tt.err)
			if result != tt.recoverable {
				t.Errorf("IsRecoverableError(%v) = %v, want %v", tt.err, result, tt.recoverable)
			}
		})
	}
}

// TestTypedErrorsUnwrap tests that typed errors match their sentinels.
func TestTypedErrorsUnwrap(t *testing.T) {
	cause := errors.New("model crashed")

	tests := []struct {
		name    string
		err     error
		targets []error
		substr  string
	}{
		{
			name:    "segment too long",
			err:     &SegmentTooLongError{Unit: strings.Repeat("a", 60), Limit: 50},
			targets: []error{ErrSegmentTooLong},
			substr:  "maximum character limit of 50",
		},
		{
			name:    "synthesis failed",
			err:     &SynthesisFailedError{Index: 3, Err: cause},
			targets: []error{ErrSynthesisFailed, cause},
			substr:  "segment 3",
		},
		{
			name:    "precondition",
			err:     &PreconditionError{What: `voice "Robot"`, Err: ErrVoiceNotFound},
			targets: []error{ErrNotReady, ErrVoiceNotFound},
			substr:  "Robot",
		},
		{
			name:    "playback device",
			err:     &PlaybackDeviceError{Op: "schedule", Err: cause},
			targets: []error{ErrPlaybackDevice, cause},
			substr:  "schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.targets {
				if !errors.Is(tt.err, target) {
					t.Errorf("errors.Is(%v, %v) = false", tt.err, target)
				}
			}
			if !strings.Contains(tt.err.Error(), tt.substr) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.substr)
			}
		})
	}

	var failed *SynthesisFailedError
	wrapped := NewTTSError(&SynthesisFailedError{Index: 7, Err: cause}, "stream", "next")
	if !errors.As(wrapped, &failed) || failed.Index != 7 {
		t.Errorf("errors.As through TTSError failed: %v", wrapped)
	}
}

// TestTTSError tests the TTSError type.
func TestTTSError(t *testing.T) {
	baseErr := errors.New("test error")

	ttsErr := NewTTSError(baseErr, "TestComponent", "TestAction")

	if ttsErr.Err != baseErr {
		t.Errorf("Err = %v, want %v", ttsErr.Err, baseErr)
	}
	if ttsErr.Severity != SeverityError {
		t.Errorf("Severity = %v, want %v", ttsErr.Severity, SeverityError)
	}
	if ttsErr.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if got := ttsErr.Error(); got != "TestComponent: TestAction: test error" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(ttsErr, baseErr) {
		t.Error("errors.Is should find the base error")
	}

	ttsErr.WithSeverity(SeverityCritical).WithContext("segment", 4)
	if ttsErr.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want critical", ttsErr.Severity)
	}
	if ttsErr.Context["segment"] != 4 {
		t.Errorf("Context[segment] = %v, want 4", ttsErr.Context["segment"])
	}

	fields := ttsErr.Fields()
	if len(fields) != 8 {
		t.Errorf("Fields() returned %d values, want 8", len(fields))
	}

	deviceErr := NewTTSError(&PlaybackDeviceError{Op: "stop", Err: baseErr}, "audio", "stop")
	if deviceErr.Severity != SeverityWarning {
		t.Errorf("device error severity = %v, want warning", deviceErr.Severity)
	}
}
