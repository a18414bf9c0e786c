package audio

import (
	"sync"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

// ScheduledVoice records one Schedule call on a MockDevice.
type ScheduledVoice struct {
	Chunk    tts.AudioChunk
	At       time.Duration
	Offset   time.Duration
	Schedule time.Duration // Device time when Schedule was called
	voice    *mockVoice
}

// Stopped reports whether the voice has been stopped.
func (s ScheduledVoice) Stopped() bool {
	s.voice.mu.Lock()
	defer s.voice.mu.Unlock()
	return s.voice.stopped
}

type mockVoice struct {
	mu      sync.Mutex
	stopped bool
	err     error
}

func (v *mockVoice) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	return v.err
}

// MockDevice keeps time without producing sound. By default the clock
// follows the wall clock; a manual device only moves when Advance is called.
type MockDevice struct {
	mu        sync.Mutex
	rate      int
	manual    bool
	base      time.Duration
	resumedAt time.Time
	suspended bool
	closed    bool

	history []ScheduledVoice

	// Error injection for testing
	scheduleErr error
	stopErr     error
	suspendErr  error
}

// NewMockDevice creates a mock device driven by the wall clock.
func NewMockDevice(sampleRate int) *MockDevice {
	return &MockDevice{rate: sampleRate, resumedAt: time.Now()}
}

// NewManualDevice creates a mock device whose clock only moves on Advance.
func NewManualDevice(sampleRate int) *MockDevice {
	return &MockDevice{rate: sampleRate, manual: true}
}

func (d *MockDevice) Now() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nowLocked()
}

func (d *MockDevice) nowLocked() time.Duration {
	if d.manual || d.suspended {
		return d.base
	}
	return d.base + time.Since(d.resumedAt)
}

// Advance moves a manual clock forward. It has no effect while suspended.
func (d *MockDevice) Advance(delta time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.manual && !d.suspended {
		d.base += delta
	}
}

func (d *MockDevice) SampleRate() int { return d.rate }

func (d *MockDevice) Schedule(chunk tts.AudioChunk, at, offset time.Duration) (Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, tts.ErrDeviceClosed
	}
	if d.scheduleErr != nil {
		return nil, d.scheduleErr
	}

	v := &mockVoice{err: d.stopErr}
	d.history = append(d.history, ScheduledVoice{
		Chunk:    chunk,
		At:       at,
		Offset:   offset,
		Schedule: d.nowLocked(),
		voice:    v,
	})
	return v, nil
}

func (d *MockDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.suspendErr != nil {
		return d.suspendErr
	}
	if !d.suspended {
		d.base = d.nowLocked()
		d.suspended = true
	}
	return nil
}

func (d *MockDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.suspended {
		d.resumedAt = time.Now()
		d.suspended = false
	}
	return nil
}

func (d *MockDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Test control methods

// History returns every Schedule call in order.
func (d *MockDevice) History() []ScheduledVoice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ScheduledVoice(nil), d.history...)
}

// Active returns the scheduled voices that have not been stopped.
func (d *MockDevice) Active() []ScheduledVoice {
	var out []ScheduledVoice
	for _, s := range d.History() {
		if !s.Stopped() {
			out = append(out, s)
		}
	}
	return out
}

// ClearHistory forgets earlier Schedule calls.
func (d *MockDevice) ClearHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// SetScheduleError makes Schedule fail with err. Pass nil to clear.
func (d *MockDevice) SetScheduleError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduleErr = err
}

// SetStopError makes voices scheduled from now on fail to stop with err.
func (d *MockDevice) SetStopError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopErr = err
}

// SetSuspendError makes Suspend fail with err.
func (d *MockDevice) SetSuspendError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspendErr = err
}
