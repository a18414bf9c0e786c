package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tonic/tts"
)

// Device is an output with its own clock. Chunks are scheduled at absolute
// device times, so back-to-back chunks play without gaps regardless of when
// they were submitted.
type Device interface {
	// Now returns the device clock. It does not advance while suspended.
	Now() time.Duration

	// SampleRate returns the output rate.
	SampleRate() int

	// Schedule plays chunk starting at device time at, beginning offset into
	// the chunk. A time in the past starts immediately.
	Schedule(chunk tts.AudioChunk, at, offset time.Duration) (Voice, error)

	// Suspend stops the clock and output. Resume restarts them.
	Suspend() error
	Resume() error
	Suspended() bool

	// Close releases the device. A closed device rejects Schedule.
	Close() error
}

// Voice is one scheduled playback instance.
type Voice interface {
	Stop() error
}

// DeviceKind selects a Device implementation.
type DeviceKind string

const (
	// DeviceAuto uses oto unless running in CI or oto fails to start.
	DeviceAuto DeviceKind = "auto"
	// DeviceOto plays through the system's audio output.
	DeviceOto DeviceKind = "oto"
	// DeviceMock keeps time without producing sound.
	DeviceMock DeviceKind = "mock"
)

// DeviceOptions configures a new Device.
type DeviceOptions struct {
	SampleRate int
	Volume     float64
}

// DefaultDeviceOptions returns options for the standard output format.
func DefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{SampleRate: tts.SampleRate, Volume: 1.0}
}

// IsCI reports whether we are running somewhere without a usable sound card.
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar)
			return true
		}
	}

	return os.Getenv("TONIC_MOCK_AUDIO") == "true"
}

// NewDevice creates a device of the given kind.
func NewDevice(kind DeviceKind, opts DeviceOptions) (Device, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = tts.SampleRate
	}

	switch kind {
	case DeviceOto:
		dev, err := NewOtoDevice(opts)
		if err != nil {
			return nil, err
		}
		return dev, nil

	case DeviceMock:
		log.Debug("creating mock audio device")
		return NewMockDevice(opts.SampleRate), nil

	case DeviceAuto, "":
		if IsCI() {
			log.Info("Using mock audio device", "reason", "CI environment")
			return NewMockDevice(opts.SampleRate), nil
		}
		dev, err := NewOtoDevice(opts)
		if err != nil {
			log.Warn("Failed to open audio output, falling back to mock", "error", err)
			return NewMockDevice(opts.SampleRate), nil
		}
		return dev, nil

	default:
		return nil, fmt.Errorf("%w: unknown device %q", tts.ErrInvalidConfig, kind)
	}
}

var (
	sharedMu     sync.Mutex
	sharedOnce   sync.Once
	sharedDevice Device
	sharedErr    error
)

// SharedDevice returns the process-wide device, creating it on first use.
// Later calls return the same device regardless of kind.
func SharedDevice(kind DeviceKind, opts DeviceOptions) (Device, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	sharedOnce.Do(func() {
		sharedDevice, sharedErr = NewDevice(kind, opts)
	})
	if sharedErr != nil {
		return nil, &tts.PlaybackDeviceError{Op: "open", Err: sharedErr}
	}
	return sharedDevice, nil
}

// CloseSharedDevice releases the process-wide device. The next call to
// SharedDevice creates a fresh one.
func CloseSharedDevice() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	var err error
	if sharedDevice != nil {
		err = sharedDevice.Close()
	}
	sharedDevice = nil
	sharedErr = nil
	sharedOnce = sync.Once{}
	return err
}
