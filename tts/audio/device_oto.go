//go:build !nocgo
// +build !nocgo

package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/tonic/tts"
)

// OtoDevice plays through the system output using oto. A single player pulls
// from a mixer, so the device clock is the mixer's frame count.
type OtoDevice struct {
	mu        sync.Mutex
	context   *oto.Context
	player    *oto.Player
	mixer     *mixer
	suspended bool
	closed    bool
}

// NewOtoDevice opens the system audio output. oto allows only one context
// per process, so callers normally go through SharedDevice.
func NewOtoDevice(opts DeviceOptions) (*OtoDevice, error) {
	options := &oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: tts.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   platformBufferSize(),
	}

	log.Debug("Initializing audio output",
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	context, readyChan, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}

	readyTimeout := 5 * time.Second
	if runtime.GOOS == "darwin" {
		// CoreAudio can be slow to come up
		readyTimeout = 10 * time.Second
	}

	select {
	case <-readyChan:
	case <-time.After(readyTimeout):
		return nil, fmt.Errorf("audio context initialization timeout after %v", readyTimeout)
	}

	m := newMixer(opts.SampleRate, opts.Volume)
	player := context.NewPlayer(m)
	player.Play()

	log.Debug("Audio output ready")
	return &OtoDevice{context: context, player: player, mixer: m}, nil
}

// platformBufferSize picks an output buffer that avoids underruns on each
// platform's default backend.
func platformBufferSize() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		return 100 * time.Millisecond
	case "windows":
		return 80 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// Now returns the number of frames oto has pulled from the mixer. That runs
// ahead of what is audible by up to the output buffer (50 to 100ms), so
// after a Seek or Stop the tail of the old audio still in oto's buffer plays
// out before the change is heard.
func (d *OtoDevice) Now() time.Duration { return d.mixer.now() }

func (d *OtoDevice) SampleRate() int { return d.mixer.rate }

func (d *OtoDevice) Schedule(chunk tts.AudioChunk, at, offset time.Duration) (Voice, error) {
	v, err := d.mixer.schedule(chunk, at, offset)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *OtoDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return tts.ErrDeviceClosed
	}
	if d.suspended {
		return nil
	}
	d.player.Pause()
	d.suspended = true
	return nil
}

func (d *OtoDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return tts.ErrDeviceClosed
	}
	if !d.suspended {
		return nil
	}
	d.player.Play()
	d.suspended = false
	return nil
}

func (d *OtoDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// Close stops output. oto contexts cannot be closed; the context is left for
// the garbage collector.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.mixer.close()
	return d.player.Close()
}
