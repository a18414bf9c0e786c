//go:build nocgo
// +build nocgo

package audio

import (
	"errors"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

var errNoAudio = errors.New("audio not available in nocgo build")

// OtoDevice stub for builds without CGO.
type OtoDevice struct{}

// NewOtoDevice always fails without CGO.
func NewOtoDevice(DeviceOptions) (*OtoDevice, error) {
	return nil, errNoAudio
}

func (d *OtoDevice) Now() time.Duration { return 0 }

func (d *OtoDevice) SampleRate() int { return tts.SampleRate }

func (d *OtoDevice) Schedule(tts.AudioChunk, time.Duration, time.Duration) (Voice, error) {
	return nil, errNoAudio
}

func (d *OtoDevice) Suspend() error { return errNoAudio }

func (d *OtoDevice) Resume() error { return errNoAudio }

func (d *OtoDevice) Suspended() bool { return false }

func (d *OtoDevice) Close() error { return nil }
