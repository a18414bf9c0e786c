package audio

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

// mixer sums scheduled voices into a single 16-bit mono stream. Its clock is
// the number of frames handed to the output, so it only advances while the
// output is pulling.
type mixer struct {
	mu     sync.Mutex
	rate   int
	frame  int64
	volume float64
	voices []*mixVoice
	closed bool
	buf    []float32
}

type mixVoice struct {
	samples []float32
	start   int64
	pos     int
	stopped atomic.Bool
}

// Stop cancels the voice. Stopping twice is harmless.
func (v *mixVoice) Stop() error {
	v.stopped.Store(true)
	return nil
}

func (v *mixVoice) done() bool {
	return v.stopped.Load() || v.pos >= len(v.samples)
}

// newMixer creates a mixer with the given gain, clamped to
// [0, tts.MaxVolume]. A negative gain means unity.
func newMixer(rate int, volume float64) *mixer {
	switch {
	case volume < 0:
		volume = 1
	case volume > tts.MaxVolume:
		volume = tts.MaxVolume
	}
	return &mixer{rate: rate, volume: volume}
}

func (m *mixer) now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tts.SamplesToDuration(int(m.frame), m.rate)
}

func (m *mixer) schedule(chunk tts.AudioChunk, at, offset time.Duration) (*mixVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, tts.ErrDeviceClosed
	}

	samples := Resample(chunk.Samples, chunk.SampleRate, m.rate)
	skip := tts.DurationToSamples(offset, m.rate)
	if skip > len(samples) {
		skip = len(samples)
	}

	start := int64(tts.DurationToSamples(at, m.rate))
	if start < m.frame {
		start = m.frame
	}

	v := &mixVoice{samples: samples, start: start, pos: skip}
	m.voices = append(m.voices, v)
	return v, nil
}

// render fills dst with the next len(dst) frames and advances the clock.
func (m *mixer) render(dst []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(dst)
	for _, v := range m.voices {
		if v.done() {
			continue
		}
		for i := range dst {
			if m.frame+int64(i) < v.start {
				continue
			}
			if v.pos >= len(v.samples) {
				break
			}
			dst[i] += v.samples[v.pos] * float32(m.volume)
			v.pos++
		}
	}
	m.frame += int64(len(dst))

	live := m.voices[:0]
	for _, v := range m.voices {
		if !v.done() {
			live = append(live, v)
		}
	}
	clear(m.voices[len(live):])
	m.voices = live
}

// Read implements io.Reader for the output player.
func (m *mixer) Read(p []byte) (int, error) {
	frames := len(p) / tts.BytesPerSample
	if frames == 0 {
		return 0, nil
	}
	if cap(m.buf) < frames {
		m.buf = make([]float32, frames)
	}
	buf := m.buf[:frames]
	m.render(buf)

	for i, v := range buf {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(FloatToInt16(v)))
	}
	return frames * tts.BytesPerSample, nil
}

func (m *mixer) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

func (m *mixer) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.voices = nil
}
