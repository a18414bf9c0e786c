// Package mock provides a deterministic tone synthesizer. It stands in for
// a neural model in tests and demos.
package mock

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

// Engine renders text as a sequence of short tones, one per word.
type Engine struct {
	mu sync.Mutex

	// Configuration
	sampleRate     int
	delay          time.Duration // Simulated processing delay
	wordsPerMinute int

	// Control for testing
	shouldFail   bool
	failAfter    int
	failureError error

	// State
	callCount   int
	inFlight    int
	maxInFlight int
	texts       []string
}

// New creates a tone synthesizer from configuration.
func New(cfg tts.MockConfig) *Engine {
	e := &Engine{
		sampleRate:     cfg.SampleRate,
		delay:          cfg.GenerationDelay,
		wordsPerMinute: cfg.WordsPerMinute,
	}
	if e.sampleRate <= 0 {
		e.sampleRate = tts.SampleRate
	}
	if e.wordsPerMinute <= 0 {
		e.wordsPerMinute = 170
	}
	return e
}

// Synthesize implements tts.SynthesizeFunc. Quality sets the number of
// harmonics, speed shortens or stretches each word, and the embedding
// shifts the base pitch.
func (e *Engine) Synthesize(_ context.Context, text string, embedding []float32, quality int, speed float64) ([]float32, int, error) {
	e.mu.Lock()
	e.callCount++
	call := e.callCount
	e.texts = append(e.texts, text)
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
	delay := e.delay
	fail := e.shouldFail && call > e.failAfter
	failure := e.failureError
	rate := e.sampleRate
	wpm := e.wordsPerMinute
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	// Simulate processing delay. The call is not interruptible.
	if delay > 0 {
		time.Sleep(delay)
	}

	if fail {
		return nil, 0, failure
	}

	if speed <= 0 {
		speed = 1
	}
	if quality < 1 {
		quality = 1
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		words = []string{text}
	}

	wordLen := int(float64(rate) * 60.0 / float64(wpm) / speed)
	gap := wordLen / 5
	base := basePitch(embedding)

	samples := make([]float32, 0, len(words)*(wordLen+gap))
	for _, word := range words {
		freq := base * (1 + float64(len(word)%7)/12)
		samples = appendTone(samples, freq, wordLen, rate, harmonics(quality))
		samples = append(samples, make([]float32, gap)...)
	}

	return samples, rate, nil
}

// basePitch maps an embedding to a frequency between 110 and 330 Hz.
func basePitch(embedding []float32) float64 {
	if len(embedding) == 0 {
		return 220
	}
	var sum float64
	for _, v := range embedding {
		sum += math.Abs(float64(v))
	}
	mean := sum / float64(len(embedding))
	return 110 + 220*(mean-math.Floor(mean))
}

// harmonics grows with quality but stays cheap.
func harmonics(quality int) int {
	return 1 + quality/10
}

func appendTone(dst []float32, freq float64, n, rate, harmonics int) []float32 {
	fade := n / 10
	for i := 0; i < n; i++ {
		t := float64(i) / float64(rate)
		var v float64
		for h := 1; h <= harmonics; h++ {
			v += math.Sin(2*math.Pi*freq*float64(h)*t) / float64(h)
		}
		v *= 0.3

		// Linear fade in and out to avoid clicks
		switch {
		case i < fade:
			v *= float64(i) / float64(fade)
		case i >= n-fade:
			v *= float64(n-i) / float64(fade)
		}
		dst = append(dst, float32(v))
	}
	return dst
}

// Test control methods

// SetDelay sets the simulated processing delay.
func (e *Engine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetFailure configures the engine to fail with err on every call after the
// first n calls.
func (e *Engine) SetFailure(err error, after int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = true
	e.failAfter = after
	e.failureError = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = false
	e.failureError = nil
}

// GetCallCount returns the number of Synthesize calls.
func (e *Engine) GetCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// MaxConcurrentCalls returns the highest number of overlapping calls seen.
func (e *Engine) MaxConcurrentCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInFlight
}

// Texts returns the text of every call in order.
func (e *Engine) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}
