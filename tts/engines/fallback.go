// Package engines holds synthesizer implementations and wrappers that
// combine them.
package engines

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tonic/tts"
)

// Fallback wraps a primary synthesizer with automatic fallback to a
// secondary one when the primary fails consistently.
type Fallback struct {
	primary       tts.SynthesizeFunc
	fallback      tts.SynthesizeFunc
	failures      int
	maxFailures   int
	usingFallback bool
	mu            sync.Mutex
}

// NewFallback switches to fallback after maxFailures consecutive primary
// failures. maxFailures below 1 is treated as 1.
func NewFallback(primary, fallback tts.SynthesizeFunc, maxFailures int) *Fallback {
	return &Fallback{
		primary:     primary,
		fallback:    fallback,
		maxFailures: max(maxFailures, 1),
	}
}

// Synthesize implements tts.SynthesizeFunc.
func (f *Fallback) Synthesize(ctx context.Context, text string, embedding []float32, quality int, speed float64) ([]float32, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.usingFallback {
		return f.fallback(ctx, text, embedding, quality, speed)
	}

	samples, rate, err := f.primary(ctx, text, embedding, quality, speed)
	if err == nil {
		if f.failures > 0 {
			log.Info("primary synthesizer recovered", "failures", f.failures)
			f.failures = 0
		}
		return samples, rate, nil
	}
	if ctx.Err() != nil {
		return nil, 0, err
	}

	f.failures++
	log.Warn("primary synthesizer failed", "attempt", f.failures, "max", f.maxFailures, "error", err)
	if f.failures < f.maxFailures {
		return nil, 0, err
	}

	log.Warn("switching to fallback synthesizer", "failures", f.failures)
	f.usingFallback = true
	samples, rate, ferr := f.fallback(ctx, text, embedding, quality, speed)
	if ferr != nil {
		return nil, 0, fmt.Errorf("both synthesizers failed: %w", ferr)
	}
	return samples, rate, nil
}

// UsingFallback reports whether the fallback is active.
func (f *Fallback) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

// Reset returns to the primary synthesizer.
func (f *Fallback) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = 0
	f.usingFallback = false
	log.Debug("reset to primary synthesizer")
}

// Status describes which synthesizer is active.
func (f *Fallback) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.usingFallback {
		return fmt.Sprintf("Using fallback synthesizer (primary failed %d times)", f.failures)
	}
	return fmt.Sprintf("Using primary synthesizer (failures: %d/%d)", f.failures, f.maxFailures)
}
