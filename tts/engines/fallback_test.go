package engines

import (
	"context"
	"errors"
	"testing"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/engines/mock"
)

func newMock(rate int) *mock.Engine {
	cfg := tts.DefaultMockConfig()
	cfg.SampleRate = rate
	cfg.GenerationDelay = 0
	return mock.New(cfg)
}

// TestFallback tests the fallback mechanism
func TestFallback(t *testing.T) {
	primary := newMock(24000)
	primary.SetFailure(errors.New("primary engine failure"), 0)
	fallback := newMock(16000)

	f := NewFallback(primary.Synthesize, fallback.Synthesize, 2)
	ctx := context.Background()

	// First attempt fails and is counted.
	if _, _, err := f.Synthesize(ctx, "test one", nil, 5, 1.0); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	if f.UsingFallback() {
		t.Fatal("switched after a single failure")
	}

	// Second failure switches and answers from the fallback.
	samples, rate, err := f.Synthesize(ctx, "test two", nil, 5, 1.0)
	if err != nil {
		t.Fatalf("expected fallback to answer: %v", err)
	}
	if rate != 16000 || len(samples) == 0 {
		t.Errorf("got %d samples at %d Hz, want fallback audio", len(samples), rate)
	}
	if got := f.Status(); got != "Using fallback synthesizer (primary failed 2 times)" {
		t.Errorf("unexpected status: %s", got)
	}

	// Later calls skip the primary.
	if _, _, err := f.Synthesize(ctx, "test three", nil, 5, 1.0); err != nil {
		t.Errorf("expected subsequent calls to use fallback: %v", err)
	}
	if primary.GetCallCount() != 2 {
		t.Errorf("primary called %d times, want 2", primary.GetCallCount())
	}
	if fallback.GetCallCount() != 2 {
		t.Errorf("fallback called %d times, want 2", fallback.GetCallCount())
	}

	f.Reset()
	if f.UsingFallback() {
		t.Error("still using fallback after Reset")
	}
}

func TestFallbackRecovery(t *testing.T) {
	primary := newMock(24000)
	fallback := newMock(16000)
	f := NewFallback(primary.Synthesize, fallback.Synthesize, 3)
	ctx := context.Background()

	primary.SetFailure(errors.New("flaky"), 0)
	for range 2 {
		if _, _, err := f.Synthesize(ctx, "flaky call", nil, 5, 1.0); err == nil {
			t.Fatal("expected failure")
		}
	}

	primary.ClearFailure()
	if _, rate, err := f.Synthesize(ctx, "healthy call", nil, 5, 1.0); err != nil || rate != 24000 {
		t.Fatalf("Synthesize() = %d, %v, want primary audio", rate, err)
	}
	if got := f.Status(); got != "Using primary synthesizer (failures: 0/3)" {
		t.Errorf("failures not reset: %s", got)
	}
	if fallback.GetCallCount() != 0 {
		t.Error("fallback used before the limit")
	}
}

func TestFallbackBothFail(t *testing.T) {
	primary := newMock(24000)
	primary.SetFailure(errors.New("primary down"), 0)
	fallback := newMock(16000)
	fallback.SetFailure(errors.New("fallback down"), 0)

	f := NewFallback(primary.Synthesize, fallback.Synthesize, 1)
	_, _, err := f.Synthesize(context.Background(), "anything", nil, 5, 1.0)
	if err == nil || err.Error() != "both synthesizers failed: fallback down" {
		t.Errorf("Synthesize() error = %v", err)
	}
}

func TestFallbackCancelledNotCounted(t *testing.T) {
	primary := newMock(24000)
	primary.SetFailure(context.Canceled, 0)
	fallback := newMock(16000)
	f := NewFallback(primary.Synthesize, fallback.Synthesize, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := f.Synthesize(ctx, "cancelled", nil, 5, 1.0); err == nil {
		t.Fatal("expected error")
	}
	if f.UsingFallback() {
		t.Error("cancellation counted as a failure")
	}
}
