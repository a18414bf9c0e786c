package tts

import (
	"context"
	"time"
)

// SynthesizeFunc converts one segment of text into mono float samples.
// Implementations are called strictly one at a time and are not expected to
// honor cancellation mid-call.
type SynthesizeFunc func(ctx context.Context, text string, embedding []float32, quality int, speed float64) (samples []float32, sampleRate int, err error)

// Segment is a bounded piece of input text. Index is 1-based.
type Segment struct {
	Text  string
	Index int
	Total int
}

// IsLast reports whether this is the final segment of its run.
func (s Segment) IsLast() bool {
	return s.Index == s.Total
}

// AudioChunk is a block of mono PCM samples in the range [-1, 1].
type AudioChunk struct {
	Samples    []float32
	SampleRate int
}

// Seconds returns the chunk length in seconds.
func (c AudioChunk) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Duration returns the chunk length.
func (c AudioChunk) Duration() time.Duration {
	return SamplesToDuration(len(c.Samples), c.SampleRate)
}

// StreamEvent is emitted once per synthesized segment.
type StreamEvent struct {
	Chunk     AudioChunk
	Text      string
	Index     int
	Total     int
	EmittedAt time.Time
}

// Voice is a named speaker embedding.
type Voice struct {
	Name      string
	Embedding []float32
}

// Ready reports whether the voice carries an embedding.
func (v Voice) Ready() bool {
	return len(v.Embedding) > 0
}

// SamplesToDuration converts a sample count at the given rate into a duration.
func SamplesToDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(sampleRate))
}

// DurationToSamples converts a duration into a sample count, rounding down.
func DurationToSamples(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
