// Package stream drives the synthesizer over a sequence of segments.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/sentence"
)

// Options controls a single driver run.
type Options struct {
	Quality  int
	Speed    float64
	MinChars int
	MaxChars int
	// RunID tags log lines.
	RunID string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Quality:  tts.DefaultQuality,
		Speed:    tts.DefaultSpeed,
		MinChars: tts.MinChars,
		MaxChars: tts.MaxChars,
	}
}

// Validate checks the options against the synthesizer bounds.
func (o Options) Validate() error {
	if err := tts.ValidateQuality(o.Quality); err != nil {
		return err
	}
	if err := tts.ValidateSpeed(o.Speed); err != nil {
		return err
	}
	if o.MinChars < 1 || o.MinChars > o.MaxChars {
		return fmt.Errorf("%w: min_chars must be between 1 and %d, got %d", tts.ErrInvalidConfig, o.MaxChars, o.MinChars)
	}
	return nil
}

// Driver produces one StreamEvent per segment, calling the synthesizer
// strictly one segment at a time. A Driver is single use: once exhausted,
// failed or stopped it only returns io.EOF.
type Driver struct {
	text  string
	voice tts.Voice
	opts  Options
	synth tts.SynthesizeFunc

	mu       sync.Mutex
	segments []tts.Segment
	next     int
	started  bool
	done     bool

	stopped atomic.Bool
}

// New creates a driver for text. Nothing is segmented or synthesized until
// the first call to Next.
func New(text string, voice tts.Voice, opts Options, synth tts.SynthesizeFunc) *Driver {
	return &Driver{
		text:  text,
		voice: voice,
		opts:  opts,
		synth: synth,
	}
}

// Stop asks the driver to end the sequence before its next synthesizer
// call. A call already in progress completes and its event is delivered.
func (d *Driver) Stop() {
	d.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (d *Driver) Stopped() bool {
	return d.stopped.Load()
}

// Segments returns the segments of this run. It is empty before the first
// call to Next.
func (d *Driver) Segments() []tts.Segment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]tts.Segment(nil), d.segments...)
}

// Next synthesizes the next segment and returns its event. It returns
// io.EOF when the sequence is exhausted or a stop was requested. A
// synthesizer failure is returned as *tts.SynthesisFailedError and ends the
// sequence.
func (d *Driver) Next(ctx context.Context) (tts.StreamEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done {
		return tts.StreamEvent{}, io.EOF
	}

	if !d.started {
		d.started = true
		if err := d.prepare(); err != nil {
			d.done = true
			return tts.StreamEvent{}, err
		}
	}

	for d.next < len(d.segments) {
		if d.stopped.Load() {
			log.Debug("stream stopped", "run", d.opts.RunID, "emitted", d.next)
			d.done = true
			return tts.StreamEvent{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			d.done = true
			return tts.StreamEvent{}, err
		}

		seg := d.segments[d.next]
		d.next++

		if strings.TrimSpace(seg.Text) == "" {
			continue
		}

		ev, err := d.synthesize(ctx, seg)
		if err != nil {
			d.done = true
			return tts.StreamEvent{}, err
		}
		return ev, nil
	}

	d.done = true
	return tts.StreamEvent{}, io.EOF
}

// prepare validates inputs and segments the text.
func (d *Driver) prepare() error {
	if d.synth == nil {
		return &tts.PreconditionError{What: "synthesizer"}
	}
	if !d.voice.Ready() {
		return &tts.PreconditionError{What: fmt.Sprintf("voice %q", d.voice.Name), Err: tts.ErrVoiceNotFound}
	}
	if err := d.opts.Validate(); err != nil {
		return err
	}

	segments, err := sentence.Segment(d.text, d.opts.MinChars, d.opts.MaxChars)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		segments = []tts.Segment{{Text: d.text, Index: 1, Total: 1}}
	}
	d.segments = segments

	log.Debug("text segmented", "run", d.opts.RunID, "segments", len(segments), "chars", sentence.RuneLen(d.text))
	return nil
}

func (d *Driver) synthesize(ctx context.Context, seg tts.Segment) (tts.StreamEvent, error) {
	metrics := tts.StartSynthesis(d.opts.RunID, seg.Index, seg.Text)

	samples, rate, err := d.synth(ctx, seg.Text, d.voice.Embedding, d.opts.Quality, d.opts.Speed)
	if err == nil && rate <= 0 {
		err = fmt.Errorf("%w: %d", tts.ErrInvalidSampleRate, rate)
	}
	if err != nil {
		metrics.EndSynthesis(0, err)
		return tts.StreamEvent{}, &tts.SynthesisFailedError{Index: seg.Index, Err: err}
	}

	if !seg.IsLast() {
		samples = pad(samples, tts.GapSamples(rate))
	}
	chunk := tts.AudioChunk{Samples: samples, SampleRate: rate}
	metrics.EndSynthesis(chunk.Duration(), nil)

	return tts.StreamEvent{
		Chunk:     chunk,
		Text:      seg.Text,
		Index:     seg.Index,
		Total:     seg.Total,
		EmittedAt: time.Now(),
	}, nil
}

// pad returns samples followed by n zero samples in a fresh slice, so the
// synthesizer's buffer is never modified.
func pad(samples []float32, n int) []float32 {
	out := make([]float32, len(samples)+n)
	copy(out, samples)
	return out
}

// All adapts the driver to a range-over-func sequence. Iteration ends at the
// end of the stream, on stop, or after yielding a single error. Breaking
// out of the loop leaves the driver usable for a later Next.
func (d *Driver) All(ctx context.Context) iter.Seq2[tts.StreamEvent, error] {
	return func(yield func(tts.StreamEvent, error) bool) {
		for {
			ev, err := d.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(tts.StreamEvent{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
