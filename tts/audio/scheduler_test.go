package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

const testRate = 1000

// second returns a one second chunk at testRate.
func second() tts.AudioChunk {
	return tts.AudioChunk{Samples: make([]float32, testRate), SampleRate: testRate}
}

func newTestScheduler(t *testing.T) (*Scheduler, *MockDevice, *Store) {
	t.Helper()
	dev := NewManualDevice(testRate)
	store := NewStore()
	return NewScheduler(dev, store), dev, store
}

// feed appends chunks to the store and enqueues them, the way a run does.
func feed(t *testing.T, s *Scheduler, store *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		c := second()
		store.Append(c)
		if err := s.Enqueue(c); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
}

func TestSchedulerStreamsGapless(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	dev.Advance(5 * time.Second)

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	feed(t, s, store, 3)

	history := dev.History()
	if len(history) != 3 {
		t.Fatalf("scheduled %d voices, want 3", len(history))
	}

	want := 5*time.Second + tts.StartupLead
	for i, v := range history {
		if v.At != want {
			t.Errorf("chunk %d at %v, want %v", i, v.At, want)
		}
		if v.Offset != 0 {
			t.Errorf("chunk %d has offset %v", i, v.Offset)
		}
		want += time.Second
	}
	if s.State() != tts.StatePlaying {
		t.Errorf("State() = %v, want playing", s.State())
	}
}

func TestSchedulerPosition(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 2)

	if s.Position() != 0 {
		t.Errorf("Position() before lead = %v, want 0", s.Position())
	}

	dev.Advance(tts.StartupLead + 1500*time.Millisecond)
	if s.Position() != 1500*time.Millisecond {
		t.Errorf("Position() = %v, want 1.5s", s.Position())
	}

	dev.Advance(10 * time.Second)
	if s.Position() != 2*time.Second {
		t.Errorf("Position() past the end = %v, want clamped to 2s", s.Position())
	}
}

func TestSchedulerSeek(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 4)
	dev.Advance(time.Second)
	dev.ClearHistory()

	// 4s total, seek to 2.5s
	if err := s.Seek(0.625); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}

	if len(dev.Active()) != 2 {
		t.Fatalf("%d voices active after seek, want 2", len(dev.Active()))
	}
	history := dev.History()
	now := dev.Now()
	if history[0].At != now || history[0].Offset != 500*time.Millisecond {
		t.Errorf("first voice at %v offset %v, want %v offset 500ms", history[0].At, history[0].Offset, now)
	}
	if history[1].At != now+500*time.Millisecond || history[1].Offset != 0 {
		t.Errorf("second voice at %v offset %v", history[1].At, history[1].Offset)
	}

	if s.Position() != 2500*time.Millisecond {
		t.Errorf("Position() after seek = %v, want 2.5s", s.Position())
	}
	if !s.Interrupted() {
		t.Error("seek did not set interrupted")
	}
}

func TestSchedulerSeekCancelsPreviousVoices(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 3)
	before := dev.History()

	s.Seek(0)

	for i, v := range before {
		if !v.Stopped() {
			t.Errorf("voice %d from the live timeline still playing", i)
		}
	}
	if len(dev.Active()) != 3 {
		t.Errorf("%d voices active, want 3", len(dev.Active()))
	}
}

func TestSchedulerSeekNeverSchedulesBeforeTarget(t *testing.T) {
	for _, f := range []float64{0, 0.1, 0.33, 0.5, 0.75, 0.99, 1} {
		s, dev, store := newTestScheduler(t)
		s.Start()
		feed(t, s, store, 5)
		dev.ClearHistory()

		s.Seek(f)
		target := time.Duration(f * float64(store.Duration()))

		// Reconstruct each voice's position on the timeline.
		items := store.Items()
		for _, v := range dev.History() {
			var start time.Duration
			for _, it := range items {
				if &it.Chunk.Samples[0] == &v.Chunk.Samples[0] {
					start = it.Start
				}
			}
			if start+v.Offset < target {
				t.Errorf("fraction %v: voice plays from %v, before %v", f, start+v.Offset, target)
			}
		}
	}
}

func TestSchedulerInterruptedIgnoresLiveChunks(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 2)
	s.Seek(0.5)
	n := len(dev.History())

	feed(t, s, store, 1)
	if len(dev.History()) != n {
		t.Error("live chunk scheduled after a seek")
	}
	if store.Len() != 3 {
		t.Errorf("store has %d chunks, want 3", store.Len())
	}

	// A new run schedules live chunks again.
	store.Reset()
	s.Start()
	feed(t, s, store, 1)
	if len(dev.History()) != n+1 {
		t.Error("Start did not clear the interrupted flag")
	}
}

func TestSchedulerPauseResume(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 3)
	dev.Advance(tts.StartupLead + time.Second)

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if s.State() != tts.StatePaused || !dev.Suspended() {
		t.Fatalf("State() = %v, suspended = %v", s.State(), dev.Suspended())
	}

	dev.Advance(time.Hour) // no effect while suspended
	if s.Position() != time.Second {
		t.Errorf("Position() while paused = %v, want 1s", s.Position())
	}
	if len(dev.Active()) != 3 {
		t.Error("pause cancelled scheduled voices")
	}

	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}
	if s.State() != tts.StatePlaying || dev.Suspended() {
		t.Errorf("State() = %v after resume", s.State())
	}
	dev.Advance(500 * time.Millisecond)
	if s.Position() != 1500*time.Millisecond {
		t.Errorf("Position() = %v, want 1.5s", s.Position())
	}
}

func TestSchedulerTogglePlayAfterFinishRestarts(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 2)
	dev.Advance(5 * time.Second)

	if !s.Finish(false) {
		t.Fatal("Finish() = false at the end of playback")
	}
	if s.State() != tts.StateFinished {
		t.Fatalf("State() = %v, want finished", s.State())
	}

	if err := s.TogglePlay(false); err != nil {
		t.Fatal(err)
	}
	if s.Position() != 0 {
		t.Errorf("Position() after replay = %v, want 0", s.Position())
	}
	if s.State() != tts.StatePlaying {
		t.Errorf("State() = %v, want playing", s.State())
	}
	if len(dev.Active()) != 2 {
		t.Errorf("%d voices active, want 2", len(dev.Active()))
	}
}

func TestSchedulerFinishWaitsForGeneration(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 1)
	dev.Advance(5 * time.Second)

	if s.Finish(true) {
		t.Error("Finish() while generating = true")
	}
	if s.State() != tts.StatePlaying {
		t.Errorf("State() = %v", s.State())
	}
}

func TestSchedulerTogglePlayResumesAfterStop(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 4)
	dev.Advance(tts.StartupLead + time.Second)

	s.Stop()
	if s.State() != tts.StateStopped || len(dev.Active()) != 0 {
		t.Fatalf("State() = %v with %d active voices", s.State(), len(dev.Active()))
	}
	dev.Advance(time.Second)
	if s.Position() != time.Second {
		t.Errorf("Position() after stop = %v, want 1s", s.Position())
	}

	dev.ClearHistory()
	if err := s.TogglePlay(false); err != nil {
		t.Fatal(err)
	}
	if s.Position() != time.Second {
		t.Errorf("Position() after resume = %v, want 1s", s.Position())
	}
	if len(dev.History()) != 3 {
		t.Errorf("resumed with %d voices, want 3", len(dev.History()))
	}
}

func TestSchedulerTogglePlayPauses(t *testing.T) {
	s, _, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 1)

	s.TogglePlay(true)
	if s.State() != tts.StatePaused {
		t.Fatalf("State() = %v, want paused", s.State())
	}
	s.TogglePlay(true)
	if s.State() != tts.StatePlaying {
		t.Errorf("State() = %v, want playing", s.State())
	}
}

func TestSchedulerDeviceError(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	dev.SetScheduleError(errors.New("no output"))

	c := second()
	store.Append(c)
	err := s.Enqueue(c)

	var perr *tts.PlaybackDeviceError
	if !errors.As(err, &perr) || !errors.Is(err, tts.ErrPlaybackDevice) {
		t.Fatalf("Enqueue() error = %v, want PlaybackDeviceError", err)
	}
	if s.State() != tts.StateStopped {
		t.Errorf("State() = %v, want stopped", s.State())
	}

	// Further live chunks are buffered but not scheduled.
	dev.SetScheduleError(nil)
	store.Append(c)
	if err := s.Enqueue(c); err != nil {
		t.Errorf("Enqueue() after failure error = %v", err)
	}
}

func TestSchedulerSwallowsStopErrors(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	dev.SetStopError(errors.New("already stopped"))
	s.Start()
	feed(t, s, store, 2)

	if err := s.Seek(0.5); err != nil {
		t.Errorf("Seek() error = %v, stop errors must be swallowed", err)
	}
	s.Stop()
}

func TestSchedulerSeekEmptyStore(t *testing.T) {
	s, dev, _ := newTestScheduler(t)
	if err := s.Seek(0.5); err != nil {
		t.Fatal(err)
	}
	if len(dev.History()) != 0 || s.State() != tts.StateIdle {
		t.Error("seek on an empty store changed state")
	}
}

func TestSchedulerActive(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 2)

	if s.Active() != 2 {
		t.Errorf("Active() = %d, want 2", s.Active())
	}
	dev.Advance(tts.StartupLead + 1500*time.Millisecond)
	if s.Active() != 1 {
		t.Errorf("Active() = %d, want 1", s.Active())
	}
	dev.Advance(time.Second)
	if s.Active() != 0 {
		t.Errorf("Active() = %d, want 0", s.Active())
	}
}

func TestSchedulerUnderrunStartsLateChunkNow(t *testing.T) {
	s, dev, store := newTestScheduler(t)
	s.Start()
	feed(t, s, store, 1)

	// Synthesis of the second chunk takes longer than the first one plays.
	dev.Advance(3 * time.Second)
	feed(t, s, store, 1)
	if s.Position() != time.Second {
		t.Errorf("Position() after underrun = %v, want 1s", s.Position())
	}

	dev.Advance(500 * time.Millisecond)
	feed(t, s, store, 1)

	history := dev.History()
	want := []time.Duration{tts.StartupLead, 3 * time.Second, 4 * time.Second}
	for i, v := range history {
		if v.At != want[i] {
			t.Errorf("chunk %d at %v, want %v", i, v.At, want[i])
		}
	}

	if s.Position() != 1500*time.Millisecond {
		t.Errorf("Position() = %v, want 1.5s", s.Position())
	}
	if s.Finish(false) {
		t.Error("Finish() = true with audio still queued")
	}
}

// mixerDevice drives the real mixer from the test instead of an output.
type mixerDevice struct {
	*mixer
}

func (d mixerDevice) Now() time.Duration { return d.now() }
func (d mixerDevice) SampleRate() int    { return d.rate }
func (d mixerDevice) Schedule(c tts.AudioChunk, at, offset time.Duration) (Voice, error) {
	return d.schedule(c, at, offset)
}
func (d mixerDevice) Suspend() error  { return nil }
func (d mixerDevice) Resume() error   { return nil }
func (d mixerDevice) Suspended() bool { return false }
func (d mixerDevice) Close() error    { d.close(); return nil }

// pull renders d of output and returns the loudest frame.
func (d mixerDevice) pull(dur time.Duration) float32 {
	out := make([]float32, tts.DurationToSamples(dur, d.rate))
	d.render(out)
	var peak float32
	for _, v := range out {
		peak = max(peak, v)
	}
	return peak
}

func TestSchedulerUnderrunNeverOverlaps(t *testing.T) {
	dev := mixerDevice{newMixer(testRate, 1)}
	store := NewStore()
	s := NewScheduler(dev, store)

	chunk := func(d time.Duration) tts.AudioChunk {
		samples := make([]float32, tts.DurationToSamples(d, testRate))
		for i := range samples {
			samples[i] = 0.25
		}
		return tts.AudioChunk{Samples: samples, SampleRate: testRate}
	}
	enqueue := func(c tts.AudioChunk) {
		t.Helper()
		store.Append(c)
		if err := s.Enqueue(c); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	enqueue(chunk(time.Second))
	dev.pull(3 * time.Second)
	enqueue(chunk(5 * time.Second))
	dev.pull(4 * time.Second)
	enqueue(chunk(time.Second))

	if peak := dev.pull(500 * time.Millisecond); peak > 0.25 {
		t.Errorf("peak = %v, chunks overlap after an underrun", peak)
	}
	if got := s.Position(); got != 5500*time.Millisecond {
		t.Errorf("Position() = %v, want 5.5s", got)
	}
}
