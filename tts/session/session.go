// Package session runs generation and playback for one text at a time. It
// fans every synthesized chunk out to the buffer store, the statistics
// tracker and the playback scheduler.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/audio"
	"github.com/dgnsrekt/tonic/tts/sentence"
	"github.com/dgnsrekt/tonic/tts/stream"
)

// VoiceSource looks up loaded voice embeddings by name.
type VoiceSource interface {
	Voice(name string) (tts.Voice, error)
}

// Observer receives run telemetry. Implementations must not block.
type Observer interface {
	ObserveChunk(ctx context.Context, ev tts.StreamEvent, stats tts.RunStats)
	ObserveRun(ctx context.Context, stats tts.RunStats, err error)
}

// Callbacks are invoked from the run and polling goroutines. They must not
// block and must not call Generate.
type Callbacks struct {
	OnChunk         func(ev tts.StreamEvent, stats tts.RunStats)
	OnDone          func(Result)
	OnPosition      func(time.Duration)
	OnState         func(tts.StateType)
	OnPlaybackError func(error)
}

// Result describes how a run ended.
type Result struct {
	RunID   string
	Stats   tts.RunStats
	Stopped bool
	Err     error
}

// Options configures a Session.
type Options struct {
	Stream          stream.Options
	StartupLead     time.Duration
	RefreshInterval time.Duration
	Observer        Observer
	Callbacks       Callbacks
}

// DefaultOptions returns the standard pipeline settings.
func DefaultOptions() Options {
	return Options{
		Stream:          stream.DefaultOptions(),
		StartupLead:     tts.StartupLead,
		RefreshInterval: tts.RefreshInterval,
	}
}

// Status is a point-in-time view of the session.
type Status struct {
	RunID      string
	State      tts.StateType
	Generating bool
	Position   time.Duration
	Total      time.Duration
	Chunks     int
	Stats      tts.RunStats
	Err        error
}

// Session owns the store, scheduler and stats of the active run. Starting a
// new run discards everything from the previous one.
type Session struct {
	synth  tts.SynthesizeFunc
	voices VoiceSource
	opts   Options

	store  *audio.Store
	stats  *tts.StatsTracker
	sched  *audio.Scheduler
	poller *audio.Poller

	mu      sync.Mutex
	run     uint64
	runID   string
	driver  *stream.Driver
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error

	generating atomic.Bool

	ctx      context.Context
	shutdown context.CancelFunc
}

// New creates a session playing on dev. synth and voices may be nil until
// they are loaded; Generate reports them as not ready.
func New(dev audio.Device, synth tts.SynthesizeFunc, voices VoiceSource, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	store := audio.NewStore()
	sched := audio.NewScheduler(dev, store)
	if opts.StartupLead > 0 {
		sched.SetStartupLead(opts.StartupLead)
	}

	s := &Session{
		synth:    synth,
		voices:   voices,
		opts:     opts,
		store:    store,
		stats:    tts.NewStatsTracker(),
		sched:    sched,
		ctx:      ctx,
		shutdown: cancel,
	}

	s.poller = audio.NewPoller(sched, opts.RefreshInterval, s.generating.Load)
	s.poller.OnPosition(func(d time.Duration) {
		s.stats.SetPosition(d)
		if fn := s.opts.Callbacks.OnPosition; fn != nil {
			fn(d)
		}
	})
	if fn := opts.Callbacks.OnState; fn != nil {
		sched.OnStateChange(fn)
	}

	return s
}

// SetSynthesizer installs the synthesizer once it has loaded.
func (s *Session) SetSynthesizer(synth tts.SynthesizeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth = synth
}

// SetTuning changes the quality and speed used from the next Generate on.
// The running generation keeps its settings.
func (s *Session) SetTuning(quality int, speed float64) error {
	if err := tts.ValidateQuality(quality); err != nil {
		return err
	}
	if err := tts.ValidateSpeed(speed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Stream.Quality = quality
	s.opts.Stream.Speed = speed
	return nil
}

// SetVoices installs the voice source once it has loaded.
func (s *Session) SetVoices(voices VoiceSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = voices
}

// Generate starts a new run speaking text with the named voice. It returns
// once the run has started; chunks arrive through the callbacks. Nothing is
// changed if a precondition fails.
func (s *Session) Generate(text, voiceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return &tts.PreconditionError{What: "session", Err: s.ctx.Err()}
	}
	if s.synth == nil {
		return &tts.PreconditionError{What: "synthesizer"}
	}
	if s.voices == nil {
		return &tts.PreconditionError{What: "voices"}
	}
	voice, err := s.voices.Voice(voiceName)
	if err != nil {
		return &tts.PreconditionError{What: fmt.Sprintf("voice %q", voiceName), Err: err}
	}
	if !voice.Ready() {
		return &tts.PreconditionError{What: fmt.Sprintf("voice %q", voiceName), Err: tts.ErrVoiceNotFound}
	}
	if n := sentence.RuneLen(text); n < tts.MinTextLength {
		return fmt.Errorf("%w: %d characters, need at least %d", tts.ErrTextTooShort, n, tts.MinTextLength)
	}
	if err := s.opts.Stream.Validate(); err != nil {
		return err
	}
	if _, err := sentence.Segment(text, s.opts.Stream.MinChars, s.opts.Stream.MaxChars); err != nil {
		return err
	}

	// Stop the previous run. Its goroutine may still be inside a synthesizer
	// call; it notices the new run number and drops its result.
	s.stopLocked()

	s.run++
	s.runID = uuid.NewString()
	s.lastErr = nil
	s.store.Reset()
	s.stats.Reset(time.Now())
	if err := s.sched.Start(); err != nil {
		s.reportPlaybackError(err)
	}

	opts := s.opts.Stream
	opts.RunID = s.runID
	d := stream.New(text, voice, opts, s.synth)
	ctx, cancel := context.WithCancel(s.ctx)

	s.driver = d
	s.cancel = cancel
	s.done = make(chan struct{})
	s.generating.Store(true)

	log.Info("generation started", "run", s.runID, "voice", voice.Name, "chars", sentence.RuneLen(text),
		"quality", opts.Quality, "speed", opts.Speed)

	go s.loop(ctx, s.run, s.runID, d, s.done)
	s.poller.Start(s.ctx)
	return nil
}

func (s *Session) loop(ctx context.Context, run uint64, runID string, d *stream.Driver, done chan struct{}) {
	defer close(done)

	result := Result{RunID: runID}
	for ev, err := range d.All(ctx) {
		if err != nil {
			result.Err = err
			break
		}
		if !s.deliver(run, d, ev) {
			break
		}
	}
	result.Stopped = d.Stopped()

	s.mu.Lock()
	current := s.run == run
	if current {
		s.generating.Store(false)
		if result.Err != nil {
			s.stats.Freeze()
			s.lastErr = result.Err
		}
	}
	s.mu.Unlock()

	if !current {
		return
	}
	result.Stats = s.stats.Snapshot()

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		log.Error("generation failed", "run", runID, "error", result.Err)
	} else {
		log.Info("generation finished", "run", runID, "segments", result.Stats.Segments,
			"audio", result.Stats.TotalAudio, "stopped", result.Stopped)
	}

	if s.opts.Observer != nil {
		s.opts.Observer.ObserveRun(context.WithoutCancel(ctx), result.Stats, result.Err)
	}
	if fn := s.opts.Callbacks.OnDone; fn != nil {
		fn(result)
	}
}

// deliver fans one event out to the store, stats and scheduler. It reports
// false when the run has been replaced or stopped, in which case the event
// is dropped.
func (s *Session) deliver(run uint64, d *stream.Driver, ev tts.StreamEvent) bool {
	s.mu.Lock()
	if s.run != run || d.Stopped() {
		s.mu.Unlock()
		return false
	}

	s.store.Append(ev.Chunk)
	stats := s.stats.Observe(ev)
	playErr := s.sched.Enqueue(ev.Chunk)
	s.mu.Unlock()

	if playErr != nil {
		s.reportPlaybackError(playErr)
	}
	s.poller.Start(s.ctx)

	if s.opts.Observer != nil {
		s.opts.Observer.ObserveChunk(s.ctx, ev, stats)
	}
	if fn := s.opts.Callbacks.OnChunk; fn != nil {
		fn(ev, stats)
	}
	return true
}

func (s *Session) reportPlaybackError(err error) {
	log.Warn("playback error, generation continues", "error", err)
	if fn := s.opts.Callbacks.OnPlaybackError; fn != nil {
		fn(err)
	}
}

// Stop asks the current run to end before its next segment. Audio that is
// already scheduled keeps playing.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver != nil {
		s.driver.Stop()
	}
}

func (s *Session) stopLocked() {
	if s.driver != nil {
		s.driver.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generating.Store(false)
	s.sched.Stop()
}

// Wait blocks until the current run's goroutine has exited or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TogglePlay pauses or resumes playback.
func (s *Session) TogglePlay() error {
	err := s.sched.TogglePlay(s.generating.Load())
	s.poller.Start(s.ctx)
	return err
}

// Seek jumps to fraction of the audio buffered so far.
func (s *Session) Seek(fraction float64) error {
	err := s.sched.Seek(fraction)
	s.poller.Start(s.ctx)
	return err
}

// SeekBy moves the playback position by delta.
func (s *Session) SeekBy(delta time.Duration) error {
	total := s.store.Duration()
	if total <= 0 {
		return nil
	}
	return s.Seek(float64(s.sched.Position()+delta) / float64(total))
}

// StopPlayback cancels all scheduled audio. Generation is not affected.
func (s *Session) StopPlayback() {
	s.sched.Stop()
}

// Export writes the buffered audio to path as WAV and returns the path
// written.
func (s *Session) Export(path string) (string, error) {
	if s.store.Len() == 0 {
		return "", tts.ErrNothingToExport
	}
	written, err := s.store.ExportWAV(path)
	if err != nil {
		return "", err
	}
	log.Info("audio exported", "path", written, "duration", s.store.Duration())
	return written, nil
}

// Generating reports whether a run is still producing audio.
func (s *Session) Generating() bool {
	return s.generating.Load()
}

// Store returns the run's buffer store.
func (s *Session) Store() *audio.Store {
	return s.store
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	runID, err := s.runID, s.lastErr
	s.mu.Unlock()

	pos := s.sched.Position()
	stats := s.stats.Snapshot()
	stats.Position = pos

	return Status{
		RunID:      runID,
		State:      s.sched.State(),
		Generating: s.generating.Load(),
		Position:   pos,
		Total:      s.store.Duration(),
		Chunks:     s.store.Len(),
		Stats:      stats,
		Err:        err,
	}
}

// Name implements tts.LifecycleComponent.
func (s *Session) Name() string { return "session" }

// Shutdown stops generation and playback and waits for the run to exit.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()

	err := s.Wait(ctx)
	s.shutdown()
	s.poller.Stop()
	return err
}

// ForceStop cancels everything without waiting.
func (s *Session) ForceStop() error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.shutdown()
	return nil
}
