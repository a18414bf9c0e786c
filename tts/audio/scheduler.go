package audio

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tonic/tts"
)

type scheduled struct {
	voice Voice
	end   time.Duration // Device time at which the voice runs out
}

// Scheduler maps arriving chunks onto one gapless timeline on a Device and
// supports seeking within buffered audio.
//
// At most one timeline is active: every interruption stops all scheduled
// voices before anything new is scheduled.
type Scheduler struct {
	mu    sync.Mutex
	dev   Device
	store *Store
	state *tts.StateMachine
	lead  time.Duration

	origin      time.Duration // Device time of timeline position zero
	nextSlot    time.Duration // Device time for the next live chunk
	voices      []scheduled
	interrupted bool
	held        time.Duration // Position reported while stopped or finished

	onState func(tts.StateType)
}

// NewScheduler creates a scheduler that plays on dev and seeks within store.
func NewScheduler(dev Device, store *Store) *Scheduler {
	s := &Scheduler{
		dev:   dev,
		store: store,
		state: tts.NewStateMachine(),
		lead:  tts.StartupLead,
	}
	s.state.OnChange(func(from, to tts.StateType) {
		tts.LogPlaybackEvent("state", "from", from, "to", to)
		if s.onState != nil {
			s.onState(to)
		}
	})
	return s
}

// SetStartupLead changes the delay before the first chunk of a run.
func (s *Scheduler) SetStartupLead(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lead = d
}

// OnStateChange registers a callback invoked with the scheduler lock held
// after every state change. It must not call back into the scheduler.
func (s *Scheduler) OnStateChange(fn func(tts.StateType)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Start begins a new timeline for a fresh run.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllLocked()
	s.interrupted = false
	s.held = 0

	if s.dev.Suspended() {
		if err := s.dev.Resume(); err != nil {
			return s.deviceErrorLocked("resume", err)
		}
	}

	s.nextSlot = s.dev.Now() + s.lead
	s.origin = s.nextSlot
	s.setStateLocked(tts.StatePlaying)

	log.Debug("playback timeline started", "origin", s.origin)
	return nil
}

// Enqueue schedules a live chunk directly after the previous one. After a
// seek or stop it does nothing; the chunk is still expected to be in the
// store so a later seek can reach it.
//
// When synthesis falls behind and the slot has already passed, the chunk
// starts now and the timeline origin moves by the stall, so Position keeps
// following what was actually heard.
func (s *Scheduler) Enqueue(chunk tts.AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interrupted {
		return nil
	}

	at := max(s.nextSlot, s.dev.Now())
	if err := s.scheduleLocked(chunk, at, 0); err != nil {
		return err
	}
	if stall := at - s.nextSlot; stall > 0 {
		s.origin += stall
		log.Debug("playback underrun", "stall", stall)
	}
	s.nextSlot = at + chunk.Duration()
	return nil
}

// Seek restarts playback at fraction (clamped to [0, 1]) of the buffered
// audio. Chunks entirely before the target are skipped, the chunk containing
// it starts immediately at the right offset and the rest follow back to
// back. Live chunks are no longer scheduled afterwards.
func (s *Scheduler) Seek(fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(fraction)
}

func (s *Scheduler) seekLocked(fraction float64) error {
	if s.store.Len() == 0 {
		return nil
	}

	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}

	s.setStateLocked(tts.StateSeeking)
	s.interrupted = true
	s.stopAllLocked()

	if s.dev.Suspended() {
		if err := s.dev.Resume(); err != nil {
			return s.deviceErrorLocked("resume", err)
		}
	}

	total := s.store.Duration()
	seekTime := time.Duration(fraction * float64(total))
	now := s.dev.Now()
	s.origin = now - seekTime

	next := now
	var err error
	s.store.Walk(func(_ int, c tts.AudioChunk, start, end time.Duration) bool {
		if end <= seekTime {
			return true
		}
		offset := max(seekTime-start, 0)
		if err = s.scheduleLocked(c, next, offset); err != nil {
			return false
		}
		next += c.Duration() - offset
		return true
	})
	if err != nil {
		return err
	}

	s.nextSlot = next
	s.setStateLocked(tts.StatePlaying)

	log.Debug("seek", "fraction", fraction, "target", seekTime, "total", total)
	return nil
}

// Pause suspends the device clock. Scheduled voices keep their absolute
// start times and continue exactly where they were on Resume.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseLocked()
}

func (s *Scheduler) pauseLocked() error {
	if s.state.Current() != tts.StatePlaying {
		return nil
	}
	if err := s.dev.Suspend(); err != nil {
		return s.deviceErrorLocked("suspend", err)
	}
	s.setStateLocked(tts.StatePaused)
	return nil
}

// Resume restarts a paused device clock.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeLocked()
}

func (s *Scheduler) resumeLocked() error {
	if s.dev.Suspended() {
		if err := s.dev.Resume(); err != nil {
			return s.deviceErrorLocked("resume", err)
		}
	}
	if s.state.Current() == tts.StatePaused {
		s.setStateLocked(tts.StatePlaying)
	}
	return nil
}

// TogglePlay pauses while playing and otherwise resumes. Once generation is
// over, resuming at the end replays from the start, and resuming with
// nothing scheduled seeks to the last known position.
func (s *Scheduler) TogglePlay(generating bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Current() == tts.StatePlaying {
		return s.pauseLocked()
	}

	from := s.state.Current()
	pos := s.positionLocked()
	if err := s.resumeLocked(); err != nil {
		return err
	}

	total := s.store.Duration()
	switch {
	case !generating && pos >= total:
		return s.seekLocked(0)
	case !generating && s.store.Len() > 0 && s.activeLocked() == 0:
		// total may have grown since pos was taken, so this is approximate
		return s.seekLocked(float64(pos) / float64(total))
	case generating && from == tts.StateStopped:
		return s.seekLocked(float64(pos) / float64(max(total, 1)))
	}
	return nil
}

// Stop cancels every scheduled voice. Live chunks are no longer scheduled
// until the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.held = s.positionLocked()
	s.stopAllLocked()
	s.interrupted = true
	s.setStateLocked(tts.StateStopped)
}

// Reset stops playback and returns to the idle state.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopAllLocked()
	s.interrupted = false
	s.held = 0
	s.origin = 0
	s.nextSlot = 0
	s.setStateLocked(tts.StateIdle)
}

// Finish marks playback finished once the position has reached the end of
// the buffered audio and generation is over.
func (s *Scheduler) Finish(generating bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generating || s.state.Current() != tts.StatePlaying {
		return false
	}
	total := s.store.Duration()
	if s.positionLocked() < total {
		return false
	}
	s.held = total
	s.setStateLocked(tts.StateFinished)
	return true
}

// Position returns the current timeline position, clamped to the buffered
// duration.
func (s *Scheduler) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Scheduler) positionLocked() time.Duration {
	var pos time.Duration
	switch s.state.Current() {
	case tts.StateIdle:
		return 0
	case tts.StateStopped, tts.StateFinished:
		pos = s.held
	default:
		pos = s.dev.Now() - s.origin
	}
	return min(max(pos, 0), s.store.Duration())
}

// State returns the playback state.
func (s *Scheduler) State() tts.StateType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Current()
}

// Interrupted reports whether live chunks are being held back.
func (s *Scheduler) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Active returns the number of voices that have not yet run out.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Scheduler) activeLocked() int {
	now := s.dev.Now()
	live := s.voices[:0]
	for _, v := range s.voices {
		if v.end > now {
			live = append(live, v)
		}
	}
	clear(s.voices[len(live):])
	s.voices = live
	return len(live)
}

func (s *Scheduler) scheduleLocked(chunk tts.AudioChunk, at, offset time.Duration) error {
	voice, err := s.dev.Schedule(chunk, at, offset)
	if err != nil {
		return s.deviceErrorLocked("schedule", err)
	}
	start := max(at, s.dev.Now())
	s.voices = append(s.voices, scheduled{voice: voice, end: start + chunk.Duration() - offset})
	return nil
}

// stopAllLocked stops every voice. Stop failures are logged and dropped.
func (s *Scheduler) stopAllLocked() {
	for _, v := range s.voices {
		if err := v.voice.Stop(); err != nil {
			log.Debug("voice stop failed", "error", err)
		}
	}
	clear(s.voices)
	s.voices = s.voices[:0]
}

// deviceErrorLocked forces a safe stopped state after an output failure.
func (s *Scheduler) deviceErrorLocked(op string, err error) error {
	perr := &tts.PlaybackDeviceError{Op: op, Err: err}
	log.Error("playback device failure", "op", op, "error", err)

	s.held = s.positionLocked()
	s.stopAllLocked()
	s.interrupted = true
	s.setStateLocked(tts.StateStopped)
	return perr
}

func (s *Scheduler) setStateLocked(to tts.StateType) {
	if !s.state.Transition(to) {
		s.state.Force(to)
	}
}
