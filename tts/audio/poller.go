package audio

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dgnsrekt/tonic/tts"
)

// Poller publishes the scheduler's position at a steady cadence while
// playing, and marks playback finished once the end of the generated audio
// is reached.
type Poller struct {
	sched      *Scheduler
	updateRate time.Duration
	generating func() bool

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	onPosition []func(time.Duration)
	onFinish   []func()
}

// NewPoller creates a poller. generating reports whether synthesis is still
// producing audio; nil means it never is.
func NewPoller(sched *Scheduler, updateRate time.Duration, generating func() bool) *Poller {
	if updateRate <= 0 {
		updateRate = tts.RefreshInterval
	}
	if generating == nil {
		generating = func() bool { return false }
	}
	return &Poller{sched: sched, updateRate: updateRate, generating: generating}
}

// OnPosition registers a callback for every published position.
func (p *Poller) OnPosition(fn func(time.Duration)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPosition = append(p.onPosition, fn)
}

// OnFinish registers a callback for when playback reaches the end.
func (p *Poller) OnFinish(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinish = append(p.onFinish, fn)
}

// Start begins polling unless a loop is already running. The loop ends when
// ctx is canceled, Stop is called, or playback stops or finishes.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		select {
		case <-p.done:
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop ends the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.updateRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.tick() {
				return
			}
		}
	}
}

// tick publishes one position and reports whether polling should continue.
func (p *Poller) tick() bool {
	switch p.sched.State() {
	case tts.StatePaused, tts.StateSeeking:
		return true
	case tts.StatePlaying:
	default:
		return false
	}

	finished := p.sched.Finish(p.generating())
	pos := p.sched.Position()

	p.mu.Lock()
	onPosition := slices.Clone(p.onPosition)
	onFinish := slices.Clone(p.onFinish)
	p.mu.Unlock()

	for _, fn := range onPosition {
		fn(pos)
	}
	if finished {
		for _, fn := range onFinish {
			fn()
		}
		return false
	}
	return true
}
