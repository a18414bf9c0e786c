package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/session"
)

type (
	chunkMsg struct {
		event tts.StreamEvent
		stats tts.RunStats
	}
	doneMsg         session.Result
	positionMsg     time.Duration
	stateMsg        tts.StateType
	playbackErrMsg  struct{ err error }
	loadProgressMsg int
	loadDoneMsg     struct{ err error }
	reloadMsg       string
	exportedMsg     struct {
		path string
		size int64
	}
	errMsg                  struct{ err error }
	tickMsg                 time.Time
	statusMessageTimeoutMsg struct{}
)

func (e errMsg) Error() string { return e.err.Error() }

// Bridge carries session callbacks into the Bubble Tea event loop.
type Bridge struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewBridge creates a bridge with room for a burst of events.
func NewBridge() *Bridge {
	return &Bridge{
		ch:   make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
}

// Close drops all later events. Call it once the program has exited so
// senders never block on a reader that is gone.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

// Callbacks returns session callbacks that forward to the UI. Position
// and state updates are dropped when the UI falls behind; the periodic
// status tick catches up.
func (b *Bridge) Callbacks() session.Callbacks {
	return session.Callbacks{
		OnChunk:         func(ev tts.StreamEvent, st tts.RunStats) { b.send(chunkMsg{ev, st}) },
		OnDone:          func(r session.Result) { b.send(doneMsg(r)) },
		OnPosition:      func(d time.Duration) { b.offer(positionMsg(d)) },
		OnState:         func(s tts.StateType) { b.offer(stateMsg(s)) },
		OnPlaybackError: func(err error) { b.send(playbackErrMsg{err}) },
	}
}

// Progress forwards voice load progress.
func (b *Bridge) Progress(pct int) {
	b.offer(loadProgressMsg(pct))
}

// Loaded reports that loading finished.
func (b *Bridge) Loaded(err error) {
	b.send(loadDoneMsg{err})
}

// Reload replaces the text being spoken and starts a new run.
func (b *Bridge) Reload(text string) {
	b.send(reloadMsg(text))
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

func (b *Bridge) offer(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

func (b *Bridge) listen() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}

func tick() tea.Cmd {
	return tea.Tick(tts.RefreshInterval*2, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForStatusMessageTimeout(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{}
	})
}
