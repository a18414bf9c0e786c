package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/session"
)

// playbackPoll is how often headless mode checks whether playback ended.
const playbackPoll = 100 * time.Millisecond

// statsPrinter writes one line per event for non-interactive output.
type statsPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *statsPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *statsPrinter) progress(pct int) {
	p.printf("loading voices %d%%\n", pct)
}

func (p *statsPrinter) chunk(ev tts.StreamEvent, st tts.RunStats) {
	p.printf("[%d/%d] %-42s %6s audio  rtf %s  %s chars/s\n",
		ev.Index, ev.Total,
		truncate.StringWithTail(ev.Text, 40, "…"),
		formatClock(ev.Chunk.Duration()),
		formatRTF(st.RealTimeFactor),
		humanize.Comma(int64(st.CharsPerSecond)),
	)
}

func (p *statsPrinter) summary(r session.Result) {
	first := "n/a"
	if r.Stats.FirstChunkLatency != nil {
		first = r.Stats.FirstChunkLatency.Round(time.Millisecond).String()
	}
	verb := "generated"
	if r.Stopped {
		verb = "stopped after"
	}
	p.printf("%s %d segments, %s of audio in %s (first chunk %s, rtf %s)\n",
		verb, r.Stats.Segments, formatClock(r.Stats.TotalAudio),
		r.Stats.Elapsed.Round(time.Millisecond), first, formatRTF(r.Stats.RealTimeFactor))
}

func formatRTF(rtf *float64) string {
	if rtf == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2fx", *rtf)
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// runHeadless generates text, printing stats lines to w, then exports and
// plays the result as the flags ask.
func runHeadless(ctx context.Context, cfg tts.Config, text string, w io.Writer) error {
	printer := &statsPrinter{w: w}
	done := make(chan session.Result, 1)

	p, err := newPipeline(cfg, pipelineOptions{
		callbacks: session.Callbacks{
			OnChunk: printer.chunk,
			OnDone:  func(r session.Result) { done <- r },
			OnPlaybackError: func(err error) {
				log.Warn("playback error", "error", err)
			},
		},
		metricsAddr: metricsAddr,
	})
	if err != nil {
		return err
	}
	defer p.shutdown() //nolint:errcheck

	ctx, cancel := p.lifecycle.Watch(ctx)
	defer cancel()

	return generateAndPlay(ctx, p, text, printer, done)
}

func generateAndPlay(ctx context.Context, p *pipeline, text string, printer *statsPrinter, done <-chan session.Result) error {
	if err := p.loadVoices(ctx, printer.progress); err != nil {
		return fmt.Errorf("unable to load voices: %w", err)
	}
	if err := p.session.Generate(text, p.cfg.Voice); err != nil {
		return err //nolint:wrapcheck
	}

	var res session.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		p.session.Stop()
		return ctx.Err()
	}
	if res.Err != nil {
		// whatever was synthesized before the failure is still saved
		if outputPath != "" && p.session.Store().Len() > 0 {
			if err := exportAudio(p, printer); err != nil {
				log.Warn("partial export failed", "error", err)
			}
		}
		return res.Err
	}
	printer.summary(res)
	if p.usingFallback() {
		printer.printf("command engine failed; later segments used the fallback tones\n")
	}

	if outputPath != "" {
		if err := exportAudio(p, printer); err != nil {
			return err
		}
	}

	if noPlay {
		return nil
	}
	return waitForPlayback(ctx, p.session)
}

func exportAudio(p *pipeline, printer *statsPrinter) error {
	written, err := p.session.Export(outputPath)
	if err != nil {
		return fmt.Errorf("unable to export audio: %w", err)
	}
	var size uint64
	if info, err := os.Stat(written); err == nil {
		size = uint64(info.Size()) //nolint:gosec
	}
	printer.printf("saved %s (%s)\n", written, humanize.Bytes(size))
	return nil
}

// waitForPlayback blocks until the scheduler reports the end of audio.
func waitForPlayback(ctx context.Context, s *session.Session) error {
	t := time.NewTicker(playbackPoll)
	defer t.Stop()

	for {
		switch st := s.Status(); st.State {
		case tts.StateFinished, tts.StateStopped:
			return nil
		case tts.StateIdle:
			if st.Chunks == 0 {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			s.StopPlayback()
			return ctx.Err()
		case <-t.C:
		}
	}
}
