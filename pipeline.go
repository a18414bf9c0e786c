package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/tonic/internal/cache"
	"github.com/dgnsrekt/tonic/internal/telemetry"
	"github.com/dgnsrekt/tonic/tts"
	"github.com/dgnsrekt/tonic/tts/audio"
	"github.com/dgnsrekt/tonic/tts/engines"
	"github.com/dgnsrekt/tonic/tts/engines/command"
	"github.com/dgnsrekt/tonic/tts/engines/mock"
	"github.com/dgnsrekt/tonic/tts/session"
	"github.com/dgnsrekt/tonic/tts/voices"
)

const (
	memoryCacheSize = 64 << 20
	diskCacheLevel  = 3
)

// pipeline wires a session to its synthesizer, device, voices and
// telemetry, and owns their shutdown.
type pipeline struct {
	cfg       tts.Config
	session   *session.Session
	loader    *voices.Loader
	telemetry *telemetry.Telemetry
	lifecycle *tts.LifecycleManager
	fallback  *engines.Fallback // nil unless the command engine has one
}

type pipelineOptions struct {
	callbacks   session.Callbacks
	metricsAddr string
}

func newPipeline(cfg tts.Config, opts pipelineOptions) (_ *pipeline, err error) {
	p := &pipeline{
		cfg:       cfg,
		lifecycle: tts.NewLifecycleManager(),
	}
	defer func() {
		if err != nil {
			_ = p.lifecycle.Shutdown()
		}
	}()

	synth, err := p.newSynthesizer()
	if err != nil {
		return nil, err
	}

	devOpts := audio.DefaultDeviceOptions()
	if cfg.SampleRate > 0 {
		devOpts.SampleRate = cfg.SampleRate
	}
	devOpts.Volume = cfg.Volume
	dev, err := audio.SharedDevice(audio.DeviceKind(cfg.Device), devOpts)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	p.lifecycle.Register(tts.StageDevice, tts.CloseFunc("audio device", audio.CloseSharedDevice))

	sopts := session.DefaultOptions()
	sopts.Stream.Quality = cfg.Quality
	sopts.Stream.Speed = cfg.Speed
	sopts.Stream.MinChars = cfg.MinChars
	sopts.Stream.MaxChars = cfg.MaxChars
	sopts.StartupLead = cfg.StartupLead
	sopts.RefreshInterval = cfg.RefreshInterval
	sopts.Callbacks = opts.callbacks

	if opts.metricsAddr != "" {
		t, err := telemetry.New("tonic", Version)
		if err != nil {
			return nil, fmt.Errorf("unable to set up metrics: %w", err)
		}
		addr, err := t.Serve(opts.metricsAddr)
		if err != nil {
			return nil, fmt.Errorf("unable to serve metrics: %w", err)
		}
		log.Info("serving metrics", "addr", addr)
		p.telemetry = t
		sopts.Observer = t
		p.lifecycle.Register(tts.StageTelemetry, t)
	}

	p.loader, err = voices.NewLoader(cfg.Voices)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if cfg.Voices.Dir == "" {
		if dir, err := cacheDir("voices"); err == nil {
			p.loader.SetCacheDir(dir)
		}
	}

	p.session = session.New(dev, synth, nil, sopts)
	p.lifecycle.Register(tts.StagePlayback, p.session)
	return p, nil
}

// newSynthesizer builds the configured engine behind the caches. A command
// engine may fall back to the tone synthesizer; fallback audio is never
// cached.
func (p *pipeline) newSynthesizer() (tts.SynthesizeFunc, error) {
	if p.cfg.Engine != "command" {
		return p.cached(mock.New(p.cfg.Mock).Synthesize)
	}

	e, err := command.New(p.cfg.Command)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	synth, err := p.cached(e.Synthesize)
	if err != nil {
		return nil, err
	}
	if n := p.cfg.Command.FallbackAfter; n > 0 {
		p.fallback = engines.NewFallback(synth, mock.New(p.cfg.Mock).Synthesize, n)
		synth = p.fallback.Synthesize
	}
	return synth, nil
}

// cached puts the memory and disk caches in front of synth when enabled.
func (p *pipeline) cached(synth tts.SynthesizeFunc) (tts.SynthesizeFunc, error) {
	if !p.cfg.Cache.Enabled {
		return synth, nil
	}

	dir := p.cfg.Cache.Dir
	if dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("unable to expand cache dir: %w", err)
		}
		dir = expanded
	} else {
		d, err := cacheDir("audio")
		if err != nil {
			log.Warn("audio cache disabled", "error", err)
			return synth, nil
		}
		dir = d
	}

	disk, err := cache.NewDiskCache(dir, p.cfg.Cache.MaxSize, diskCacheLevel)
	if err != nil {
		log.Warn("audio cache disabled", "dir", dir, "error", err)
		return synth, nil
	}
	if age := p.cfg.Cache.MaxAge; age > 0 {
		if n := disk.RemoveOlderThan(time.Now().Add(-age)); n > 0 {
			log.Debug("expired audio cache entries removed", "count", n, "max_age", age)
		}
	}
	cached := cache.NewSynthesizer(synth, p.cfg.Engine, cache.NewMemoryCache(memoryCacheSize), disk)
	p.lifecycle.Register(tts.StageStorage, tts.CloseFunc("audio cache", func() error {
		cached.LogStats()
		return disk.Close()
	}))
	return cached.Synthesize, nil
}

// loadVoices fetches the default voices plus the configured one and hands
// them to the session.
func (p *pipeline) loadVoices(ctx context.Context, progress voices.ProgressFunc) error {
	if progress != nil {
		p.loader.OnProgress(progress)
	}
	reg, err := p.loader.Load(ctx, voiceNames(p.cfg.Voice)...)
	if err != nil {
		return err //nolint:wrapcheck
	}
	p.session.SetVoices(reg)
	return nil
}

// shutdown stops the session and its poller before the device is released.
// usingFallback reports whether the command engine gave up and the tone
// synthesizer took over.
func (p *pipeline) usingFallback() bool {
	return p.fallback != nil && p.fallback.UsingFallback()
}

func (p *pipeline) shutdown() error {
	defer tts.LogSynthesisSummary()
	return p.lifecycle.Shutdown() //nolint:wrapcheck
}

func voiceNames(voice string) []string {
	names := slices.Clone(voices.Defaults)
	if id := voices.ID(voice); !slices.Contains(names, id) {
		names = append(names, id)
	}
	return names
}

func cacheDir(sub string) (string, error) {
	dir, err := gap.NewScope(gap.User, "tonic").CacheDir()
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	return filepath.Join(dir, sub), nil
}
