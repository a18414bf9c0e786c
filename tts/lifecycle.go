package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// Stage orders shutdown. Lower stages stop first, so playback is silenced
// and its position poller canceled before the device underneath it is
// released, and caches are closed only after nothing can write to them.
type Stage int

const (
	// StagePlayback stops synthesis, the scheduler and the position poller.
	StagePlayback Stage = iota
	// StageTelemetry stops the metrics server and flushes the provider.
	StageTelemetry
	// StageDevice releases the audio output device.
	StageDevice
	// StageStorage closes the audio caches.
	StageStorage
)

func (s Stage) String() string {
	switch s {
	case StagePlayback:
		return "playback"
	case StageTelemetry:
		return "telemetry"
	case StageDevice:
		return "device"
	case StageStorage:
		return "storage"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// DefaultShutdownTimeout bounds the graceful part of Shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// LifecycleComponent is a resource released on shutdown.
type LifecycleComponent interface {
	Name() string
	// Shutdown releases the resource, waiting at most until ctx is done.
	Shutdown(ctx context.Context) error
	// ForceStop is called when Shutdown fails.
	ForceStop() error
}

type stagedComponent struct {
	stage Stage
	comp  LifecycleComponent
}

// LifecycleManager releases the pipeline's resources in stage order.
type LifecycleManager struct {
	mu         sync.Mutex
	components []stagedComponent
	stopped    bool
	timeout    time.Duration
	err        error
}

// NewLifecycleManager returns a manager with DefaultShutdownTimeout.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{timeout: DefaultShutdownTimeout}
}

// Register adds comp to stage. Components registered after Shutdown are
// released immediately.
func (lm *LifecycleManager) Register(stage Stage, comp LifecycleComponent) {
	lm.mu.Lock()
	if lm.stopped {
		lm.mu.Unlock()
		log.Warn("releasing component registered after shutdown", "component", comp.Name())
		ctx, cancel := context.WithTimeout(context.Background(), lm.timeout)
		defer cancel()
		if err := release(ctx, stage, comp); err != nil {
			log.Error("late component release failed", "component", comp.Name(), "error", err)
		}
		return
	}
	lm.components = append(lm.components, stagedComponent{stage: stage, comp: comp})
	lm.mu.Unlock()
	log.Debug("registered lifecycle component", "component", comp.Name(), "stage", stage)
}

// Watch returns a context canceled on SIGINT or SIGTERM. The caller still
// owns Shutdown; cancel detaches the signal handler.
func (lm *LifecycleManager) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			log.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Shutdown releases every component, stage by stage. Within a stage,
// components are released in reverse registration order. A failed
// Shutdown falls back to ForceStop. Later calls return the first result.
func (lm *LifecycleManager) Shutdown() error {
	lm.mu.Lock()
	if lm.stopped {
		err := lm.err
		lm.mu.Unlock()
		return err
	}
	lm.stopped = true
	components := slices.Clone(lm.components)
	lm.mu.Unlock()

	slices.Reverse(components)
	slices.SortStableFunc(components, func(a, b stagedComponent) int {
		return int(a.stage) - int(b.stage)
	})

	ctx, cancel := context.WithTimeout(context.Background(), lm.timeout)
	defer cancel()

	var errs []error
	for _, c := range components {
		if err := release(ctx, c.stage, c.comp); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Warn("shutdown finished with errors", "count", len(errs))
	} else {
		log.Debug("shutdown complete")
	}

	lm.mu.Lock()
	lm.err = err
	lm.mu.Unlock()
	return err
}

func release(ctx context.Context, stage Stage, comp LifecycleComponent) error {
	start := time.Now()
	err := comp.Shutdown(ctx)
	if err == nil {
		log.Debug("released", "component", comp.Name(), "stage", stage, "took", time.Since(start))
		return nil
	}
	log.Warn("graceful release failed, forcing", "component", comp.Name(), "error", err)
	if ferr := comp.ForceStop(); ferr != nil {
		return fmt.Errorf("%s: %w", comp.Name(), errors.Join(err, ferr))
	}
	return nil
}

// FuncComponent adapts plain functions to LifecycleComponent.
type FuncComponent struct {
	Label string
	Stop  func(ctx context.Context) error
	Force func() error
}

func (f FuncComponent) Name() string { return f.Label }

func (f FuncComponent) Shutdown(ctx context.Context) error {
	if f.Stop == nil {
		return nil
	}
	return f.Stop(ctx)
}

func (f FuncComponent) ForceStop() error {
	if f.Force == nil {
		return nil
	}
	return f.Force()
}

// CloseFunc wraps a close function that takes no context, such as a
// device or cache Close.
func CloseFunc(name string, closeFn func() error) LifecycleComponent {
	return FuncComponent{
		Label: name,
		Stop:  func(context.Context) error { return closeFn() },
	}
}
