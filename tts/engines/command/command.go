// Package command runs an external model process as a synthesizer.
//
// The process receives one JSON request on stdin and writes raw
// little-endian float32 mono samples to stdout. The sample rate of the
// output is fixed by configuration.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-shellwords"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/tonic/tts"
)

// Request is the JSON document written to the process's stdin.
type Request struct {
	Text       string    `json:"text"`
	Voice      []float32 `json:"voice"`
	Quality    int       `json:"quality"`
	Speed      float64   `json:"speed"`
	SampleRate int       `json:"sample_rate"`
}

// Engine executes the configured command once per segment.
type Engine struct {
	args       []string
	sampleRate int
	timeout    time.Duration
	grace      time.Duration
	env        []string

	limiter *rate.Limiter

	// One process at a time.
	mu sync.Mutex
}

// New parses the command line and prepares the engine.
func New(cfg tts.CommandConfig) (*Engine, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: parse command: %v", tts.ErrInvalidConfig, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: command is empty", tts.ErrInvalidConfig)
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("binary '%s' not found: %w", args[0], err)
	}
	for _, kv := range cfg.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return nil, fmt.Errorf("%w: env entry %q is not KEY=VALUE", tts.ErrInvalidConfig, kv)
		}
	}

	e := &Engine{
		args:       args,
		sampleRate: cfg.SampleRate,
		timeout:    cfg.Timeout,
		grace:      500 * time.Millisecond,
		env:        slices.Clone(cfg.Env),
	}
	if e.sampleRate <= 0 {
		e.sampleRate = tts.SampleRate
	}
	if e.timeout <= 0 {
		e.timeout = tts.DefaultCommandConfig().Timeout
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	log.Debug("command engine ready", "command", args[0], "args", len(args)-1, "sample_rate", e.sampleRate)
	return e, nil
}

// Synthesize implements tts.SynthesizeFunc.
func (e *Engine) Synthesize(ctx context.Context, text string, embedding []float32, quality int, speed float64) ([]float32, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, errors.New("text cannot be empty")
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}

	input, err := json.Marshal(Request{
		Text:       text,
		Voice:      embedding,
		Quality:    quality,
		Speed:      speed,
		SampleRate: e.sampleRate,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	out, err := e.run(ctx, input)
	if err != nil {
		return nil, 0, err
	}

	samples, err := tts.DecodeFloat32LE(out)
	if err != nil {
		return nil, 0, fmt.Errorf("decode audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, 0, errors.New("command produced no audio")
	}
	return samples, e.sampleRate, nil
}

func (e *Engine) run(ctx context.Context, input []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.args[0], e.args[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = e.grace

	start := time.Now()
	err := cmd.Run()
	log.Debug("command finished", "command", e.args[0], "duration", time.Since(start), "bytes", stdout.Len(), "error", err)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("command timed out after %v", e.timeout)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("command cancelled: %w", ctx.Err())
	case err != nil:
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("command failed: %w\nstderr: %s", err, msg)
		}
		return nil, fmt.Errorf("command failed: %w", err)
	}
	return stdout.Bytes(), nil
}

// interrupt asks the process to exit. Windows has no SIGINT.
func interrupt(p *os.Process) error {
	if p == nil {
		return nil
	}
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGINT)
}
