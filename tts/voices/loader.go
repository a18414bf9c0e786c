package voices

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/tonic/tts"
)

// ProgressFunc receives the overall load percentage, 0 to 100. Values never
// decrease.
type ProgressFunc func(percent int)

// Loader fetches embedding files from a base URL or a local directory.
type Loader struct {
	baseURL  string
	dir      string
	cacheDir string
	client   *http.Client

	progress  ProgressFunc
	sometimes rate.Sometimes
	mu        sync.Mutex
	last      int
}

// NewLoader creates a loader from configuration. A configured directory
// takes precedence over the URL.
func NewLoader(cfg tts.VoicesConfig) (*Loader, error) {
	l := &Loader{
		baseURL:   cfg.URL,
		client:    &http.Client{Timeout: cfg.Timeout},
		sometimes: rate.Sometimes{Interval: 100 * time.Millisecond},
		last:      -1,
	}

	if cfg.Dir != "" {
		dir, err := homedir.Expand(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("expand voices dir: %w", err)
		}
		l.dir = dir
	} else if l.baseURL != "" && !strings.HasSuffix(l.baseURL, "/") {
		l.baseURL += "/"
	}
	if l.dir == "" && l.baseURL == "" {
		return nil, fmt.Errorf("%w: voices need a url or dir", tts.ErrInvalidConfig)
	}
	return l, nil
}

// OnProgress installs a progress callback.
func (l *Loader) OnProgress(fn ProgressFunc) {
	l.progress = fn
}

// SetCacheDir keeps downloaded files in dir so later loads skip the network.
func (l *Loader) SetCacheDir(dir string) {
	l.cacheDir = dir
}

// Load reads the named voices into a new registry. Aliases are resolved,
// so Load(ctx, "Female") reads F1.bin.
func (l *Loader) Load(ctx context.Context, names ...string) (*Registry, error) {
	if len(names) == 0 {
		names = Defaults
	}

	l.mu.Lock()
	l.last = -1
	l.mu.Unlock()

	l.report(0, true)
	reg := NewRegistry()
	for i, name := range names {
		part := func(frac float64) {
			l.report(int((float64(i)+frac)/float64(len(names))*100), false)
		}

		emb, err := l.loadOne(ctx, name, part)
		if err != nil {
			return nil, fmt.Errorf("load voice %s: %w", name, err)
		}
		reg.Add(name, emb)
		part(1)
	}
	l.report(100, true)

	log.Info("voices loaded", "voices", reg.Names(), "source", l.source())
	return reg, nil
}

func (l *Loader) source() string {
	if l.dir != "" {
		return l.dir
	}
	return l.baseURL
}

func (l *Loader) loadOne(ctx context.Context, name string, part func(float64)) ([]float32, error) {
	file := FileName(name)

	if l.dir != "" {
		b, err := os.ReadFile(filepath.Join(l.dir, file))
		if err != nil {
			return nil, err
		}
		return decode(b)
	}

	if l.cacheDir != "" {
		if b, err := os.ReadFile(filepath.Join(l.cacheDir, file)); err == nil {
			log.Debug("voice cache hit", "file", file)
			return decode(b)
		}
	}

	b, err := l.download(ctx, file, part)
	if err != nil {
		return nil, err
	}
	emb, err := decode(b)
	if err != nil {
		return nil, err
	}

	if l.cacheDir != "" {
		if err := os.MkdirAll(l.cacheDir, 0o755); err == nil {
			if err := os.WriteFile(filepath.Join(l.cacheDir, file), b, 0o644); err != nil {
				log.Warn("could not cache voice", "file", file, "error", err)
			}
		}
	}
	return emb, nil
}

func (l *Loader) download(ctx context.Context, file string, part func(float64)) ([]byte, error) {
	u, err := url.JoinPath(l.baseURL, file)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}

	var r io.Reader = resp.Body
	if resp.ContentLength > 0 {
		r = &progressReader{r: resp.Body, total: resp.ContentLength, fn: part}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	log.Debug("voice downloaded", "file", file, "size", humanize.Bytes(uint64(len(b))), "took", time.Since(start))
	return b, nil
}

// report publishes pct if it is larger than the last value. Intermediate
// values are throttled; force bypasses the throttle.
func (l *Loader) report(pct int, force bool) {
	if l.progress == nil {
		return
	}
	pct = min(max(pct, 0), 100)

	l.mu.Lock()
	defer l.mu.Unlock()
	if pct <= l.last {
		return
	}
	publish := func() {
		l.last = pct
		l.progress(pct)
	}
	if force {
		publish()
		return
	}
	l.sometimes.Do(publish)
}

func decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, tts.ErrVoiceNotFound
	}
	return tts.DecodeFloat32LE(b)
}

type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	p.fn(min(float64(p.read)/float64(p.total), 1))
	return n, err
}
