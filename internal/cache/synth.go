package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tonic/tts"
)

// Synthesizer wraps a tts.SynthesizeFunc with one or more cache tiers,
// fastest first. A hit in a slower tier is copied into the faster ones.
type Synthesizer struct {
	next   tts.SynthesizeFunc
	engine string
	tiers  []Cache
}

// NewSynthesizer caches the output of next. engine is folded into every
// key so different engines never share entries.
func NewSynthesizer(next tts.SynthesizeFunc, engine string, tiers ...Cache) *Synthesizer {
	return &Synthesizer{next: next, engine: engine, tiers: tiers}
}

// LogStats logs the counters of every tier at debug level.
func (s *Synthesizer) LogStats() {
	for i, tier := range s.tiers {
		st := tier.Stats()
		log.Debug("audio cache stats",
			"tier", i,
			"items", st.Items,
			"size", st.Size,
			"hits", st.Hits,
			"misses", st.Misses,
			"hit_rate", fmt.Sprintf("%.0f%%", st.HitRate()*100),
			"evictions", st.Evictions)
	}
}

// Key derives the cache key for one synthesizer call.
func Key(engine, text string, embedding []float32, quality int, speed float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%.3f\x00", engine, text, quality, speed)
	h.Write(tts.EncodeFloat32LE(embedding))
	return hex.EncodeToString(h.Sum(nil))
}

// Synthesize implements tts.SynthesizeFunc.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, embedding []float32, quality int, speed float64) ([]float32, int, error) {
	key := Key(s.engine, text, embedding, quality, speed)

	for i, tier := range s.tiers {
		b, ok := tier.Get(key)
		if !ok {
			continue
		}
		samples, rate, err := decodeEntry(b)
		if err != nil {
			log.Debug("cache entry corrupted", "key", key[:12], "error", err)
			tier.Delete(key)
			continue
		}
		tts.LogCacheHit(key[:12], len(b))
		for _, faster := range s.tiers[:i] {
			faster.Put(key, b)
		}
		return samples, rate, nil
	}
	tts.LogCacheMiss(key[:12])

	samples, rate, err := s.next(ctx, text, embedding, quality, speed)
	if err != nil {
		return nil, 0, err
	}

	b := encodeEntry(samples, rate)
	for _, tier := range s.tiers {
		if err := tier.Put(key, b); err != nil {
			log.Debug("cache put failed", "key", key[:12], "error", err)
		}
	}
	return samples, rate, nil
}

// encodeEntry lays out the sample rate as a uint32 followed by the samples.
func encodeEntry(samples []float32, rate int) []byte {
	b := make([]byte, 4, 4+len(samples)*tts.Float32Size)
	binary.LittleEndian.PutUint32(b, uint32(rate))
	return append(b, tts.EncodeFloat32LE(samples)...)
}

func decodeEntry(b []byte) ([]float32, int, error) {
	if len(b) < 4 {
		return nil, 0, ErrCorrupted
	}
	rate := binary.LittleEndian.Uint32(b)
	if rate == 0 || rate > math.MaxInt32 {
		return nil, 0, ErrCorrupted
	}
	samples, err := tts.DecodeFloat32LE(b[4:])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return samples, int(rate), nil
}
