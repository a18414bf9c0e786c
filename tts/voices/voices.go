// Package voices loads speaker embeddings and looks them up by name.
package voices

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dgnsrekt/tonic/tts"
)

// Built-in voice names.
const (
	Female = "Female"
	Male   = "Male"
)

var aliases = map[string]string{
	strings.ToLower(Female): "F1",
	strings.ToLower(Male):   "M1",
}

// Defaults are the embeddings fetched when no names are given.
var Defaults = []string{"F1", "M1"}

// ID resolves an alias such as Female to the embedding file ID F1. Other
// names are returned upper-cased.
func ID(name string) string {
	name = strings.TrimSpace(name)
	if id, ok := aliases[strings.ToLower(name)]; ok {
		return id
	}
	return strings.ToUpper(name)
}

// FileName returns the embedding file for name.
func FileName(name string) string {
	return ID(name) + ".bin"
}

// Registry holds loaded embeddings. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	voices map[string][]float32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{voices: make(map[string][]float32)}
}

// Add stores an embedding under the resolved ID of name.
func (r *Registry) Add(name string, embedding []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voices[ID(name)] = embedding
}

// Voice returns the embedding for name or alias.
func (r *Registry) Voice(name string) (tts.Voice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	emb, ok := r.voices[ID(name)]
	if !ok {
		return tts.Voice{}, fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, name)
	}
	return tts.Voice{Name: name, Embedding: emb}, nil
}

// Names lists the loaded IDs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.voices))
	for id := range r.voices {
		names = append(names, id)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of loaded voices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.voices)
}
