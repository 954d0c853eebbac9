package decoders

import (
	"fmt"
	"sort"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// Registry owns the fixed set of decoder instances and routes a
// (backend, content type) pair to the unique decoder authorized for it.
// A registry is built once at startup and is read-only afterwards, so it
// is safe to share across concurrent decode calls.
type Registry struct {
	decoders  []StreamDecoder
	byBackend map[string]StreamDecoder
}

// NewRegistry builds a registry from the given decoders. It fails with a
// *types.DuplicateBackendError when two decoders claim the same backend
// identifier: that is a configuration error, caught at startup rather
// than discovered at decode time.
func NewRegistry(decoders ...StreamDecoder) (*Registry, error) {
	r := &Registry{
		byBackend: make(map[string]StreamDecoder),
	}
	for _, decoder := range decoders {
		for _, backend := range decoder.Backends() {
			if existing, ok := r.byBackend[backend]; ok {
				return nil, &types.DuplicateBackendError{
					Backend:  backend,
					Existing: existing.ID(),
					Claimant: decoder.ID(),
				}
			}
			r.byBackend[backend] = decoder
		}
		r.decoders = append(r.decoders, decoder)
	}
	return r, nil
}

// NewDefaultRegistry builds a registry with the three built-in decoders.
// Options apply to every decoder.
func NewDefaultRegistry(opts ...Option) *Registry {
	registry, err := NewRegistry(
		NewOpenAIDecoder(opts...),
		NewGeminiDecoder(opts...),
		NewZaiDecoder(opts...),
	)
	if err != nil {
		// The built-in backend sets are disjoint; reaching here is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("built-in decoder registry: %v", err))
	}
	return registry
}

// Resolve returns the decoder whose CanDecodeFor accepts the pair, or
// false when no registered decoder matches.
func (r *Registry) Resolve(backendID, contentType string) (StreamDecoder, bool) {
	decoder, ok := r.byBackend[backendID]
	if !ok || !decoder.CanDecodeFor(backendID, contentType) {
		return nil, false
	}
	return decoder, true
}

// Decoders returns the registered decoders in registration order.
func (r *Registry) Decoders() []StreamDecoder {
	out := make([]StreamDecoder, len(r.decoders))
	copy(out, r.decoders)
	return out
}

// Backends returns every claimed backend identifier, sorted.
func (r *Registry) Backends() []string {
	backends := make([]string, 0, len(r.byBackend))
	for backend := range r.byBackend {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	return backends
}
