// Package decoders normalizes streaming responses from mutually
// incompatible text-generation backends into one canonical chunk sequence.
// Each backend family (OpenAI-compatible, Gemini, Zai/GLM) has its own
// decoder implementing the StreamDecoder interface; the Registry routes a
// (backend, content type) pair to the single decoder that owns it.
package decoders

import (
	"context"
	"io"
	"strings"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming/diagnostics"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// StreamDecoder decodes one backend family's wire format into canonical
// stream chunks. Implementations are stateless with respect to individual
// streams: every Decode call owns its own frame reader and accumulator, so
// a single decoder instance may serve concurrent streams.
type StreamDecoder interface {
	// ID is the decoder's stable identifier.
	ID() string

	// Backends returns the backend identifiers this decoder serves.
	// The registry enforces that no two decoders claim the same id.
	Backends() []string

	// CanDecode reports whether the decoder handles the given content
	// type. Matching is case-insensitive and tolerates media type
	// parameters; an empty content type never matches.
	CanDecode(contentType string) bool

	// CanDecodeFor reports whether the decoder serves backendID and
	// handles contentType.
	CanDecodeFor(backendID, contentType string) bool

	// Decode consumes the byte stream and produces a lazy, single-pass
	// chunk sequence. The sequence observes ctx: cancellation unblocks
	// pending reads and stops production. Call Decode again with a fresh
	// stream to restart; an exhausted sequence cannot be rewound.
	Decode(ctx context.Context, r io.Reader) types.ChunkStream
}

// Option configures a decoder instance.
type Option func(*decoderOptions)

type decoderOptions struct {
	maxEventSize int
	diag         *diagnostics.EventSuppressor
}

// WithMaxEventSize limits the accumulated data bytes of a single frame.
// Streams exceeding the limit fail with *types.EventTooLargeError.
func WithMaxEventSize(n int) Option {
	return func(o *decoderOptions) {
		o.maxEventSize = n
	}
}

// WithDiagnostics injects the suppressor used for unknown-event and
// malformed-payload reporting. Without it, occurrences are counted on a
// private suppressor with no sink.
func WithDiagnostics(diag *diagnostics.EventSuppressor) Option {
	return func(o *decoderOptions) {
		o.diag = diag
	}
}

func newDecoderOptions(opts []Option) decoderOptions {
	options := decoderOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.diag == nil {
		options.diag = diagnostics.NewEventSuppressor(0, nil)
	}
	return options
}

// matchesEventStream reports whether contentType denotes text/event-stream.
// The comparison is case-insensitive and strips media type parameters, so
// "text/event-stream; charset=utf-8" matches. Vendor types using the
// "+event-stream" structured syntax suffix match as well; anything else,
// including types that merely embed the words, does not.
func matchesEventStream(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType == "" {
		return false
	}
	return contentType == "text/event-stream" || strings.HasSuffix(contentType, "+event-stream")
}

// containsBackend reports whether backendID is in backends.
func containsBackend(backends []string, backendID string) bool {
	for _, b := range backends {
		if b == backendID {
			return true
		}
	}
	return false
}
