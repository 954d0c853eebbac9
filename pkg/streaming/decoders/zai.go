package decoders

import (
	"context"
	"io"

	"github.com/tidwall/gjson"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming/diagnostics"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// ZaiDecoderID identifies the Zai/GLM-style decoder.
const ZaiDecoderID = "zai"

var zaiBackends = []string{"zai", "glm"}

// ZaiDecoder decodes Zai/GLM chat completion streams. The dialect is
// structurally the OpenAI shape, but it is a distinct decoder so backend
// ownership stays explicit and the two can evolve independently. GLM
// models interleave reasoning deltas with content; the field name varies
// between deployments (reasoning_content on vLLM-hosted GLM, reasoning on
// the Zai API), so payloads are probed rather than bound to one struct.
type ZaiDecoder struct {
	opts decoderOptions
}

// NewZaiDecoder creates the Zai/GLM-style stream decoder.
func NewZaiDecoder(opts ...Option) *ZaiDecoder {
	return &ZaiDecoder{opts: newDecoderOptions(opts)}
}

// ID implements StreamDecoder.
func (d *ZaiDecoder) ID() string { return ZaiDecoderID }

// Backends implements StreamDecoder.
func (d *ZaiDecoder) Backends() []string {
	backends := make([]string, len(zaiBackends))
	copy(backends, zaiBackends)
	return backends
}

// CanDecode implements StreamDecoder.
func (d *ZaiDecoder) CanDecode(contentType string) bool {
	return matchesEventStream(contentType)
}

// CanDecodeFor implements StreamDecoder.
func (d *ZaiDecoder) CanDecodeFor(backendID, contentType string) bool {
	return containsBackend(zaiBackends, backendID) && d.CanDecode(contentType)
}

// Decode implements StreamDecoder.
func (d *ZaiDecoder) Decode(ctx context.Context, r io.Reader) types.ChunkStream {
	mapper := &zaiFrameMapper{diag: d.opts.diag}
	return newChunkStream(ctx, r, mapper, d.opts)
}

type zaiFrameMapper struct {
	diag      *diagnostics.EventSuppressor
	completed bool
}

func (m *zaiFrameMapper) mapFrame(frame streaming.Frame) (types.StreamChunk, bool) {
	if frame.Done() {
		if m.completed {
			return types.StreamChunk{}, false
		}
		m.completed = true
		return types.StreamChunk{Done: true}, true
	}

	if frame.Event != "" && frame.Event != "message" {
		m.diag.Log(frame.Event, "ignoring unrecognized stream event type")
		return types.StreamChunk{}, false
	}

	if !gjson.Valid(frame.Data) {
		m.diag.Log("malformed_payload", "skipping frame with unparseable JSON payload")
		return types.StreamChunk{}, false
	}
	payload := gjson.Parse(frame.Data)

	var chunk types.StreamChunk
	if usage := payload.Get("usage"); usage.IsObject() {
		chunk.Usage = &types.Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}
	if choice := payload.Get("choices.0"); choice.Exists() {
		chunk.Content = choice.Get("delta.content").String()
		reasoning := choice.Get("delta.reasoning_content")
		if !reasoning.Exists() {
			reasoning = choice.Get("delta.reasoning")
		}
		chunk.Reasoning = reasoning.String()
		if choice.Get("finish_reason").String() != "" && !m.completed {
			m.completed = true
			chunk.Done = true
		}
	}

	if !chunk.Meaningful() && !chunk.Done && chunk.Usage == nil {
		return types.StreamChunk{}, false
	}
	return chunk, true
}
