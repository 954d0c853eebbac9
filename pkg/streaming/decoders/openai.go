package decoders

import (
	"context"
	"io"

	json "github.com/goccy/go-json"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming/diagnostics"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// OpenAIDecoderID identifies the OpenAI-compatible decoder.
const OpenAIDecoderID = "openai-compatible"

// openAIBackends are the backend families that speak the OpenAI chat
// completions streaming dialect.
var openAIBackends = []string{"openai", "openrouter", "cerebras", "qwen"}

// openAIStreamChunk is the wire shape of one OpenAI streaming frame.
type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`         // GLM-4.6, OpenCode/Zen style
			ReasoningContent string `json:"reasoning_content"` // vLLM/Synthetic style
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIDecoder decodes OpenAI-compatible chat completion streams.
// Completion is signaled by a non-null finish_reason or by the trailing
// [DONE] sentinel; usage may arrive on a dedicated frame with empty
// choices when the caller requested stream_options.include_usage.
type OpenAIDecoder struct {
	opts decoderOptions
}

// NewOpenAIDecoder creates the OpenAI-compatible stream decoder.
func NewOpenAIDecoder(opts ...Option) *OpenAIDecoder {
	return &OpenAIDecoder{opts: newDecoderOptions(opts)}
}

// ID implements StreamDecoder.
func (d *OpenAIDecoder) ID() string { return OpenAIDecoderID }

// Backends implements StreamDecoder.
func (d *OpenAIDecoder) Backends() []string {
	backends := make([]string, len(openAIBackends))
	copy(backends, openAIBackends)
	return backends
}

// CanDecode implements StreamDecoder.
func (d *OpenAIDecoder) CanDecode(contentType string) bool {
	return matchesEventStream(contentType)
}

// CanDecodeFor implements StreamDecoder.
func (d *OpenAIDecoder) CanDecodeFor(backendID, contentType string) bool {
	return containsBackend(openAIBackends, backendID) && d.CanDecode(contentType)
}

// Decode implements StreamDecoder.
func (d *OpenAIDecoder) Decode(ctx context.Context, r io.Reader) types.ChunkStream {
	mapper := &openAIFrameMapper{diag: d.opts.diag}
	return newChunkStream(ctx, r, mapper, d.opts)
}

type openAIFrameMapper struct {
	diag      *diagnostics.EventSuppressor
	completed bool
}

func (m *openAIFrameMapper) mapFrame(frame streaming.Frame) (types.StreamChunk, bool) {
	if frame.Done() {
		if m.completed {
			// finish_reason already completed the stream.
			return types.StreamChunk{}, false
		}
		m.completed = true
		return types.StreamChunk{Done: true}, true
	}

	if frame.Event != "" && frame.Event != "message" {
		m.diag.Log(frame.Event, "ignoring unrecognized stream event type")
		return types.StreamChunk{}, false
	}

	var payload openAIStreamChunk
	if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
		m.diag.Log("malformed_payload", "skipping frame with unparseable JSON payload: "+err.Error())
		return types.StreamChunk{}, false
	}

	var chunk types.StreamChunk
	if payload.Usage != nil {
		chunk.Usage = &types.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		}
	}
	if len(payload.Choices) > 0 {
		choice := payload.Choices[0]
		chunk.Content = choice.Delta.Content
		chunk.Reasoning = choice.Delta.Reasoning
		if chunk.Reasoning == "" {
			chunk.Reasoning = choice.Delta.ReasoningContent
		}
		if choice.FinishReason != "" && !m.completed {
			// The completing frame's own content rides along with Done.
			m.completed = true
			chunk.Done = true
		}
	}

	if !chunk.Meaningful() && !chunk.Done && chunk.Usage == nil {
		return types.StreamChunk{}, false
	}
	return chunk, true
}
