package decoders

import (
	"context"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming/diagnostics"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// GeminiDecoderID identifies the Gemini-style decoder.
const GeminiDecoderID = "gemini"

var geminiBackends = []string{"gemini"}

// geminiStreamChunk is the wire shape of one streamGenerateContent frame.
type geminiStreamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// GeminiDecoder decodes Gemini streamGenerateContent SSE streams.
// Completion is signaled by the candidate's finishReason; there is no
// [DONE] sentinel convention. usageMetadata may ride on the completing
// frame or on a later frame of its own, and either placement populates
// the chunk sequence's usage.
type GeminiDecoder struct {
	opts decoderOptions
}

// NewGeminiDecoder creates the Gemini-style stream decoder.
func NewGeminiDecoder(opts ...Option) *GeminiDecoder {
	return &GeminiDecoder{opts: newDecoderOptions(opts)}
}

// ID implements StreamDecoder.
func (d *GeminiDecoder) ID() string { return GeminiDecoderID }

// Backends implements StreamDecoder.
func (d *GeminiDecoder) Backends() []string {
	backends := make([]string, len(geminiBackends))
	copy(backends, geminiBackends)
	return backends
}

// CanDecode implements StreamDecoder.
func (d *GeminiDecoder) CanDecode(contentType string) bool {
	return matchesEventStream(contentType)
}

// CanDecodeFor implements StreamDecoder.
func (d *GeminiDecoder) CanDecodeFor(backendID, contentType string) bool {
	return containsBackend(geminiBackends, backendID) && d.CanDecode(contentType)
}

// Decode implements StreamDecoder.
func (d *GeminiDecoder) Decode(ctx context.Context, r io.Reader) types.ChunkStream {
	mapper := &geminiFrameMapper{diag: d.opts.diag}
	return newChunkStream(ctx, r, mapper, d.opts)
}

type geminiFrameMapper struct {
	diag      *diagnostics.EventSuppressor
	completed bool
}

func (m *geminiFrameMapper) mapFrame(frame streaming.Frame) (types.StreamChunk, bool) {
	if frame.Done() {
		// Not part of the Gemini dialect, but some proxies append it.
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

	var payload geminiStreamChunk
	if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
		m.diag.Log("malformed_payload", "skipping frame with unparseable JSON payload: "+err.Error())
		return types.StreamChunk{}, false
	}

	var chunk types.StreamChunk
	if payload.UsageMetadata != nil {
		chunk.Usage = &types.Usage{
			PromptTokens:     payload.UsageMetadata.PromptTokenCount,
			CompletionTokens: payload.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      payload.UsageMetadata.TotalTokenCount,
		}
	}
	if len(payload.Candidates) > 0 {
		candidate := payload.Candidates[0]
		// All parts of one frame join into a single delta, no separator.
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		chunk.Content = sb.String()
		if candidate.FinishReason != "" && !m.completed {
			m.completed = true
			chunk.Done = true
		}
	}

	if !chunk.Meaningful() && !chunk.Done && chunk.Usage == nil {
		return types.StreamChunk{}, false
	}
	return chunk, true
}
