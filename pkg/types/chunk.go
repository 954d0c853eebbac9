package types

// Usage contains token accounting for a completed stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one normalized unit of decoded backend output. Every
// decoder, regardless of the backend's wire shape, emits this.
type StreamChunk struct {
	// Content is the incremental visible text carried by this chunk, if any.
	Content string

	// Reasoning is incremental "thinking" text for backends that expose it
	// (e.g. GLM-4.6 reasoning, vLLM reasoning_content).
	Reasoning string

	// Done is true exactly on the chunk that ends the logical stream.
	Done bool

	// Usage is populated at most once per stream, on or after the
	// completing chunk, depending on where the backend places it.
	Usage *Usage
}

// Meaningful reports whether the chunk carries content or reasoning text.
// Structural chunks (usage-only, completion-only) are valid members of the
// sequence but must not reset inter-chunk timeouts.
func (c StreamChunk) Meaningful() bool {
	return c.Content != "" || c.Reasoning != ""
}

// ChunkStream is a pull-based, single-pass sequence of stream chunks.
// Next returns io.EOF once the stream is exhausted. A ChunkStream is not
// safe for concurrent advancement by multiple goroutines.
type ChunkStream interface {
	Next() (StreamChunk, error)
	Close() error
}
