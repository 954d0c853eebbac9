// Package metrics provides an optional instrumentation wrapper for chunk
// streams. It records time to first chunk, chunk counts, byte volumes, and
// final token usage without altering the wrapped sequence.
package metrics

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// StreamMetrics wraps a types.ChunkStream and tracks streaming statistics:
//   - TimeToFirstChunk: time from the first Next() to the first meaningful chunk
//   - ChunksReceived / MeaningfulChunks: sequence composition
//   - ContentBytes / ReasoningBytes: decoded output volume
//   - Usage: the final token accounting, when the backend reported one
//   - Duration: total time from first Next() to completion or Close
//
// Thread-safe counters, but the wrapped stream itself keeps its single
// consumer contract: only one goroutine may call Next.
type StreamMetrics struct {
	stream    types.ChunkStream
	sessionID string

	startTime      time.Time
	firstChunkTime time.Time
	endTime        time.Time
	started        atomic.Bool
	firstSeen      atomic.Bool

	chunksReceived   atomic.Int64
	meaningfulChunks atomic.Int64
	contentBytes     atomic.Int64
	reasoningBytes   atomic.Int64

	completed atomic.Bool
	closed    atomic.Bool

	mu    sync.Mutex
	usage *types.Usage
	err   error
}

// NewStreamMetrics wraps stream. An empty sessionID gets a generated UUID
// so log lines and stats from concurrent streams stay distinguishable.
func NewStreamMetrics(stream types.ChunkStream, sessionID string) *StreamMetrics {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &StreamMetrics{
		stream:    stream,
		sessionID: sessionID,
	}
}

// SessionID returns the identifier correlating this stream's statistics.
func (w *StreamMetrics) SessionID() string {
	return w.sessionID
}

// Next returns the next chunk from the wrapped stream, updating counters.
func (w *StreamMetrics) Next() (types.StreamChunk, error) {
	if w.started.CompareAndSwap(false, true) {
		w.mu.Lock()
		w.startTime = time.Now()
		w.mu.Unlock()
	}

	chunk, err := w.stream.Next()
	if err != nil {
		w.mu.Lock()
		if err != io.EOF {
			w.err = err
		}
		if w.endTime.IsZero() {
			w.endTime = time.Now()
		}
		w.mu.Unlock()
		return chunk, err
	}

	w.chunksReceived.Add(1)
	if chunk.Meaningful() {
		w.meaningfulChunks.Add(1)
		w.contentBytes.Add(int64(len(chunk.Content)))
		w.reasoningBytes.Add(int64(len(chunk.Reasoning)))
		if w.firstSeen.CompareAndSwap(false, true) {
			w.mu.Lock()
			w.firstChunkTime = time.Now()
			w.mu.Unlock()
		}
	}
	if chunk.Done {
		w.completed.Store(true)
	}
	if chunk.Usage != nil {
		w.mu.Lock()
		usage := *chunk.Usage
		w.usage = &usage
		w.mu.Unlock()
	}

	return chunk, nil
}

// Close closes the wrapped stream and freezes the duration clock.
func (w *StreamMetrics) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		w.mu.Lock()
		if w.endTime.IsZero() {
			w.endTime = time.Now()
		}
		w.mu.Unlock()
	}
	return w.stream.Close()
}

// StreamStats is an immutable snapshot of a stream's statistics.
type StreamStats struct {
	SessionID        string
	TimeToFirstChunk time.Duration
	ChunksReceived   int64
	MeaningfulChunks int64
	ContentBytes     int64
	ReasoningBytes   int64
	Completed        bool
	Usage            *types.Usage
	Duration         time.Duration
	Err              error
}

// Stats returns a snapshot of the statistics gathered so far. It may be
// called at any point, including after Close.
func (w *StreamMetrics) Stats() StreamStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := StreamStats{
		SessionID:        w.sessionID,
		ChunksReceived:   w.chunksReceived.Load(),
		MeaningfulChunks: w.meaningfulChunks.Load(),
		ContentBytes:     w.contentBytes.Load(),
		ReasoningBytes:   w.reasoningBytes.Load(),
		Completed:        w.completed.Load(),
		Err:              w.err,
	}
	if w.usage != nil {
		usage := *w.usage
		stats.Usage = &usage
	}
	if !w.firstChunkTime.IsZero() {
		stats.TimeToFirstChunk = w.firstChunkTime.Sub(w.startTime)
	}
	switch {
	case !w.endTime.IsZero():
		stats.Duration = w.endTime.Sub(w.startTime)
	case !w.startTime.IsZero():
		stats.Duration = time.Since(w.startTime)
	}
	return stats
}
