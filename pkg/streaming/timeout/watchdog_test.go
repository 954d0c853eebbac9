package timeout

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming/decoders"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// scriptStep is one scripted Next() result, delivered after delay.
type scriptStep struct {
	delay time.Duration
	chunk types.StreamChunk
	err   error
}

// scriptedStream plays back a fixed sequence of chunks with delays, then
// blocks until cancelled. It stands in for a decoder-driven stream.
type scriptedStream struct {
	steps    []scriptStep
	idx      int
	unblock  chan struct{}
	once     sync.Once
	closed   bool
	closedMu sync.Mutex
}

func newScriptedStream(steps ...scriptStep) *scriptedStream {
	return &scriptedStream{steps: steps, unblock: make(chan struct{})}
}

// cancelFunc returns the CancelFunc a transport layer would provide: it
// unblocks any in-flight read.
func (s *scriptedStream) cancelFunc() context.CancelFunc {
	return func() {
		s.once.Do(func() { close(s.unblock) })
	}
}

func (s *scriptedStream) Next() (types.StreamChunk, error) {
	if s.idx >= len(s.steps) {
		<-s.unblock
		return types.StreamChunk{}, context.Canceled
	}
	step := s.steps[s.idx]
	s.idx++
	if step.delay > 0 {
		select {
		case <-time.After(step.delay):
		case <-s.unblock:
			return types.StreamChunk{}, context.Canceled
		}
	}
	return step.chunk, step.err
}

func (s *scriptedStream) Close() error {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedStream) wasClosed() bool {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	return s.closed
}

func testPolicy(first, inter, total time.Duration) Policy {
	return Policy{FirstChunk: first, InterChunk: inter, TotalStream: total}
}

func TestGuard_InvalidPolicyRejected(t *testing.T) {
	inner := newScriptedStream()
	_, err := Guard(Policy{}, inner, nil)

	var invalid *InvalidPolicyError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "first_chunk", invalid.Field)
}

func TestGuard_FirstChunkTimeout(t *testing.T) {
	inner := newScriptedStream() // produces nothing, blocks
	guarded, err := Guard(testPolicy(40*time.Millisecond, time.Second, time.Minute), inner, inner.cancelFunc())
	require.NoError(t, err)
	defer guarded.Close()

	_, err = guarded.Next()
	phase, ok := types.IsStreamTimeout(err)
	require.True(t, ok, "expected timeout error, got %v", err)
	assert.Equal(t, types.TimeoutPhaseFirstChunk, phase)

	// The failure is terminal.
	_, err = guarded.Next()
	_, ok = types.IsStreamTimeout(err)
	assert.True(t, ok)
}

func TestGuard_InterChunkTimeout(t *testing.T) {
	inner := newScriptedStream(
		scriptStep{chunk: types.StreamChunk{Content: "first"}},
	)
	guarded, err := Guard(testPolicy(time.Second, 50*time.Millisecond, time.Minute), inner, inner.cancelFunc())
	require.NoError(t, err)
	defer guarded.Close()

	chunk, err := guarded.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", chunk.Content)

	_, err = guarded.Next()
	phase, ok := types.IsStreamTimeout(err)
	require.True(t, ok, "expected timeout error, got %v", err)
	assert.Equal(t, types.TimeoutPhaseInterChunk, phase)
}

func TestGuard_StructuralChunkDoesNotResetInterChunk(t *testing.T) {
	// A usage-only chunk arrives well inside the window, but since it is
	// not meaningful the window keeps running from the first chunk.
	usage := &types.Usage{TotalTokens: 7}
	inner := newScriptedStream(
		scriptStep{chunk: types.StreamChunk{Content: "first"}},
		scriptStep{delay: 60 * time.Millisecond, chunk: types.StreamChunk{Usage: usage}},
	)
	guarded, err := Guard(testPolicy(time.Second, 100*time.Millisecond, time.Minute), inner, inner.cancelFunc())
	require.NoError(t, err)
	defer guarded.Close()

	_, err = guarded.Next()
	require.NoError(t, err)
	start := time.Now()

	chunk, err := guarded.Next()
	require.NoError(t, err)
	require.NotNil(t, chunk.Usage)

	_, err = guarded.Next()
	elapsed := time.Since(start)
	phase, ok := types.IsStreamTimeout(err)
	require.True(t, ok, "expected timeout error, got %v", err)
	assert.Equal(t, types.TimeoutPhaseInterChunk, phase)
	// Fired ~100ms after the meaningful chunk, not 100ms after the usage chunk.
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestGuard_MeaningfulChunkResetsInterChunk(t *testing.T) {
	inner := newScriptedStream(
		scriptStep{chunk: types.StreamChunk{Content: "a"}},
		scriptStep{delay: 60 * time.Millisecond, chunk: types.StreamChunk{Content: "b"}},
	)
	guarded, err := Guard(testPolicy(time.Second, 100*time.Millisecond, time.Minute), inner, inner.cancelFunc())
	require.NoError(t, err)
	defer guarded.Close()

	_, err = guarded.Next()
	require.NoError(t, err)
	start := time.Now()

	chunk, err := guarded.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", chunk.Content)

	_, err = guarded.Next()
	elapsed := time.Since(start)
	_, ok := types.IsStreamTimeout(err)
	require.True(t, ok, "expected timeout error, got %v", err)
	// The content chunk at 60ms re-opened the window: expiry lands near
	// 160ms from the first chunk, not near 100ms.
	assert.Greater(t, elapsed, 130*time.Millisecond)
}

func TestGuard_TotalStreamTimeout(t *testing.T) {
	// A stream that chats forever still hits the total deadline.
	steps := make([]scriptStep, 50)
	for i := range steps {
		steps[i] = scriptStep{delay: 20 * time.Millisecond, chunk: types.StreamChunk{Content: "tick"}}
	}
	inner := newScriptedStream(steps...)
	guarded, err := Guard(testPolicy(time.Second, time.Second, 120*time.Millisecond), inner, inner.cancelFunc())
	require.NoError(t, err)
	defer guarded.Close()

	for {
		_, err := guarded.Next()
		if err == nil {
			continue
		}
		phase, ok := types.IsStreamTimeout(err)
		require.True(t, ok, "expected timeout error, got %v", err)
		assert.Equal(t, types.TimeoutPhaseTotal, phase)
		return
	}
}

func TestGuard_CompletionPassesThrough(t *testing.T) {
	inner := newScriptedStream(
		scriptStep{chunk: types.StreamChunk{Content: "hello"}},
		scriptStep{chunk: types.StreamChunk{Done: true}},
		scriptStep{err: io.EOF},
	)
	guarded, err := Guard(Default(), inner, inner.cancelFunc())
	require.NoError(t, err)
	defer guarded.Close()

	chunk, err := guarded.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello", chunk.Content)

	chunk, err = guarded.Next()
	require.NoError(t, err)
	assert.True(t, chunk.Done)

	_, err = guarded.Next()
	assert.Equal(t, io.EOF, err)
}

func TestGuard_TimeoutCancelsUnderlyingRead(t *testing.T) {
	inner := newScriptedStream()
	cancelled := make(chan struct{})
	var once sync.Once
	cancel := func() {
		inner.cancelFunc()()
		once.Do(func() { close(cancelled) })
	}

	guarded, err := Guard(testPolicy(30*time.Millisecond, time.Second, time.Minute), inner, cancel)
	require.NoError(t, err)
	defer guarded.Close()

	_, err = guarded.Next()
	_, ok := types.IsStreamTimeout(err)
	require.True(t, ok)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timeout did not invoke the cancel function")
	}
}

func TestGuard_CloseClosesInner(t *testing.T) {
	inner := newScriptedStream(scriptStep{chunk: types.StreamChunk{Content: "x"}})
	guarded, err := Guard(Default(), inner, inner.cancelFunc())
	require.NoError(t, err)

	_, err = guarded.Next()
	require.NoError(t, err)

	require.NoError(t, guarded.Close())
	assert.True(t, inner.wasClosed())

	// Closing twice is fine; Next after Close reports EOF.
	require.NoError(t, guarded.Close())
	_, err = guarded.Next()
	assert.Equal(t, io.EOF, err)
}

// TestGuard_WithDecoder exercises the watchdog around a real decoder fed
// through a pipe, the way an orchestrating caller wires the pieces.
func TestGuard_WithDecoder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	defer pw.Close()

	decoder := decoders.NewOpenAIDecoder()
	stream := decoder.Decode(ctx, pr)

	guarded, err := Guard(testPolicy(500*time.Millisecond, 80*time.Millisecond, time.Minute), stream, cancel)
	require.NoError(t, err)
	defer guarded.Close()

	go func() {
		pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n"))
		// Then go silent: the inter-chunk window expires.
	}()

	chunk, err := guarded.Next()
	require.NoError(t, err)
	assert.Equal(t, "Hi", chunk.Content)

	_, err = guarded.Next()
	phase, ok := types.IsStreamTimeout(err)
	require.True(t, ok, "expected timeout error, got %v", err)
	assert.Equal(t, types.TimeoutPhaseInterChunk, phase)
	assert.Error(t, ctx.Err(), "watchdog should have cancelled the decode context")
}
