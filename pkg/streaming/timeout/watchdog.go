package timeout

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// Guard wraps stream so that Next enforces the policy's three deadlines.
// cancel is invoked when any deadline expires, which unblocks the read the
// underlying stream is suspended on; pass the CancelFunc governing the
// context the stream was decoded with.
//
// The guarded stream keeps the pull contract: a single goroutine pumps the
// inner stream so deadlines can fire even while a read is in flight, but
// chunks are only produced when the caller asks for them.
func Guard(policy Policy, stream types.ChunkStream, cancel context.CancelFunc) (types.ChunkStream, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if cancel == nil {
		cancel = func() {}
	}
	return &guardedStream{
		policy: policy,
		inner:  stream,
		cancel: cancel,
		quit:   make(chan struct{}),
	}, nil
}

type chunkResult struct {
	chunk types.StreamChunk
	err   error
}

type guardedStream struct {
	policy Policy
	inner  types.ChunkStream
	cancel context.CancelFunc

	results chan chunkResult
	quit    chan struct{}

	started    bool
	sawFirst   bool
	phaseTimer *time.Timer
	totalTimer *time.Timer
	terminal   error
	stopOnce   sync.Once
	closeOnce  sync.Once
	closeErr   error
}

// Next returns the next chunk or a *types.StreamTimeoutError identifying
// which phase expired. After a timeout the underlying stream is cancelled
// and the sequence produces no further chunks.
func (g *guardedStream) Next() (types.StreamChunk, error) {
	if g.terminal != nil {
		return types.StreamChunk{}, g.terminal
	}
	if !g.started {
		g.started = true
		g.results = make(chan chunkResult)
		g.phaseTimer = time.NewTimer(g.policy.FirstChunk)
		g.totalTimer = time.NewTimer(g.policy.TotalStream)
		go g.pump()
	}

	select {
	case res := <-g.results:
		if res.err != nil {
			g.terminal = res.err
			g.stopTimers()
			return types.StreamChunk{}, res.err
		}
		if res.chunk.Meaningful() {
			// Meaningful chunks open (or re-open) the inter-chunk window.
			g.sawFirst = true
			resetTimer(g.phaseTimer, g.policy.InterChunk)
		}
		return res.chunk, nil

	case <-g.phaseTimer.C:
		phase := types.TimeoutPhaseFirstChunk
		limit := g.policy.FirstChunk
		if g.sawFirst {
			phase = types.TimeoutPhaseInterChunk
			limit = g.policy.InterChunk
		}
		return types.StreamChunk{}, g.expire(phase, limit)

	case <-g.totalTimer.C:
		return types.StreamChunk{}, g.expire(types.TimeoutPhaseTotal, g.policy.TotalStream)
	}
}

// Close cancels the underlying stream and releases the pump goroutine.
// Closing is idempotent.
func (g *guardedStream) Close() error {
	g.closeOnce.Do(func() {
		if g.terminal == nil {
			g.terminal = io.EOF
		}
		g.shutdown()
		g.closeErr = g.inner.Close()
	})
	return g.closeErr
}

func (g *guardedStream) expire(phase types.TimeoutPhase, limit time.Duration) error {
	err := &types.StreamTimeoutError{Phase: phase, Limit: limit}
	g.terminal = err
	g.shutdown()
	return err
}

// shutdown stops the timers, cancels the byte source, and releases the
// pump goroutine. Idempotent: both expiry and Close funnel through it.
func (g *guardedStream) shutdown() {
	g.stopOnce.Do(func() {
		g.stopTimers()
		g.cancel()
		close(g.quit)
	})
}

func (g *guardedStream) stopTimers() {
	if g.phaseTimer != nil {
		g.phaseTimer.Stop()
	}
	if g.totalTimer != nil {
		g.totalTimer.Stop()
	}
}

// pump advances the inner stream and hands results to Next. It exits when
// the inner stream errors (including io.EOF and cancellation) or when the
// guarded stream is abandoned.
func (g *guardedStream) pump() {
	for {
		chunk, err := g.inner.Next()
		select {
		case g.results <- chunkResult{chunk: chunk, err: err}:
			if err != nil {
				return
			}
		case <-g.quit:
			return
		}
	}
}

// resetTimer restarts t for d, draining a pending fire first. Safe only
// from the goroutine that also receives from t.C, which Next is.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
