package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTooLargeError(t *testing.T) {
	err := &EventTooLargeError{MaxBytes: 100, ActualBytes: 1000}

	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "1000")

	assert.True(t, IsEventTooLarge(err))
	assert.True(t, IsEventTooLarge(fmt.Errorf("decode: %w", err)))
	assert.False(t, IsEventTooLarge(errors.New("other")))
	assert.False(t, IsEventTooLarge(nil))
}

func TestStreamTimeoutError(t *testing.T) {
	err := &StreamTimeoutError{Phase: TimeoutPhaseInterChunk, Limit: 15 * time.Second}

	assert.Contains(t, err.Error(), "inter_chunk")
	assert.Contains(t, err.Error(), "15s")

	phase, ok := IsStreamTimeout(fmt.Errorf("consume: %w", err))
	require.True(t, ok)
	assert.Equal(t, TimeoutPhaseInterChunk, phase)

	_, ok = IsStreamTimeout(errors.New("other"))
	assert.False(t, ok)
}

func TestDuplicateBackendError(t *testing.T) {
	err := &DuplicateBackendError{Backend: "openai", Existing: "openai-compatible", Claimant: "custom"}

	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "openai-compatible")
	assert.Contains(t, err.Error(), "custom")
}
