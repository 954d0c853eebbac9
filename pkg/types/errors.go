package types

import (
	"errors"
	"fmt"
	"time"
)

// EventTooLargeError is returned when the accumulated data of a single
// in-progress frame exceeds the configured maximum event size. It is never
// recovered from locally: continued decoding would be meaningless.
type EventTooLargeError struct {
	MaxBytes    int // configured limit
	ActualBytes int // bytes observed when the limit was crossed
}

// Error implements the error interface.
func (e *EventTooLargeError) Error() string {
	return fmt.Sprintf("stream event exceeds maximum size: %d bytes accumulated, limit is %d", e.ActualBytes, e.MaxBytes)
}

// IsEventTooLarge reports whether err is (or wraps) an EventTooLargeError.
func IsEventTooLarge(err error) bool {
	var tooLarge *EventTooLargeError
	return errors.As(err, &tooLarge)
}

// TimeoutPhase identifies which stream deadline expired.
type TimeoutPhase string

const (
	// TimeoutPhaseFirstChunk means no meaningful chunk arrived within the
	// first-chunk window after decode start.
	TimeoutPhaseFirstChunk TimeoutPhase = "first_chunk"

	// TimeoutPhaseInterChunk means the gap between meaningful chunks
	// exceeded the inter-chunk window.
	TimeoutPhaseInterChunk TimeoutPhase = "inter_chunk"

	// TimeoutPhaseTotal means the stream as a whole outlived the total
	// stream window.
	TimeoutPhaseTotal TimeoutPhase = "total_stream"
)

// StreamTimeoutError is surfaced by the timeout watchdog when a stream
// deadline expires. It identifies the phase so callers can distinguish
// "backend never started" from "backend went quiet" from "stream ran long".
type StreamTimeoutError struct {
	Phase TimeoutPhase  // which deadline expired
	Limit time.Duration // the configured window that was exceeded
}

// Error implements the error interface.
func (e *StreamTimeoutError) Error() string {
	return fmt.Sprintf("stream timed out: %s deadline exceeded (limit=%s)", e.Phase, e.Limit)
}

// IsStreamTimeout reports whether err is (or wraps) a StreamTimeoutError,
// returning the phase when it is.
func IsStreamTimeout(err error) (TimeoutPhase, bool) {
	var timeout *StreamTimeoutError
	if errors.As(err, &timeout) {
		return timeout.Phase, true
	}
	return "", false
}

// DuplicateBackendError is a registry configuration error: two decoders
// claimed the same backend identifier, which would make routing ambiguous.
// It is raised at registration time, never during decode.
type DuplicateBackendError struct {
	Backend  string // the contested backend id
	Existing string // decoder id that already owns the backend
	Claimant string // decoder id attempting to claim it
}

// Error implements the error interface.
func (e *DuplicateBackendError) Error() string {
	return fmt.Sprintf("backend %q claimed by both decoder %q and decoder %q", e.Backend, e.Existing, e.Claimant)
}
