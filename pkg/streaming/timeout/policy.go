// Package timeout defines the stream timeout policy and the watchdog that
// enforces it around a chunk stream. The policy distinguishes three
// silence windows: before the first meaningful chunk, between meaningful
// chunks, and over the whole stream.
package timeout

import (
	"fmt"
	"time"
)

// Policy is an immutable set of stream deadlines. Construct it through
// New, a preset, or a copy-with-override method; each path validates that
// all three durations are positive.
type Policy struct {
	// FirstChunk bounds the wait for the first meaningful chunk.
	FirstChunk time.Duration

	// InterChunk bounds the gap between consecutive meaningful chunks.
	// Structural chunks (usage-only, completion-only) do not reset it.
	InterChunk time.Duration

	// TotalStream bounds the stream end to end and is never reset.
	TotalStream time.Duration
}

// InvalidPolicyError names the policy field that failed validation.
type InvalidPolicyError struct {
	Field string
	Value time.Duration
}

// Error implements the error interface.
func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("timeout policy: %s must be positive, got %s", e.Field, e.Value)
}

// New constructs a validated policy.
func New(firstChunk, interChunk, totalStream time.Duration) (Policy, error) {
	p := Policy{FirstChunk: firstChunk, InterChunk: interChunk, TotalStream: totalStream}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that every duration is positive, naming the offending
// field on failure.
func (p Policy) Validate() error {
	if p.FirstChunk <= 0 {
		return &InvalidPolicyError{Field: "first_chunk", Value: p.FirstChunk}
	}
	if p.InterChunk <= 0 {
		return &InvalidPolicyError{Field: "inter_chunk", Value: p.InterChunk}
	}
	if p.TotalStream <= 0 {
		return &InvalidPolicyError{Field: "total_stream", Value: p.TotalStream}
	}
	return nil
}

// Default is the baseline policy for remote backends.
func Default() Policy {
	return Policy{
		FirstChunk:  30 * time.Second,
		InterChunk:  15 * time.Second,
		TotalStream: 5 * time.Minute,
	}
}

// LocalProvider is tuned for backends on the same host. A local backend
// producing nothing for 10 seconds is unusually suspicious.
func LocalProvider() Policy {
	return Policy{
		FirstChunk:  10 * time.Second,
		InterChunk:  5 * time.Second,
		TotalStream: 3 * time.Minute,
	}
}

// CloudProvider tolerates network and queueing latency of hosted APIs.
func CloudProvider() Policy {
	return Policy{
		FirstChunk:  60 * time.Second,
		InterChunk:  30 * time.Second,
		TotalStream: 10 * time.Minute,
	}
}

// ColdStart covers backends with known cold-start latency profiles, where
// the first token can lag well behind connection establishment.
func ColdStart() Policy {
	return Policy{
		FirstChunk:  45 * time.Second,
		InterChunk:  20 * time.Second,
		TotalStream: 5 * time.Minute,
	}
}

// Preset returns the named built-in policy.
func Preset(name string) (Policy, bool) {
	switch name {
	case "default":
		return Default(), true
	case "local_provider":
		return LocalProvider(), true
	case "cloud_provider":
		return CloudProvider(), true
	case "cold_start":
		return ColdStart(), true
	}
	return Policy{}, false
}

// WithFirstChunk returns a copy with the first-chunk window replaced.
// The copy is re-validated.
func (p Policy) WithFirstChunk(d time.Duration) (Policy, error) {
	p.FirstChunk = d
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// WithInterChunk returns a copy with the inter-chunk window replaced.
func (p Policy) WithInterChunk(d time.Duration) (Policy, error) {
	p.InterChunk = d
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// WithTotalStream returns a copy with the total-stream window replaced.
func (p Policy) WithTotalStream(d time.Duration) (Policy, error) {
	p.TotalStream = d
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
