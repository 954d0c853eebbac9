// Package diagnostics provides rate-limited diagnostic reporting for the
// decode pipeline. Decoders log frames they do not recognize through an
// EventSuppressor so a malformed or chatty stream cannot flood logs.
package diagnostics

import (
	"log"
	"sort"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultMaxKeys is the number of distinct event keys logged before
// suppression kicks in.
const DefaultMaxKeys = 3

// SinkFunc receives a diagnostic event key and a human-readable message.
type SinkFunc func(key, message string)

// LoggerSink adapts a stdlib *log.Logger into a SinkFunc.
func LoggerSink(logger *log.Logger) SinkFunc {
	return func(key, message string) {
		logger.Printf("[%s] %s", key, message)
	}
}

// RateLimitedSink wraps sink with a token-bucket limiter. Events that
// arrive faster than the limit allows are dropped. This guards the sink
// itself when a suppressor is shared across many simultaneous decodes.
func RateLimitedSink(sink SinkFunc, limit rate.Limit, burst int) SinkFunc {
	limiter := rate.NewLimiter(limit, burst)
	return func(key, message string) {
		if limiter.Allow() {
			sink(key, message)
		}
	}
}

// EventSuppressor deduplicates and caps diagnostic emissions. The first
// MaxKeys distinct keys are forwarded to the sink; every other occurrence
// is counted but not logged. Safe for concurrent use.
type EventSuppressor struct {
	mu         sync.Mutex
	maxKeys    int
	seen       map[string]struct{}
	suppressed int64
	sink       SinkFunc
}

// NewEventSuppressor creates a suppressor forwarding to sink. A nil sink is
// permitted: admitted events are then counted as logged without output.
// maxKeys <= 0 selects DefaultMaxKeys.
func NewEventSuppressor(maxKeys int, sink SinkFunc) *EventSuppressor {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &EventSuppressor{
		maxKeys: maxKeys,
		seen:    make(map[string]struct{}),
		sink:    sink,
	}
}

// Log reports one occurrence of key. The first occurrence of each of the
// first maxKeys distinct keys invokes the sink and returns true. Every
// other occurrence, including repeats of already-logged keys, increments
// the suppressed counter and returns false.
func (s *EventSuppressor) Log(key, message string) bool {
	s.mu.Lock()
	if _, ok := s.seen[key]; !ok && len(s.seen) < s.maxKeys {
		s.seen[key] = struct{}{}
		sink := s.sink
		s.mu.Unlock()
		if sink != nil {
			sink(key, message)
		}
		return true
	}
	s.suppressed++
	s.mu.Unlock()
	return false
}

// Suppressed returns the running count of occurrences that were counted
// but not logged.
func (s *EventSuppressor) Suppressed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// LoggedKeys returns the distinct keys that were admitted to the sink,
// sorted for stable diagnostic reporting.
func (s *EventSuppressor) LoggedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.seen))
	for key := range s.seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
