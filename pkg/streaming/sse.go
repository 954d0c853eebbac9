package streaming

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// doneSentinel is the literal data value some backends send as the final
// frame of a stream (OpenAI-compatible and GLM-style APIs).
const doneSentinel = "[DONE]"

// Frame is one parsed event-stream record.
//
// SSE format specification (https://html.spec.whatwg.org/multipage/server-sent-events.html):
//   - Lines starting with ':' are comments (ignored)
//   - Empty lines dispatch the current frame
//   - Field format: "field: value" or "field:value"
//   - Multi-line data is concatenated with newlines
type Frame struct {
	// Event is the value of the frame's "event:" field, empty if absent.
	Event string

	// Data is the concatenation of all "data:" values in the frame,
	// joined with newlines in declaration order.
	Data string

	// ID is the last "id:" value seen in the frame.
	ID string

	// Retry is the "retry:" reconnection hint in milliseconds, 0 if absent.
	Retry int
}

// Done reports whether the frame is the [DONE] completion sentinel.
// The comparison is an exact match against the joined data value, so a
// frame whose data merely contains the sentinel somewhere is not done.
func (f Frame) Done() bool {
	return f.Data == doneSentinel
}

// FrameReader turns a readable byte stream into a lazy, forward-only
// sequence of frames. It makes no assumptions about how bytes arrive:
// field and frame boundaries are reassembled correctly even when the
// source delivers one byte at a time.
//
// A FrameReader holds per-stream accumulator state. Create a new instance
// for each independent stream.
type FrameReader struct {
	reader       *bufio.Reader
	maxEventSize int

	eventType string
	dataLines []string
	dataBytes int
	eventID   string
	retryMS   int
	sawField  bool
}

// FrameReaderOption configures a FrameReader.
type FrameReaderOption func(*FrameReader)

// WithMaxEventSize limits the accumulated "data" bytes of a single frame.
// When a frame's data exceeds n bytes before the frame terminates, Next
// fails with a *types.EventTooLargeError instead of buffering further.
// The limit is also charged while a field line is still being read, so an
// oversized or unterminated line fails once it crosses the limit rather
// than buffering without bound. Zero (the default) means unlimited.
func WithMaxEventSize(n int) FrameReaderOption {
	return func(fr *FrameReader) {
		fr.maxEventSize = n
	}
}

// NewFrameReader creates a frame reader over r. Reads observe ctx: once the
// context is cancelled, the next read returns the context's error instead
// of blocking on the source.
func NewFrameReader(ctx context.Context, r io.Reader, opts ...FrameReaderOption) *FrameReader {
	fr := &FrameReader{
		reader:    bufio.NewReader(&contextReader{ctx: ctx, r: r}),
		dataLines: make([]string, 0, 4),
	}
	for _, opt := range opts {
		opt(fr)
	}
	return fr
}

// Next reads and returns the next frame from the stream. It returns io.EOF
// when the source is exhausted. If the source ends while a frame has
// accumulated fields, that frame is emitted first: end-of-stream acts as an
// implicit frame terminator.
func (fr *FrameReader) Next() (Frame, error) {
	for {
		line, err := fr.readLine()

		if err == io.EOF {
			// The source ended with a partial line; process it before
			// deciding whether a final frame is pending.
			line = strings.TrimRight(line, "\r\n")
			if line != "" && !strings.HasPrefix(line, ":") {
				if ferr := fr.parseField(line); ferr != nil {
					return Frame{}, ferr
				}
			}
			if fr.sawField {
				frame := fr.buildFrame()
				fr.reset()
				return frame, nil
			}
			return Frame{}, io.EOF
		}
		if err != nil {
			if types.IsEventTooLarge(err) {
				return Frame{}, err
			}
			return Frame{}, fmt.Errorf("error reading stream: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line = dispatch the accumulated frame.
		if line == "" {
			if fr.sawField {
				frame := fr.buildFrame()
				fr.reset()
				return frame, nil
			}
			// Blank lines between frames carry nothing.
			continue
		}

		// Comment/heartbeat line. Never starts a frame, never resets fields.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if ferr := fr.parseField(line); ferr != nil {
			return Frame{}, ferr
		}
	}
}

// readLine reads one line including its terminator, like
// bufio.ReadString('\n'). With a size limit configured, the line is read
// in buffer-sized pieces and each piece is charged against the limit
// before more bytes are requested, so a line that never terminates cannot
// accumulate past the limit or block Next indefinitely.
func (fr *FrameReader) readLine() (string, error) {
	if fr.maxEventSize <= 0 {
		return fr.reader.ReadString('\n')
	}
	var buf []byte
	for {
		chunk, err := fr.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		if err != bufio.ErrBufferFull {
			return string(buf), err
		}
		if lerr := fr.checkPartialLine(buf); lerr != nil {
			return "", lerr
		}
	}
}

// checkPartialLine charges an incomplete line's value bytes against the
// event size limit. The value is everything after the first colon, or the
// whole line when no colon has arrived yet.
func (fr *FrameReader) checkPartialLine(line []byte) error {
	value := line
	if idx := bytes.IndexByte(line, ':'); idx >= 0 {
		value = line[idx+1:]
	}
	total := fr.dataBytes + len(value)
	if len(fr.dataLines) > 0 {
		total++ // joining newline
	}
	if total > fr.maxEventSize {
		return &types.EventTooLargeError{MaxBytes: fr.maxEventSize, ActualBytes: total}
	}
	return nil
}

// parseField accumulates a single field line into the in-progress frame.
// A line with no colon is a field name with an empty-string value.
func (fr *FrameReader) parseField(line string) error {
	fr.sawField = true

	name := line
	value := ""
	if idx := strings.Index(line, ":"); idx >= 0 {
		name = line[:idx]
		value = line[idx+1:]
		// At most one leading space is stripped from the value.
		if strings.HasPrefix(value, " ") {
			value = value[1:]
		}
	}

	switch name {
	case "data":
		if len(fr.dataLines) > 0 {
			fr.dataBytes++ // joining newline
		}
		fr.dataBytes += len(value)
		fr.dataLines = append(fr.dataLines, value)
		if fr.maxEventSize > 0 && fr.dataBytes > fr.maxEventSize {
			return &types.EventTooLargeError{MaxBytes: fr.maxEventSize, ActualBytes: fr.dataBytes}
		}

	case "event":
		fr.eventType = value

	case "id":
		// ID must not contain null characters per spec.
		if !strings.Contains(value, "\x00") {
			fr.eventID = value
		}

	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			fr.retryMS = ms
		}

	default:
		// Unknown field names contribute nothing, but they do mean the
		// frame is non-empty for end-of-stream dispatch purposes.
	}

	return nil
}

// buildFrame assembles a Frame from the accumulated fields.
func (fr *FrameReader) buildFrame() Frame {
	return Frame{
		Event: fr.eventType,
		Data:  strings.Join(fr.dataLines, "\n"),
		ID:    fr.eventID,
		Retry: fr.retryMS,
	}
}

// reset clears the accumulator for the next frame.
func (fr *FrameReader) reset() {
	fr.eventType = ""
	fr.dataLines = fr.dataLines[:0]
	fr.dataBytes = 0
	fr.eventID = ""
	fr.retryMS = 0
	fr.sawField = false
}

// contextReader makes a plain io.Reader cancellation-aware: each Read
// checks the context first, so a cancelled decode stops producing frames
// at the next read boundary instead of blocking indefinitely.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
