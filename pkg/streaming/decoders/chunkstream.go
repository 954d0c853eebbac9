package decoders

import (
	"context"
	"io"

	"github.com/cecil-the-coder/ai-stream-kit/pkg/streaming"
	"github.com/cecil-the-coder/ai-stream-kit/pkg/types"
)

// frameMapper converts one frame into at most one canonical chunk.
// emit=false means the frame was structural or malformed and is skipped.
// Mappers hold per-stream state (completion tracking) and are created
// fresh for every Decode call.
type frameMapper interface {
	mapFrame(frame streaming.Frame) (chunk types.StreamChunk, emit bool)
}

// chunkStream drives a FrameReader through a backend-specific frame
// mapper. All three decoders share this pipeline; they differ only in how
// a frame's JSON payload becomes a chunk.
type chunkStream struct {
	frames *streaming.FrameReader
	mapper frameMapper
	src    io.Reader
	done   bool
	err    error
}

func newChunkStream(ctx context.Context, r io.Reader, mapper frameMapper, opts decoderOptions) *chunkStream {
	var readerOpts []streaming.FrameReaderOption
	if opts.maxEventSize > 0 {
		readerOpts = append(readerOpts, streaming.WithMaxEventSize(opts.maxEventSize))
	}
	return &chunkStream{
		frames: streaming.NewFrameReader(ctx, r, readerOpts...),
		mapper: mapper,
		src:    r,
	}
}

// Next returns the next canonical chunk. Frames that do not produce a
// chunk are consumed silently; the loop always advances because the frame
// reader either yields a frame or ends the stream.
func (s *chunkStream) Next() (types.StreamChunk, error) {
	if s.done {
		if s.err != nil {
			return types.StreamChunk{}, s.err
		}
		return types.StreamChunk{}, io.EOF
	}
	for {
		frame, err := s.frames.Next()
		if err != nil {
			s.done = true
			if err != io.EOF {
				s.err = err
			}
			return types.StreamChunk{}, err
		}
		if chunk, emit := s.mapper.mapFrame(frame); emit {
			return chunk, nil
		}
	}
}

// Close stops the sequence and closes the byte source when it is closable.
func (s *chunkStream) Close() error {
	s.done = true
	if closer, ok := s.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
