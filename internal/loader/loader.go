// Package loader adapts model byte sources to the pull interface the
// transcription engine initializes from.
//
// The engine drives loading: it calls Read repeatedly until it has the bytes
// it needs or EOF reports true. Loaders never push, buffer ahead on their own,
// or retry; a short read simply means the engine will ask again.
package loader

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Loader is the pull interface the engine reads model data through.
//
// Read fills p with up to len(p) bytes and reports how many were copied. A
// short read is not an error.
//
// EOF must be side-effect free. It never consumes bytes, and repeated calls
// return the same answer until a Read advances the source.
//
// Close is fail-safe: callable in any state, idempotent, and required even
// when initialization fails partway through.
type Loader interface {
	io.ReadCloser
	EOF() bool
}

// Stream is a caller-owned byte source with its own notion of immediate
// availability, such as a socket or pipe wrapper. The owner keeps the handle
// and may reuse it after the loader is done.
type Stream interface {
	io.Reader
	// Available reports how many bytes can be read right now without blocking.
	Available() int
}

// FromStream wraps a caller-owned stream in a Loader.
//
// Reads are clamped to what the stream reports available, so the loader never
// asks for more than the source can deliver without blocking; the engine sees
// a partial read and pulls again. Closing the returned loader does not close
// the stream.
func FromStream(src Stream) Loader {
	return &streamLoader{src: src}
}

type streamLoader struct {
	src    Stream
	offset int64
}

func (l *streamLoader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	requested := len(p)
	avail := l.src.Available()
	if avail <= 0 {
		return 0, io.EOF
	}
	if requested > avail {
		p = p[:avail]
	}
	n, err := l.src.Read(p)
	l.offset += int64(n)
	if n < requested {
		log.Debug().
			Int("requested", requested).
			Int("clamped", len(p)).
			Int("read", n).
			Int64("offset", l.offset).
			Msg("loader: partial stream read")
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("loader: stream read: %w", err)
	}
	return n, nil
}

// EOF mirrors the stream's availability: the source is done when it has
// nothing left to hand over.
func (l *streamLoader) EOF() bool {
	return l.src.Available() <= 0
}

// Close is a no-op. The stream belongs to the caller.
func (l *streamLoader) Close() error {
	log.Debug().Int64("offset", l.offset).Msg("loader: stream loader closed, source left open")
	return nil
}

// NewBufferedStream adapts a plain reader into a Stream. Availability comes
// from a buffered look-ahead: before answering, at least one byte is pulled
// into the buffer, so a source that still has data never reports zero.
func NewBufferedStream(r io.Reader) Stream {
	return &bufferedStream{br: bufio.NewReader(r)}
}

type bufferedStream struct {
	br *bufio.Reader
}

func (s *bufferedStream) Available() int {
	if n := s.br.Buffered(); n > 0 {
		return n
	}
	if _, err := s.br.Peek(1); err != nil {
		return 0
	}
	return s.br.Buffered()
}

func (s *bufferedStream) Read(p []byte) (int, error) {
	return s.br.Read(p)
}
