// Package whisper wraps whisper.cpp transcription behind a handle-based API.
//
// Two implementations exist behind build tags: a cgo build against the native
// library (tag whisper_cpp) and a pure-Go stand-in used everywhere else. Both
// honor the same lifecycle: a handle is created from one model origin, runs
// any number of blocking transcription passes, and is freed once.
package whisper

import (
	"errors"
	"io/fs"
	"time"

	"github.com/obiente/whisperbridge/internal/loader"
)

// SampleRate is the only input rate the engine accepts: 16 kHz mono float32.
const SampleRate = 16000

var (
	// ErrEngineClosed is returned by operations on a freed handle.
	ErrEngineClosed = errors.New("whisper: engine closed")

	// ErrStalledSource is returned when a model source stays open but stops
	// producing bytes during initialization.
	ErrStalledSource = errors.New("whisper: model source stalled")
)

// Segment is one span of transcribed audio. Start and End are centisecond
// ticks from the beginning of the buffer; one tick is 10 ms.
type Segment struct {
	Text  string
	Start int64
	End   int64
}

// StartTime returns the segment start as a duration.
func (s Segment) StartTime() time.Duration { return time.Duration(s.Start) * 10 * time.Millisecond }

// EndTime returns the segment end as a duration.
func (s Segment) EndTime() time.Duration { return time.Duration(s.End) * 10 * time.Millisecond }

// StartSeconds returns the segment start in seconds, for wire formats.
func (s Segment) StartSeconds() float64 { return float64(s.Start) / 100 }

// EndSeconds returns the segment end in seconds, for wire formats.
func (s Segment) EndSeconds() float64 { return float64(s.End) / 100 }

// Engine is a transcription handle over one loaded model.
//
// A handle is not safe for concurrent use. It has exactly one owner, and
// Transcribe blocks that owner until the pass completes; callers that share a
// handle must serialize access themselves. Results live inside the handle and
// are replaced wholesale by the next successful Transcribe.
type Engine interface {
	// Transcribe runs one blocking pass over 16 kHz mono samples. Failure is
	// recoverable: the handle stays usable and the result set is whatever the
	// failed pass left behind, possibly empty.
	Transcribe(threads int, samples []float32) error

	// SegmentCount reports how many segments the latest pass produced.
	SegmentCount() int

	// Segment returns the i-th segment of the latest pass.
	Segment(i int) (Segment, error)

	// Close frees the model and native state. Safe to call more than once;
	// operations after Close return ErrEngineClosed.
	Close() error
}

// NewEngine opens a model file directly. The file origin is a pass-through:
// the engine reads the path itself with no loader in between.
func NewEngine(modelPath string) (Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path required")
	}
	return newFileEngine(modelPath)
}

// NewEngineFromAsset loads a model from a read-only bundle through the pull
// loader. Names ending in .zst are decompressed on the fly. The loader is
// closed exactly once, whether or not initialization succeeds.
func NewEngineFromAsset(fsys fs.FS, name string) (Engine, error) {
	ld, err := loader.FromAsset(fsys, name)
	if err != nil {
		return nil, err
	}
	return newLoaderEngine(ld, "asset:"+name)
}

// NewEngineFromStream loads a model from a caller-owned stream. The stream is
// pulled to exhaustion during initialization, with every read clamped to what
// the stream reports available, and is left open for its owner afterwards.
func NewEngineFromStream(src loader.Stream) (Engine, error) {
	if src == nil {
		return nil, errors.New("whisper: nil stream")
	}
	return newLoaderEngine(loader.FromStream(src), "stream")
}

// Segments collects every segment of the latest pass in order.
func Segments(e Engine) []Segment {
	n := e.SegmentCount()
	if n == 0 {
		return nil
	}
	out := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		seg, err := e.Segment(i)
		if err != nil {
			break
		}
		out = append(out, seg)
	}
	return out
}
