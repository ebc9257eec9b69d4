package whisper

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
)

// fakeModel builds a byte blob that passes the ggml magic check.
func fakeModel(size int) []byte {
	blob := make([]byte, size)
	copy(blob, []byte{0x6c, 0x6d, 0x67, 0x67}) // 0x67676d6c little-endian
	for i := 4; i < size; i++ {
		blob[i] = byte(i)
	}
	return blob
}

func writeTempModel(t *testing.T, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ggml-test.bin")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write model fixture: %v", err)
	}
	return path
}

func voiced(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		if i%2 == 0 {
			s[i] = 0.1
		} else {
			s[i] = -0.1
		}
	}
	return s
}

func TestNewEngineFromFile(t *testing.T) {
	path := writeTempModel(t, fakeModel(1024))
	eng, err := NewEngine(path)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()
	if eng.SegmentCount() != 0 {
		t.Errorf("fresh engine SegmentCount = %d, want 0", eng.SegmentCount())
	}
}

func TestNewEngineRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"empty path", func(t *testing.T) string { return "" }},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.bin") }},
		{"wrong magic", func(t *testing.T) string {
			return writeTempModel(t, []byte("GGUF but not really, and definitely not ggml"))
		}},
		{"truncated header", func(t *testing.T) string {
			return writeTempModel(t, []byte{0x6c, 0x6d})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng, err := NewEngine(tc.path(t))
			if err == nil {
				eng.Close()
				t.Fatal("NewEngine succeeded, want error")
			}
		})
	}
}

func TestNewEngineFromAsset(t *testing.T) {
	fsys := fstest.MapFS{
		"models/ggml-tiny.bin": &fstest.MapFile{Data: fakeModel(4096)},
	}
	eng, err := NewEngineFromAsset(fsys, "models/ggml-tiny.bin")
	if err != nil {
		t.Fatalf("NewEngineFromAsset: %v", err)
	}
	defer eng.Close()
}

func TestNewEngineFromAssetErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.bin": &fstest.MapFile{Data: []byte("not a model, just text")},
	}
	if _, err := NewEngineFromAsset(fsys, "missing.bin"); err == nil {
		t.Error("missing asset: want error")
	}
	if _, err := NewEngineFromAsset(fsys, "bad.bin"); err == nil {
		t.Error("corrupt asset: want error")
	}
}

// countingFS wraps a bundle so tests can count how often the opened file is
// closed.
type countingFS struct {
	inner  fs.FS
	closes *int
}

func (c countingFS) Open(name string) (fs.File, error) {
	f, err := c.inner.Open(name)
	if err != nil {
		return nil, err
	}
	return &countingFile{File: f, closes: c.closes}, nil
}

type countingFile struct {
	fs.File
	closes *int
}

func (f *countingFile) Close() error {
	*f.closes++
	return f.File.Close()
}

func TestAssetClosedExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"successful init", fakeModel(512), false},
		{"failed init still closes", []byte("garbage without the magic"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			closes := 0
			fsys := countingFS{
				inner:  fstest.MapFS{"m.bin": &fstest.MapFile{Data: tc.data}},
				closes: &closes,
			}
			eng, err := NewEngineFromAsset(fsys, "m.bin")
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if err == nil {
				eng.Close()
			}
			if closes != 1 {
				t.Errorf("asset file closed %d times, want exactly 1", closes)
			}
		})
	}
}

// trickleStream hands out at most window bytes per read, exercising the
// partial-read retry path of the pull loop.
type trickleStream struct {
	data   []byte
	pos    int
	window int
}

func (s *trickleStream) Available() int {
	remaining := len(s.data) - s.pos
	if remaining > s.window {
		return s.window
	}
	return remaining
}

func (s *trickleStream) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func TestNewEngineFromTrickleStream(t *testing.T) {
	src := &trickleStream{data: fakeModel(10_000), window: 7}
	eng, err := NewEngineFromStream(src)
	if err != nil {
		t.Fatalf("NewEngineFromStream: %v", err)
	}
	defer eng.Close()
	if src.pos != len(src.data) {
		t.Errorf("engine consumed %d of %d bytes", src.pos, len(src.data))
	}
}

// stalledStream claims availability but never produces bytes.
type stalledStream struct{ reads int }

func (s *stalledStream) Available() int { return 1024 }
func (s *stalledStream) Read(p []byte) (int, error) {
	s.reads++
	return 0, nil
}

func TestNewEngineFromStalledStream(t *testing.T) {
	src := &stalledStream{}
	_, err := NewEngineFromStream(src)
	if !errors.Is(err, ErrStalledSource) {
		t.Fatalf("err = %v, want ErrStalledSource", err)
	}
	if src.reads != maxStalledReads {
		t.Errorf("source polled %d times before giving up, want %d", src.reads, maxStalledReads)
	}
}

func TestNewEngineFromNilStream(t *testing.T) {
	if _, err := NewEngineFromStream(nil); err == nil {
		t.Fatal("nil stream: want error")
	}
}

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	eng, err := NewEngine(writeTempModel(t, fakeModel(2048)))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestTranscribeLifecycle(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.Transcribe(2, voiced(16000)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if eng.SegmentCount() < 1 {
		t.Fatalf("SegmentCount = %d, want >= 1", eng.SegmentCount())
	}
	for i := 0; i < eng.SegmentCount(); i++ {
		seg, err := eng.Segment(i)
		if err != nil {
			t.Fatalf("Segment(%d): %v", i, err)
		}
		if seg.Start > seg.End {
			t.Errorf("segment %d: Start %d > End %d", i, seg.Start, seg.End)
		}
		if seg.Text == "" {
			t.Errorf("segment %d: empty text", i)
		}
	}
}

func TestTranscribeReplacesResults(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.Transcribe(1, voiced(16000)); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	first, err := eng.Segment(0)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	if err := eng.Transcribe(1, voiced(8000)); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	second, err := eng.Segment(0)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if first.Text == second.Text {
		t.Errorf("second pass kept the old text %q", first.Text)
	}

	// A silent pass still replaces: the old results must not survive.
	if err := eng.Transcribe(1, constant(16000, 0)); err != nil {
		t.Fatalf("silent pass: %v", err)
	}
	if eng.SegmentCount() != 0 {
		t.Errorf("SegmentCount after silent pass = %d, want 0", eng.SegmentCount())
	}
}

func TestTranscribeEmptyBuffer(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.Transcribe(1, nil); err == nil {
		t.Fatal("Transcribe(nil) should fail")
	}
	// The handle must survive the failure.
	if err := eng.Transcribe(1, voiced(16000)); err != nil {
		t.Fatalf("Transcribe after failure: %v", err)
	}
}

func TestSegmentOutOfRange(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.Transcribe(1, voiced(16000)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	for _, i := range []int{-1, eng.SegmentCount(), 99} {
		if _, err := eng.Segment(i); err == nil {
			t.Errorf("Segment(%d) succeeded, want out-of-range error", i)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.Transcribe(1, voiced(16000)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := eng.Close(); err != nil {
			t.Fatalf("Close call %d: %v", i+1, err)
		}
	}
	if err := eng.Transcribe(1, voiced(16000)); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Transcribe after Close = %v, want ErrEngineClosed", err)
	}
	if eng.SegmentCount() != 0 {
		t.Errorf("SegmentCount after Close = %d, want 0", eng.SegmentCount())
	}
	if _, err := eng.Segment(0); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Segment after Close = %v, want ErrEngineClosed", err)
	}
}

func TestSegmentsHelper(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.Transcribe(1, voiced(32000)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	segs := Segments(eng)
	if len(segs) != eng.SegmentCount() {
		t.Fatalf("Segments returned %d entries, want %d", len(segs), eng.SegmentCount())
	}
	if !strings.Contains(segs[0].Text, "32000") {
		t.Errorf("segment text %q should mention the buffer size", segs[0].Text)
	}
	if segs[0].EndTime() < segs[0].StartTime() {
		t.Errorf("EndTime %v before StartTime %v", segs[0].EndTime(), segs[0].StartTime())
	}
}

func compressBlob(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return buf.Bytes()
}

func TestCompressedAssetEngine(t *testing.T) {
	// The compressed origin goes through the same pull loop; the inflated
	// bytes must carry the magic.
	blob := fakeModel(8192)
	fsys := fstest.MapFS{
		"m.bin.zst": &fstest.MapFile{Data: compressBlob(t, blob)},
	}
	eng, err := NewEngineFromAsset(fsys, "m.bin.zst")
	if err != nil {
		t.Fatalf("NewEngineFromAsset(.zst): %v", err)
	}
	defer eng.Close()
}
