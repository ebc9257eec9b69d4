package loader

import (
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zstExt marks assets stored zstd-compressed inside the bundle.
const zstExt = ".zst"

// FromAsset opens name inside a read-only bundle and returns a Loader over its
// contents. Plain assets derive EOF from the byte count captured at open time.
// Assets ending in .zst are decompressed on the fly; their inflated size is
// unknown up front, so EOF comes from a one byte look-ahead instead.
func FromAsset(fsys fs.FS, name string) (Loader, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("loader: open asset %q: %w", name, err)
	}
	if strings.HasSuffix(name, zstExt) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("loader: open compressed asset %q: %w", name, err)
		}
		log.Debug().Str("asset", name).Msg("loader: compressed asset opened")
		return &compressedAssetLoader{name: name, file: f, dec: dec}, nil
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("loader: stat asset %q: %w", name, err)
	}
	log.Debug().Str("asset", name).Int64("size", info.Size()).Msg("loader: asset opened")
	return &assetLoader{name: name, file: f, remaining: info.Size()}, nil
}

// assetLoader serves a bundled file sequentially. remaining counts down from
// the size captured at open, which is what EOF answers from.
type assetLoader struct {
	name      string
	file      fs.File
	remaining int64
	closed    bool
}

func (l *assetLoader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.closed || l.remaining <= 0 {
		return 0, io.EOF
	}
	n, err := l.file.Read(p)
	l.remaining -= int64(n)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("loader: read asset %q: %w", l.name, err)
	}
	return n, nil
}

func (l *assetLoader) EOF() bool {
	return l.remaining <= 0
}

// Close closes the bundled file. Safe to call twice.
func (l *assetLoader) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("loader: close asset %q: %w", l.name, err)
	}
	return nil
}

// compressedAssetLoader inflates a zstd asset as the engine pulls. EOF needs a
// probe read; the probed byte is stashed and handed to the next Read so the
// probe stays invisible to the caller.
type compressedAssetLoader struct {
	name   string
	file   fs.File
	dec    *zstd.Decoder
	stash  [1]byte
	stashN int
	sawEOF bool
	closed bool
}

func (l *compressedAssetLoader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.closed {
		return 0, io.EOF
	}
	n := 0
	if l.stashN > 0 {
		p[0] = l.stash[0]
		l.stashN = 0
		n = 1
		if len(p) == 1 {
			return n, nil
		}
		p = p[1:]
	}
	m, err := l.dec.Read(p)
	n += m
	if err == io.EOF {
		l.sawEOF = true
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	if err != nil {
		return n, fmt.Errorf("loader: read compressed asset %q: %w", l.name, err)
	}
	return n, nil
}

func (l *compressedAssetLoader) EOF() bool {
	if l.stashN > 0 {
		return false
	}
	if l.sawEOF || l.closed {
		return true
	}
	n, err := l.dec.Read(l.stash[:])
	if n > 0 {
		l.stashN = 1
		return false
	}
	if err != nil {
		// A decode error also ends the stream; the next Read reports it.
		l.sawEOF = true
		return true
	}
	return false
}

func (l *compressedAssetLoader) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.dec.Close()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("loader: close compressed asset %q: %w", l.name, err)
	}
	return nil
}
