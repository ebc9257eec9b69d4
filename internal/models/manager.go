package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Manager resolves model variants to files inside one managed directory and
// downloads missing ones. A directory watcher drops cached resolutions when
// files change underneath the process.
type Manager struct {
	dir      string
	manifest *Manifest
	client   *http.Client

	mu    sync.Mutex
	cache map[string]string // variant id -> resolved path

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

func NewManager(dir string, manifest *Manifest) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create dir %s: %w", dir, err)
	}
	m := &Manager{
		dir:      dir,
		manifest: manifest,
		client:   &http.Client{},
		cache:    make(map[string]string),
		done:     make(chan struct{}),
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("models: watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("models: watch %s: %w", dir, err)
	}
	m.watcher = w
	go m.watch()
	return m, nil
}

func (m *Manager) watch() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
				m.invalidate(filepath.Base(ev.Name))
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("models: watcher error")
		case <-m.done:
			return
		}
	}
}

// invalidate drops cached resolutions pointing at filename.
func (m *Manager) invalidate(filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, path := range m.cache {
		if filepath.Base(path) == filename {
			delete(m.cache, id)
			log.Debug().Str("variant", id).Str("file", filename).Msg("models: cached path invalidated")
		}
	}
}

// Resolve returns the local path for a variant. A non-empty override path
// wins and must exist; otherwise the variant's file is looked up in the
// managed directory.
func (m *Manager) Resolve(variant, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("models: model path %s: %w", override, err)
		}
		return override, nil
	}

	m.mu.Lock()
	if path, ok := m.cache[variant]; ok {
		m.mu.Unlock()
		return path, nil
	}
	m.mu.Unlock()

	v, ok := m.manifest.Variant(variant)
	if !ok {
		return "", fmt.Errorf("models: unknown variant %q", variant)
	}
	path := filepath.Join(m.dir, v.Filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("models: variant %q not present at %s: %w", variant, path, err)
	}

	m.mu.Lock()
	m.cache[variant] = path
	m.mu.Unlock()
	return path, nil
}

// Ensure resolves a variant, downloading it into the managed directory first
// when it is missing.
func (m *Manager) Ensure(ctx context.Context, variant string) (string, error) {
	if path, err := m.Resolve(variant, ""); err == nil {
		return path, nil
	}
	v, ok := m.manifest.Variant(variant)
	if !ok {
		return "", fmt.Errorf("models: unknown variant %q", variant)
	}
	if v.URL == "" {
		return "", fmt.Errorf("models: variant %q has no download url", variant)
	}
	path := filepath.Join(m.dir, v.Filename)
	if err := m.download(ctx, v, path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) download(ctx context.Context, v Variant, dst string) error {
	log.Info().Str("url", v.URL).Str("file", v.Filename).Msg("models: downloading")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return fmt.Errorf("models: build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("models: download %s: %w", v.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: download %s: unexpected status %s", v.URL, resp.Status)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("models: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("models: write %s: %w", v.Filename, err)
	}

	if v.SHA256 != "" {
		sum := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(sum, v.SHA256) {
			return fmt.Errorf("models: checksum mismatch for %s: got %s, want %s", v.Filename, sum, v.SHA256)
		}
	} else {
		log.Warn().Str("file", v.Filename).Msg("models: no checksum pinned, download unverified")
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("models: move into place: %w", err)
	}
	log.Info().Str("file", v.Filename).Int64("bytes", n).Msg("models: download complete")
	return nil
}

// Close stops the directory watcher. Safe to call more than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		err = m.watcher.Close()
	})
	return err
}
