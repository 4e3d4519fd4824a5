// Package preview keeps local copies of selected images and renders them in
// the terminal.
package preview

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/disintegration/imaging" // registers jpeg, png, gif, bmp and tiff decoders
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/session"
)

// ErrClosed is returned by a Store after Close
var ErrClosed = errors.New("preview store closed")

// Store writes candidate bytes into a private temp directory. Each Put
// returns a handle that stays valid until Release or Close.
type Store struct {
	dir     string
	mutex   sync.Mutex
	entries map[string]*Entry
	closed  bool
}

// NewStore creates a private directory under baseDir; empty baseDir uses the
// system temp dir
func NewStore(baseDir string) (*Store, error) {
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, 0700); err != nil {
			return nil, &StoreError{Operation: "mkdir", Path: baseDir, Err: err}
		}
	}
	dir, err := os.MkdirTemp(baseDir, "dermascan-preview-*")
	if err != nil {
		return nil, &StoreError{Operation: "mkdir", Path: baseDir, Err: err}
	}
	return &Store{dir: dir, entries: make(map[string]*Entry)}, nil
}

// Dir returns the directory previews are written to
func (s *Store) Dir() string {
	return s.dir
}

// Put stores the file's bytes and returns its handle
func (s *Store) Put(generation uint64, f *session.CandidateFile) (string, error) {
	if f == nil {
		return "", &StoreError{Operation: "put", Path: s.dir, Err: fmt.Errorf("no file")}
	}

	sum := sha256.Sum256(f.Data)
	ext := strings.ToLower(filepath.Ext(f.Name))
	path := filepath.Join(s.dir, fmt.Sprintf("%d-%x%s", generation, sum[:6], ext))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if err := os.WriteFile(path, f.Data, 0600); err != nil {
		return "", &StoreError{Operation: "write", Path: path, Err: err}
	}

	entry := &Entry{
		Handle:     path,
		Name:       f.Name,
		Path:       path,
		Generation: generation,
		Bytes:      f.Size(),
		CreateTime: time.Now(),
	}
	// 只读取图片头部信息，解码失败不影响预览句柄
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		entry.Format = format
		entry.Original = Size{Width: cfg.Width, Height: cfg.Height}
	}
	s.entries[path] = entry

	logrus.WithFields(logrus.Fields{
		"generation": generation,
		"file":       f.Name,
		"path":       path,
	}).Debug("preview stored")
	return path, nil
}

// Get returns the entry for a live handle
func (s *Store) Get(handle string) (*Entry, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entries[handle]
	if !ok {
		return nil, false
	}
	copied := *e
	return &copied, true
}

// Release frees a handle. Releasing an unknown handle is a no-op.
func (s *Store) Release(handle string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.entries[handle]; !ok {
		return nil
	}
	delete(s.entries, handle)
	if err := os.Remove(handle); err != nil && !os.IsNotExist(err) {
		return &StoreError{Operation: "remove", Path: handle, Err: err}
	}
	return nil
}

// Len returns the number of live handles
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

// Close releases every handle and removes the directory
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = make(map[string]*Entry)
	if err := os.RemoveAll(s.dir); err != nil {
		return &StoreError{Operation: "cleanup", Path: s.dir, Err: err}
	}
	return nil
}
