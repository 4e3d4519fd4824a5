package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

// LocalStore keeps images in a directory on disk
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the storage directory
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", &OpError{Op: "resolve", Name: name, Err: fmt.Errorf("invalid name")}
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	// write to a temp file first so a half-written image is never visible
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return &OpError{Op: "create", Name: name, Err: err}
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &OpError{Op: "write", Name: name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "write", Name: name, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &OpError{Op: "rename", Name: name, Err: err}
	}

	logrus.WithFields(logrus.Fields{"name": name, "size": written}).Debug("stored image on disk")
	return nil
}

func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &OpError{Op: "open", Name: name, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &OpError{Op: "open", Name: name, Err: err}
	}
	return f, nil
}

func (s *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &OpError{Op: "stat", Name: name, Err: err}
	}
	return true, nil
}

func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &OpError{Op: "list", Name: s.dir, Err: err}
	}

	var objects []Object
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{
			Name:        entry.Name(),
			Size:        info.Size(),
			ContentType: utils.DeclaredContentType(entry.Name()),
			Modified:    info.ModTime(),
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Modified.After(objects[j].Modified)
	})
	return objects, nil
}
