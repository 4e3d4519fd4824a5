// Package store keeps the images received by the stand-in analysis service.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/r2"
)

// ErrNotFound is returned when a stored image does not exist
var ErrNotFound = errors.New("stored image not found")

// Object describes one stored image
type Object struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Modified    time.Time `json:"modified"`
}

// Store is where uploaded images live until they are analyzed
type Store interface {
	// Save writes r under name, replacing any existing image
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error

	// Open returns the image content; ErrNotFound if it does not exist
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether name is stored
	Exists(ctx context.Context, name string) (bool, error)

	// List returns every stored image
	List(ctx context.Context) ([]Object, error)
}

// OpError wraps a failed store operation
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("store %s failed for %s: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// FromConfig builds the backend selected by server.storage
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch strings.ToLower(cfg.Server.Storage) {
	case "", "local":
		local, err := NewLocalStore(cfg.Server.StorageDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "r2":
		client, err := r2.NewClient(ctx, &cfg.R2)
		if err != nil {
			return nil, fmt.Errorf("failed to create R2 client: %w", err)
		}
		return NewR2StoreFromClient(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Server.Storage)
	}
}
