// Package blob is the single entry point to the export archive backends.
// Callers depend on Store; only this package imports the infra drivers.
package blob

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recordcore/internal/blob/core"
	fsstore "recordcore/internal/infra/blob/fs"
	memstore "recordcore/internal/infra/blob/memory"
	s3store "recordcore/internal/infra/blob/s3"
)

type (
	Store            = core.Store
	Info             = core.Info
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Driver           = core.Driver
	S3Config         = s3store.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the backend named by cfg.Driver. An empty driver selects
// the filesystem backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memstore.New() }

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fsstore.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewS3 returns a store on an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := s3store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests returns an S3 store whose HTTP transport is an in-process
// fake bucket.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }

// Archiver copies exported files into a Store under
// exports/<kind>/<timestamp>-<basename>.
type Archiver struct {
	store Store
	now   func() time.Time
}

// NewArchiver wraps store. A nil clock defaults to time.Now in UTC.
func NewArchiver(store Store, now func() time.Time) *Archiver {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Archiver{store: store, now: now}
}

// Key returns the archive key for a file of kind.
func (a *Archiver) Key(kind, path string) string {
	return fmt.Sprintf("exports/%s/%s-%s", kind, a.now().UTC().Format("20060102T150405Z"), filepath.Base(path))
}

// Archive uploads the file at path and returns its key.
func (a *Archiver) Archive(ctx context.Context, kind, path string) (string, error) {
	if strings.TrimSpace(kind) == "" {
		return "", fmt.Errorf("archive kind required")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	key := a.Key(kind, path)
	opts := PutOptions{
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Metadata:    map[string]string{"kind": kind, "source": filepath.Base(path)},
	}
	if _, err := a.store.Put(ctx, key, f, opts); err != nil {
		return "", err
	}
	return key, nil
}

// Store returns the underlying blob store.
func (a *Archiver) Store() Store { return a.store }
