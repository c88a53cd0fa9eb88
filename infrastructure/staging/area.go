// Package staging manages the temporary local files that hold a transfer's
// bytes between download and upload.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Area hands out unique staging files inside one filesystem root
type Area struct {
	fs  billy.Filesystem
	log *zap.Logger
}

// New creates a staging area over fs. Paths are relative to the fs root.
func New(fs billy.Filesystem, log *zap.Logger) *Area {
	if log == nil {
		log = zap.NewNop()
	}
	return &Area{fs: fs, log: log}
}

// NewOS creates a staging area rooted at dir on the local disk
func NewOS(dir string, log *zap.Logger) (*Area, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return New(osfs.New(dir), log), nil
}

// Handle is one acquired staging file
type Handle struct {
	area     *Area
	name     string
	mu       sync.Mutex
	file     billy.File
	released bool
}

// Acquire reserves a unique file for name. name must already be sanitized.
func (a *Area) Acquire(name string) (*Handle, error) {
	if name == "" || name != path.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid staging name %q", name)
	}
	return &Handle{
		area: a,
		name: uuid.NewString() + "_" + name,
	}, nil
}

// Path returns the location of the staged file for logs and diagnostics
func (h *Handle) Path() string {
	return h.area.fs.Join(h.area.fs.Root(), h.name)
}

// Create opens the staged file for writing, truncating anything there
func (h *Handle) Create() (billy.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, fmt.Errorf("staging file %s already released", h.name)
	}
	f, err := h.area.fs.Create(h.name)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	h.file = f
	return f, nil
}

// Open opens the staged file for reading
func (h *Handle) Open() (billy.File, error) {
	f, err := h.area.fs.Open(h.name)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging file: %w", err)
	}
	return f, nil
}

// Size returns the number of bytes currently staged
func (h *Handle) Size() (int64, error) {
	info, err := h.area.fs.Stat(h.name)
	if err != nil {
		return 0, fmt.Errorf("failed to stat staging file: %w", err)
	}
	return info.Size(), nil
}

// Release removes the staged file. It is idempotent and never fails; a file
// that is already gone is not an error and other failures are only logged.
func (a *Area) Release(h *Handle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true

	if h.file != nil {
		_ = h.file.Close()
		h.file = nil
	}

	if err := a.fs.Remove(h.name); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("failed to remove staging file", zap.String("path", h.Path()), zap.Error(err))
	}
}

// Sweep removes everything left in the staging root, for use at startup
// before any transfer runs
func (a *Area) Sweep() (int, error) {
	entries, err := a.fs.ReadDir(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := util.RemoveAll(a.fs, e.Name()); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
