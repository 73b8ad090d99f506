package csvlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is an open log file.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// Storage creates log files.
type Storage interface {
	Create(dir, name string) (File, error)
	// Ready reports whether the medium can accept I/O right now.
	Ready() bool
}

// DirStorage keeps logs under Root.
type DirStorage struct {
	Root string

	// ReadyFn reports whether the medium is mounted. Nil means always.
	ReadyFn func() bool
}

func (d *DirStorage) Ready() bool {
	if d.ReadyFn != nil {
		return d.ReadyFn()
	}
	return true
}

func (d *DirStorage) Create(dir, name string) (File, error) {
	p := filepath.Join(d.Root, dir)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return nil, fmt.Errorf("csvlog: mkdir %s: %w", p, err)
	}
	f, err := os.Create(filepath.Join(p, name))
	if err != nil {
		return nil, fmt.Errorf("csvlog: create: %w", err)
	}
	return f, nil
}
