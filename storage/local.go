package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LucaslFerrari/App-Inspecao/idgen"
)

// Local writes blobs to a directory and serves them under /uploads/.
type Local struct {
	dir     string
	baseURL string
	ids     idgen.Generator
}

// LocalOption customises a Local store.
type LocalOption func(*Local)

// WithBaseURL changes the URL prefix returned for stored files.
// Default: "/uploads".
func WithBaseURL(u string) LocalOption { return func(l *Local) { l.baseURL = u } }

// WithIDs overrides the file-name id generator.
func WithIDs(g idgen.Generator) LocalOption { return func(l *Local) { l.ids = g } }

// NewLocal creates a disk-backed store rooted at dir.
func NewLocal(dir string, opts ...LocalOption) *Local {
	l := &Local{dir: dir, baseURL: "/uploads", ids: idgen.Local()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Upload writes the blob to disk under a generated name.
func (l *Local) Upload(ctx context.Context, up Upload) (Stored, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Stored{}, fmt.Errorf("storage: mkdir %s: %w", l.dir, err)
	}
	name := fileName(l.ids, up.MimeType)
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, up.Data, 0o644); err != nil {
		return Stored{}, fmt.Errorf("storage: write %s: %w", name, err)
	}
	return Stored{
		URL:      l.baseURL + "/" + name,
		Path:     path,
		FileName: name,
		MimeType: up.MimeType,
	}, nil
}
