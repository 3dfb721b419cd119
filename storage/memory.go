package storage

import (
	"context"
	"sync"

	"github.com/LucaslFerrari/App-Inspecao/idgen"
)

// Memory keeps blobs in a map. For tests.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	ids   idgen.Generator
}

// NewMemory creates an in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte), ids: idgen.Local()}
}

// Upload records the blob under a generated name.
func (m *Memory) Upload(ctx context.Context, up Upload) (Stored, error) {
	name := fileName(m.ids, up.MimeType)
	m.mu.Lock()
	m.files[name] = append([]byte(nil), up.Data...)
	m.mu.Unlock()
	return Stored{
		URL:      "/uploads/" + name,
		Path:     name,
		FileName: name,
		MimeType: up.MimeType,
	}, nil
}

// Get returns a stored blob by file name.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	return b, ok
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}
