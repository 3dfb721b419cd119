// Package storage persists evidence blobs (photos, short videos) and hands
// back the public URL the saved inspection references.
//
// The driver is a deployment decision: local disk by default, swappable for
// an object store later without touching the inspection writer.
package storage

import (
	"context"
	"fmt"

	"github.com/LucaslFerrari/App-Inspecao/dataurl"
	"github.com/LucaslFerrari/App-Inspecao/idgen"
)

// Upload is one blob to store.
type Upload struct {
	Data     []byte
	MimeType string
}

// Stored describes where an uploaded blob ended up.
type Stored struct {
	URL      string // public URL to reference from inspection rows
	Path     string // backend-specific location (disk path, object key)
	FileName string
	MimeType string
}

// Storage stores evidence blobs.
type Storage interface {
	Upload(ctx context.Context, up Upload) (Stored, error)
}

// ForDriver builds a Storage for the configured driver name.
// Known drivers: "local" (default when empty), "memory".
func ForDriver(driver, dir string) (Storage, error) {
	switch driver {
	case "", "local":
		return NewLocal(dir), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}

// fileName builds "<local-id>.<ext>" from a MIME type.
func fileName(ids idgen.Generator, mime string) string {
	return ids() + "." + dataurl.Ext(mime)
}
