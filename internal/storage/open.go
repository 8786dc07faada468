package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the Store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return OpenFile(dir)
	case BackendSQLite:
		if _, err := OpenFile(dir); err != nil {
			return nil, err
		}
		return OpenSQLite(filepath.Join(dir, "state.db"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
