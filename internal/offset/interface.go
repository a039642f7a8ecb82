package offset

import (
	"context"
	"errors"
)

// ErrStateLocked is returned when another process holds the state file
var ErrStateLocked = errors.New("state is locked by another process")

// ProgressStore persists per-file read progress
// Implementations: JSON file (primary), BoltDB (optional)
type ProgressStore interface {
	// Load returns all stored progress.
	// Returns an empty Progress when nothing has been stored yet
	Load(ctx context.Context) (Progress, error)

	// Save atomically replaces the stored progress with p
	Save(ctx context.Context, p Progress) error

	// Close releases the store
	Close() error
}

// Open opens the store for the named backend ("json" or "boltdb")
func Open(backend, path string) (ProgressStore, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONFileStore(path)
	case BackendBoltDB:
		return NewBoltDBStore(path)
	default:
		return nil, errors.New("unknown state backend: " + backend)
	}
}

// Supported backends
const (
	BackendJSON   = "json"
	BackendBoltDB = "boltdb"
)
