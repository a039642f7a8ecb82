package offset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// JSONFileStore implements ProgressStore using a single JSON file
type JSONFileStore struct {
	path string
	lock *flock.Flock
}

// NewJSONFileStore creates a JSON file store and takes an exclusive lock next to the file
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is required")
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrStateLocked)
	}

	log.Info().
		Str("state_file", path).
		Msg("JSON progress store initialized")

	return &JSONFileStore{path: path, lock: lock}, nil
}

// Path returns the state file path
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load reads the state file. A missing or corrupt file is a first run, not an error.
func (s *JSONFileStore) Load(ctx context.Context) (Progress, error) {
	return ReadStateFile(s.path), nil
}

// Save writes p to a temp file and renames it over the state file
func (s *JSONFileStore) Save(ctx context.Context, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	log.Debug().
		Str("state_file", s.path).
		Int("files", p.Len()).
		Msg("Progress saved")

	return nil
}

// Close releases the state file lock
func (s *JSONFileStore) Close() error {
	return s.lock.Unlock()
}

// ReadStateFile decodes a state file without locking it.
// Returns empty progress and logs a warning if the file can't be read.
func ReadStateFile(path string) Progress {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().
			Err(err).
			Str("state_file", path).
			Msg("Can't open state file, starting with empty progress")
		return Progress{}
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().
			Err(err).
			Str("state_file", path).
			Msg("Can't parse state file, starting with empty progress")
		return Progress{}
	}
	if p == nil {
		p = Progress{}
	}
	return p
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
