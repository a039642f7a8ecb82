package offset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// BoltDBStore implements ProgressStore using BoltDB.
// Each instance is a bucket keyed by log file name.
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore creates a new BoltDB progress store. A file that is not a
// readable BoltDB database is moved aside and replaced by an empty one.
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	db, err := openBolt(dbPath)
	if err != nil && !errors.Is(err, ErrStateLocked) && !errors.Is(err, fs.ErrPermission) {
		if _, statErr := os.Stat(dbPath); statErr == nil {
			aside := fmt.Sprintf("%s.corrupt-%s", dbPath, time.Now().UTC().Format("20060102T150405Z"))
			log.Warn().
				Err(err).
				Str("db_path", dbPath).
				Str("moved_to", aside).
				Msg("Progress database is unreadable, starting with empty progress")
			if renameErr := os.Rename(dbPath, aside); renameErr != nil {
				return nil, fmt.Errorf("failed to move unreadable boltdb aside: %w", renameErr)
			}
			db, err = openBolt(dbPath)
		}
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("BoltDB progress store initialized")

	return &BoltDBStore{db: db}, nil
}

func openBolt(dbPath string) (*bbolt.DB, error) {
	// Try to open with short timeout
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// bbolt holds an flock on the file while open
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%s: %w", dbPath, ErrStateLocked)
		}
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}
	return db, nil
}

// Load reads all instance buckets. Values that fail to decode are skipped.
func (s *BoltDBStore) Load(ctx context.Context) (Progress, error) {
	p := Progress{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			instanceID := string(name)
			return b.ForEach(func(k, v []byte) error {
				fp, err := decodeFileState(v)
				if err != nil {
					log.Warn().
						Err(err).
						Str("instance", instanceID).
						Str("file", string(k)).
						Msg("Skipping corrupt progress entry")
					return nil
				}
				p.Set(instanceID, string(k), fp)
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	return p, nil
}

// Save replaces every bucket with the contents of p in one transaction
func (s *BoltDBStore) Save(ctx context.Context, p Progress) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var existing [][]byte
		if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			existing = append(existing, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range existing {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}

		for instanceID, files := range p {
			b, err := tx.CreateBucket([]byte(instanceID))
			if err != nil {
				return fmt.Errorf("failed to create bucket %q: %w", instanceID, err)
			}
			for name, fp := range files {
				val, err := json.Marshal(toFileState(fp))
				if err != nil {
					return err
				}
				if err := b.Put([]byte(name), val); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	log.Debug().
		Int("files", p.Len()).
		Msg("Progress saved")

	return nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Info().Msg("Closing BoltDB progress store")
	return s.db.Close()
}
