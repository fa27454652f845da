package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Manager is an on-disk key/value cache of raw issue-tracker responses.
// Reruns of the same analysis read from it instead of the network.
type Manager struct {
	db     *bolt.DB
	path   string
	logger logrus.FieldLogger
}

// Open opens (creating if needed) the cache database at path
func Open(path string, logger logrus.FieldLogger) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	logger.WithField("path", path).Debug("cache opened")
	return &Manager{db: db, path: path, logger: logger}, nil
}

// Path returns the database file location
func (m *Manager) Path() string {
	return m.path
}

// Get returns a copy of the value stored under key. A missing bucket or key
// is reported as ok=false, not as an error.
func (m *Manager) Get(bucket, key string) ([]byte, bool, error) {
	var result []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(key)); data != nil {
			// bolt memory is only valid inside the transaction
			result = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache read %s/%s: %w", bucket, key, err)
	}
	return result, result != nil, nil
}

// Put stores value under key, creating the bucket on first use
func (m *Manager) Put(bucket, key string, value []byte) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// Count returns the number of keys in bucket
func (m *Manager) Count(bucket string) (int, error) {
	n := 0
	err := m.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bucket)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Clear drops bucket and everything in it
func (m *Manager) Clear(bucket string) error {
	m.logger.WithField("bucket", bucket).Info("Clearing cache bucket")
	return m.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(bucket))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

// Close releases the database file lock
func (m *Manager) Close() error {
	return m.db.Close()
}
