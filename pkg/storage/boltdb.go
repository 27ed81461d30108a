package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/replicad/pkg/types"
)

var (
	// Bucket names
	bucketRoles   = []byte("roles")
	bucketHistory = []byte("history")
)

// DefaultHistoryLimit is the number of transitions kept per resource
const DefaultHistoryLimit = 100

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db           *bolt.DB
	historyLimit int
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "replicad.db")

	// A second daemon on the same state directory fails fast instead
	// of blocking on the file lock
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRoles, bucketHistory} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, historyLimit: DefaultHistoryLimit}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) SaveRole(record *types.RoleRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRoles).Put([]byte(record.Resource), data); err != nil {
			return err
		}

		history, err := tx.Bucket(bucketHistory).CreateBucketIfNotExists([]byte(record.Resource))
		if err != nil {
			return err
		}
		seq, err := history.NextSequence()
		if err != nil {
			return err
		}
		if err := history.Put(seqKey(seq), data); err != nil {
			return err
		}
		return trim(history, s.historyLimit)
	})
}

func (s *BoltStore) GetRole(resource string) (*types.RoleRecord, error) {
	var record types.RoleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRoles).Get([]byte(resource))
		if data == nil {
			return fmt.Errorf("role of %s: %w", resource, ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *BoltStore) ListRoles() ([]*types.RoleRecord, error) {
	var records []*types.RoleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoles).ForEach(func(k, v []byte) error {
			var record types.RoleRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

func (s *BoltStore) History(resource string, limit int) ([]*types.RoleRecord, error) {
	var records []*types.RoleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		history := tx.Bucket(bucketHistory).Bucket([]byte(resource))
		if history == nil {
			return nil
		}
		c := history.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record types.RoleRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

// trim deletes the oldest entries beyond limit
func trim(b *bolt.Bucket, limit int) error {
	if limit <= 0 {
		return nil
	}
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= limit {
		return nil
	}
	stale := keys[:len(keys)-limit]
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
