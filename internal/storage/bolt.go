package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	logx "gamewatch/pkg/logx"
)

var (
	boltKnownBucket = []byte("known_entries")
	boltAuditBucket = []byte("audit")
)

// boltKeyPrefix is prepended to every id key; bbolt rejects empty keys and
// "" is a valid id.
const boltKeyPrefix = 'k'

// boltStore keeps one key per known id; the bucket's presence is the
// "persisted state exists" signal.
type boltStore struct {
	db  *bolt.DB
	log logx.Logger
}

func openBolt(cfg Config, log logx.Logger) (Store, error) {
	path := pathOrDefault(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	return &boltStore{db: db, log: log}, nil
}

func (s *boltStore) Load(ctx context.Context) ([]string, error) {
	_ = ctx
	ids := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltKnownBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if len(k) == 0 || k[0] != boltKeyPrefix {
				return fmt.Errorf("state db: unexpected key %q", k)
			}
			ids = append(ids, string(k[1:]))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *boltStore) Save(ctx context.Context, ids []string) error {
	_ = ctx
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(boltKnownBucket) != nil {
			if err := tx.DeleteBucket(boltKnownBucket); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(boltKnownBucket)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := b.Put(boltKey(id), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func boltKey(id string) []byte {
	k := make([]byte, 0, len(id)+1)
	k = append(k, boltKeyPrefix)
	return append(k, id...)
}

func (s *boltStore) Clear(ctx context.Context) error {
	_ = ctx
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(boltKnownBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(boltKnownBucket)
	})
}

func (s *boltStore) Exists(ctx context.Context) (bool, error) {
	_ = ctx
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(boltKnownBucket) != nil
		return nil
	})
	return found, err
}

func (s *boltStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	v, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(boltAuditBucket)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, v)
	})
}

func (s *boltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
