package storage

import (
	"fmt"

	"go.etcd.io/bbolt"
)

const defaultBucket = "authcore"

// Bolt is a file-backed KV on a single bbolt bucket. It is the durable
// store: the access-token entry written here survives a restart so a new
// process can resume the session.
type Bolt struct {
	db     *bbolt.DB
	bucket []byte
}

var _ KV = (*Bolt)(nil)

// OpenBolt opens (or creates) a bbolt database at path and ensures the
// backing bucket exists.
func OpenBolt(path string, options *bbolt.Options) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("%w: opening bolt db: %v", ErrUnavailable, err)
	}

	bucket := []byte(defaultBucket)
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating bucket: %v", ErrUnavailable, err)
	}

	return &Bolt{db: db, bucket: bucket}, nil
}

// NewBolt wraps an already-open bbolt database. The caller keeps ownership
// of the database lifecycle; Close is still safe to call.
func NewBolt(db *bbolt.DB) (*Bolt, error) {
	bucket := []byte(defaultBucket)
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating bucket: %v", ErrUnavailable, err)
	}
	return &Bolt{db: db, bucket: bucket}, nil
}

func (b *Bolt) Get(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(b.bucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// bbolt slices are only valid inside the transaction.
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Put(key string, value []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (b *Bolt) Delete(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
