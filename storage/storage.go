package storage

import "errors"

var (
	// ErrNotFound indicates the key has no value in the store.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable indicates the backend could not serve the operation.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// KV is the minimal key-value contract the controller needs. Implementations
// must treat a missing key as ErrNotFound, never as an empty value: the
// session store fails safe to logged-out on ErrNotFound but surfaces every
// other error.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}
