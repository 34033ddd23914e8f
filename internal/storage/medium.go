// Package storage provides the durable key-value media backing the entity stores.
//
// A medium only knows whole values under string keys: there is no query
// capability and no partial update. Every collection is one value, every
// scalar pointer is another.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Medium is a synchronous whole-value key-value store.
type Medium interface {
	// Get returns the value stored under key. ok is false if the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set replaces the value stored under key.
	Set(key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	// Keys returns all keys in ascending order.
	Keys() ([]string, error)
	// Close releases the medium.
	Close() error
}

// Watcher is implemented by media that can report changes made by other
// processes sharing the same storage.
//
// Changes made through the same Medium value are not reported.
type Watcher interface {
	// Watch calls fn with the key name each time another process changes or
	// removes it. It returns once the watch is established; delivery stops
	// when ctx is canceled.
	Watch(ctx context.Context, fn func(key string)) error
}

var (
	errKeyEmpty   = errors.New("key is required")
	errKeyInvalid = errors.New("key contains invalid characters")
	errClosed     = errors.New("storage is closed")
)

// ValidateKey checks that key can be used as a storage key on every backend.
//
// Keys are limited to ASCII letters, digits, '_', '-' and '.', and cannot
// start with '.'.
func ValidateKey(key string) error {
	if key == "" {
		return errKeyEmpty
	}
	if key[0] == '.' {
		return fmt.Errorf("%w: %q", errKeyInvalid, key)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return fmt.Errorf("%w: %q", errKeyInvalid, key)
		}
	}
	return nil
}
