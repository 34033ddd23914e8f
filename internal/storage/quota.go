package storage

import (
	"context"
	"sync"

	apperrors "github.com/maruel/bgstudio/internal/errors"
)

// DefaultQuota mirrors the ~5MB ceiling of browser local storage.
const DefaultQuota int64 = 5 << 20

// Quota enforces a capacity ceiling on the wrapped medium.
//
// Usage is the sum of len(key)+len(value) over every key. It is computed when
// the wrapper is created and then tracked on each write made through it.
type Quota struct {
	inner Medium
	limit int64

	mu    sync.Mutex
	sizes map[string]int64
	used  int64
}

type watchingQuota struct {
	*Quota
	w Watcher
}

func (q *watchingQuota) Watch(ctx context.Context, fn func(key string)) error {
	return q.w.Watch(ctx, func(key string) {
		q.refresh(key)
		fn(key)
	})
}

// WithQuota wraps m so that writes fail once limit bytes are used.
// The returned medium implements Watcher if m does.
func WithQuota(m Medium, limit int64) (Medium, error) {
	q := &Quota{inner: m, limit: limit, sizes: make(map[string]int64)}
	keys, err := m.Keys()
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		v, ok, err := m.Get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			sz := int64(len(k) + len(v))
			q.sizes[k] = sz
			q.used += sz
		}
	}
	if w, ok := m.(Watcher); ok {
		return &watchingQuota{Quota: q, w: w}, nil
	}
	return q, nil
}

// Used returns the number of bytes in use.
func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Limit returns the capacity ceiling.
func (q *Quota) Limit() int64 {
	return q.limit
}

// Get implements Medium.
func (q *Quota) Get(key string) ([]byte, bool, error) {
	return q.inner.Get(key)
}

// Set implements Medium.
func (q *Quota) Set(key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	sz := int64(len(key) + len(value))
	next := q.used - q.sizes[key] + sz
	if next > q.limit {
		return apperrors.QuotaExceeded(next, q.limit).WithDetail("key", key)
	}
	if err := q.inner.Set(key, value); err != nil {
		return err
	}
	q.used = next
	q.sizes[key] = sz
	return nil
}

// Remove implements Medium.
func (q *Quota) Remove(key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.inner.Remove(key); err != nil {
		return err
	}
	q.used -= q.sizes[key]
	delete(q.sizes, key)
	return nil
}

// Keys implements Medium.
func (q *Quota) Keys() ([]string, error) {
	return q.inner.Keys()
}

// Close implements Medium.
func (q *Quota) Close() error {
	return q.inner.Close()
}

// refresh re-reads the size of key after another process changed it.
func (q *Quota) refresh(key string) {
	v, ok, err := q.inner.Get(key)
	if err != nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used -= q.sizes[key]
	delete(q.sizes, key)
	if ok {
		sz := int64(len(key) + len(v))
		q.sizes[key] = sz
		q.used += sz
	}
}
