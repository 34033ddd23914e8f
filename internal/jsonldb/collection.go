package jsonldb

import (
	"bytes"
	"encoding/json"
	"iter"
	"log/slog"
	"slices"
	"sync"

	apperrors "github.com/maruel/bgstudio/internal/errors"
	"github.com/maruel/bgstudio/internal/storage"
)

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Row is an entity that can be stored in a Collection.
type Row[T any] interface {
	Cloner[T]
	// GetID returns the entity id, unique within its collection.
	GetID() string
	// Validate checks that the entity is well-formed.
	Validate() error
}

// Collection is an ordered set of entities persisted as one JSON array.
//
// Insertion order is array order. Every mutation builds a new slice, so
// slices handed to observers are never modified afterwards. Rows returned by
// the read methods are clones.
//
// Stored rows that cannot be decoded into T are kept verbatim and written back
// after the decoded rows, so a single bad row never erases the others.
type Collection[T Row[T]] struct {
	v   *Value[[]T]
	key string

	mu         sync.Mutex
	unreadable []json.RawMessage
}

// NewCollection loads the collection stored under key.
// A missing key, or content that is not a JSON array, yields an empty
// collection. null entries are dropped.
func NewCollection[T Row[T]](m storage.Medium, key string, opts ...Option) (*Collection[T], error) {
	c := &Collection[T]{key: key}
	v, err := newValue(m, key, []T{}, c.decode, c.encode, opts...)
	if err != nil {
		return nil, err
	}
	c.v = v
	return c, nil
}

var jsonNull = []byte("null")

func (c *Collection[T]) decode(data []byte) ([]T, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	rows := make([]T, 0, len(raw))
	var unreadable []json.RawMessage
	for i, r := range raw {
		if bytes.Equal(bytes.TrimSpace(r), jsonNull) {
			continue
		}
		var row T
		if err := json.Unmarshal(r, &row); err != nil {
			slog.Warn("failed to parse stored row, keeping it unchanged", "key", c.key, "index", i, "err", err)
			unreadable = append(unreadable, r)
			continue
		}
		rows = append(rows, row)
	}
	c.mu.Lock()
	c.unreadable = unreadable
	c.mu.Unlock()
	return rows, nil
}

func (c *Collection[T]) encode(rows []T) ([]byte, error) {
	c.mu.Lock()
	unreadable := c.unreadable
	c.mu.Unlock()
	if len(unreadable) == 0 {
		return json.Marshal(rows)
	}
	out := make([]json.RawMessage, 0, len(rows)+len(unreadable))
	for _, row := range rows {
		b, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(append(out, unreadable...))
}

// Unreadable returns the number of stored rows that could not be decoded.
// They are preserved on flush until Replace is called.
func (c *Collection[T]) Unreadable() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unreadable)
}

// Value returns the underlying keyed value.
func (c *Collection[T]) Value() *Value[[]T] {
	return c.v
}

// Key returns the storage key.
func (c *Collection[T]) Key() string {
	return c.v.Key()
}

// Reload implements Reloader.
func (c *Collection[T]) Reload() {
	c.v.Reload()
}

// Flush writes pending changes now.
func (c *Collection[T]) Flush() error {
	return c.v.Flush()
}

// Close flushes pending changes and stops scheduling flushes.
func (c *Collection[T]) Close() error {
	return c.v.Close()
}

// Len returns the number of rows.
func (c *Collection[T]) Len() int {
	return len(c.v.Read())
}

// All returns an iterator over clones of all rows in insertion order.
func (c *Collection[T]) All() iter.Seq[T] {
	rows := c.v.Read()
	return func(yield func(T) bool) {
		for _, row := range rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Filter returns an iterator over clones of the rows matching pred.
func (c *Collection[T]) Filter(pred func(T) bool) iter.Seq[T] {
	rows := c.v.Read()
	return func(yield func(T) bool) {
		for _, row := range rows {
			if pred(row) && !yield(row.Clone()) {
				return
			}
		}
	}
}

// Find returns a clone of the first row matching pred.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	for _, row := range c.v.Read() {
		if pred(row) {
			return row.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Get returns a clone of the row with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	return c.Find(func(r T) bool { return r.GetID() == id })
}

// Has reports whether a row with the given id exists.
func (c *Collection[T]) Has(id string) bool {
	return slices.ContainsFunc(c.v.Read(), func(r T) bool { return r.GetID() == id })
}

// Append validates row and adds it at the end.
func (c *Collection[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return err
	}
	stored := row.Clone()
	return c.v.TryUpdate(func(prev []T) ([]T, error) {
		if slices.ContainsFunc(prev, func(r T) bool { return r.GetID() == stored.GetID() }) {
			return nil, apperrors.Conflict("duplicate id").WithDetail("id", stored.GetID()).WithDetail("key", c.Key())
		}
		next := make([]T, len(prev), len(prev)+1)
		copy(next, prev)
		return append(next, stored), nil
	})
}

// Replace replaces all rows, discarding unreadable ones. Ids must be unique.
func (c *Collection[T]) Replace(rows []T) error {
	next := make([]T, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return err
		}
		if _, dup := seen[row.GetID()]; dup {
			return apperrors.Conflict("duplicate id").WithDetail("id", row.GetID()).WithDetail("key", c.Key())
		}
		seen[row.GetID()] = struct{}{}
		next = append(next, row.Clone())
	}
	c.mu.Lock()
	c.unreadable = nil
	c.mu.Unlock()
	c.v.Set(next)
	return nil
}

// Modify replaces the row with the given id by fn(clone of row).
// The id cannot be changed. It returns a clone of the stored row.
func (c *Collection[T]) Modify(id string, fn func(T) (T, error)) (T, error) {
	var out T
	err := c.v.TryUpdate(func(prev []T) ([]T, error) {
		i := slices.IndexFunc(prev, func(r T) bool { return r.GetID() == id })
		if i < 0 {
			return nil, apperrors.NotFound("entity").WithDetail("id", id).WithDetail("key", c.Key())
		}
		row, err := fn(prev[i].Clone())
		if err != nil {
			return nil, err
		}
		if row.GetID() != id {
			return nil, apperrors.Validation("id cannot be changed").WithDetail("id", id)
		}
		if err := row.Validate(); err != nil {
			return nil, err
		}
		next := slices.Clone(prev)
		next[i] = row
		out = row.Clone()
		return next, nil
	})
	return out, err
}

// Delete removes the row with the given id. It reports whether it existed.
func (c *Collection[T]) Delete(id string) (bool, error) {
	found := false
	err := c.v.TryUpdate(func(prev []T) ([]T, error) {
		i := slices.IndexFunc(prev, func(r T) bool { return r.GetID() == id })
		if i < 0 {
			return nil, errNoChange
		}
		found = true
		return slices.Delete(slices.Clone(prev), i, i+1), nil
	})
	if err == errNoChange {
		return false, nil
	}
	return found, err
}

// Observe registers fn to be called with the rows after each change.
// The slice must not be modified.
func (c *Collection[T]) Observe(fn func(rows []T)) (cancel func()) {
	return c.v.Observe(fn)
}
