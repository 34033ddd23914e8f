package jsonldb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maruel/bgstudio/internal/storage"
)

// Option configures a Value.
type Option func(*options)

type options struct {
	debounce time.Duration
}

// WithDebounce sets the delay between the last write and its flush.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// Reloader is implemented by values that can re-read their storage key.
type Reloader interface {
	Key() string
	Reload()
}

// Value holds the cached, JSON-decoded content of one storage key.
//
// Reads never touch storage. Writes update the cache immediately and schedule
// a debounced flush. Safe for concurrent use.
//
// Values returned by Read and passed to observers are shared with the cache
// and must be treated as immutable; Update functions must return a new value
// rather than mutate the previous one.
type Value[T any] struct {
	m        storage.Medium
	key      string
	def      T
	decode   func([]byte) (T, error)
	encode   func(T) ([]byte, error)
	debounce *Debouncer

	mu     sync.RWMutex
	cur    T
	gen    uint64 // incremented on every in-memory change
	dirty  bool
	closed bool

	flushMu sync.Mutex

	obsMu     sync.Mutex
	observers map[int]func(T)
	nextObs   int
}

// NewValue loads key from m, falling back to def when the key is absent or
// its content cannot be decoded. Decoding failures are logged, not returned.
func NewValue[T any](m storage.Medium, key string, def T, opts ...Option) (*Value[T], error) {
	return newValue(m, key, def, decodeJSON[T], encodeJSON[T], opts...)
}

func decodeJSON[T any](data []byte) (T, error) {
	var out T
	err := json.Unmarshal(data, &out)
	return out, err
}

func encodeJSON[T any](v T) ([]byte, error) {
	return json.Marshal(v)
}

func newValue[T any](m storage.Medium, key string, def T, decode func([]byte) (T, error), encode func(T) ([]byte, error), opts ...Option) (*Value[T], error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	o := options{debounce: storage.DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	v := &Value[T]{
		m:         m,
		key:       key,
		def:       def,
		decode:    decode,
		encode:    encode,
		debounce:  NewDebouncer(o.debounce),
		observers: make(map[int]func(T)),
	}
	v.cur = v.load()
	return v, nil
}

func (v *Value[T]) load() T {
	data, ok, err := v.m.Get(v.key)
	if err != nil {
		slog.Warn("failed to read stored value, using default", "key", v.key, "err", err)
		return v.def
	}
	if !ok {
		return v.def
	}
	out, err := v.decode(data)
	if err != nil {
		slog.Warn("failed to parse stored value, using default", "key", v.key, "err", err)
		return v.def
	}
	return out
}

// Key returns the storage key.
func (v *Value[T]) Key() string {
	return v.key
}

// Read returns the cached value.
func (v *Value[T]) Read() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Dirty reports whether a write has not been flushed yet.
func (v *Value[T]) Dirty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dirty
}

// Set replaces the value.
func (v *Value[T]) Set(next T) {
	_ = v.TryUpdate(func(T) (T, error) { return next, nil })
}

// Update replaces the value with fn(previous).
func (v *Value[T]) Update(fn func(prev T) T) {
	_ = v.TryUpdate(func(prev T) (T, error) { return fn(prev), nil })
}

// TryUpdate replaces the value with fn(previous) unless fn returns an error,
// in which case nothing changes and the error is returned.
//
// fn runs with the value locked; it must not call back into v.
func (v *Value[T]) TryUpdate(fn func(prev T) (T, error)) error {
	v.mu.Lock()
	next, err := fn(v.cur)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.cur = next
	v.gen++
	v.dirty = true
	// Armed under mu so that Close, which sets closed before cancelling,
	// always sees the timer.
	if !v.closed {
		v.debounce.Debounce(v.scheduledFlush)
	}
	v.mu.Unlock()

	v.notify(next)
	return nil
}

func (v *Value[T]) scheduledFlush() {
	if err := v.flush(false); err != nil {
		slog.Warn("failed to flush", "key", v.key, "err", err)
	}
}

// Flush writes the latest value to storage now if a write is pending.
// It is a no-op after Close.
//
// A failed flush is not retried; the cache keeps the attempted value.
func (v *Value[T]) Flush() error {
	return v.flush(false)
}

// flush writes the pending value. Only the final flush from Close runs once
// the value is closed.
func (v *Value[T]) flush(final bool) error {
	v.flushMu.Lock()
	defer v.flushMu.Unlock()

	v.mu.RLock()
	if !v.dirty || (v.closed && !final) {
		v.mu.RUnlock()
		return nil
	}
	snapshot, gen := v.cur, v.gen
	v.mu.RUnlock()

	data, err := v.encode(snapshot)
	if err == nil {
		err = v.m.Set(v.key, data)
	}

	v.mu.Lock()
	if v.gen == gen {
		v.dirty = false
	}
	v.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", v.key, err)
	}
	return nil
}

// Reload re-reads the key from storage, dropping any pending write, and
// notifies observers.
func (v *Value[T]) Reload() {
	v.flushMu.Lock()
	v.debounce.Cancel()
	next := v.load()
	v.mu.Lock()
	v.cur = next
	v.gen++
	v.dirty = false
	v.mu.Unlock()
	v.flushMu.Unlock()
	v.notify(next)
}

// Close cancels the scheduled flush and writes any pending value.
//
// Writes after Close still update memory but are never flushed.
func (v *Value[T]) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()
	v.debounce.Cancel()
	return v.flush(true)
}

// Observe registers fn to be called with the new value after each change.
// The returned function unregisters it.
func (v *Value[T]) Observe(fn func(T)) (cancel func()) {
	v.obsMu.Lock()
	id := v.nextObs
	v.nextObs++
	v.observers[id] = fn
	v.obsMu.Unlock()
	return func() {
		v.obsMu.Lock()
		delete(v.observers, id)
		v.obsMu.Unlock()
	}
}

func (v *Value[T]) notify(val T) {
	v.obsMu.Lock()
	fns := make([]func(T), 0, len(v.observers))
	for _, fn := range v.observers {
		fns = append(fns, fn)
	}
	v.obsMu.Unlock()
	for _, fn := range fns {
		fn(val)
	}
}
