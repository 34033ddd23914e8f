package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileExt is appended to each key to form its file name.
const fileExt = ".json"

// absent marks a key known to have no file.
const absent = "-"

// FileStore stores each key as a separate JSON file in one directory.
//
// Layout:
//
//	data_dir/
//	  bgs_users.json            # users collection
//	  bgs_current_user_id.json  # session pointer
//	  bgs_projects.json         # ...
//
// Writes are atomic: the new content is written to a hidden temporary file
// which is then renamed over the key file.
type FileStore struct {
	dir     string
	history *History

	mu     sync.Mutex
	seen   map[string]string // key -> content digest last written or observed by this process
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewFileStore initializes a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		seen: make(map[string]string),
		stop: make(chan struct{}),
	}, nil
}

// Dir returns the directory holding the key files.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// SetHistory enables committing every write to h.
func (fs *FileStore) SetHistory(h *History) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.history = h
}

// History returns the attached history, if any.
func (fs *FileStore) History() *History {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.history
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dir, key+fileExt)
}

// Get implements Medium.
func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Set implements Medium.
func (fs *FileStore) Set(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errClosed
	}

	f, err := os.CreateTemp(fs.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmp := f.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmp)
	}()
	if _, err := f.Write(value); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	// Record before the rename so the watcher never reports our own write.
	prev, hadPrev := fs.seen[key]
	fs.seen[key] = digest(value)
	if err := os.Rename(tmp, fs.path(key)); err != nil {
		if hadPrev {
			fs.seen[key] = prev
		} else {
			delete(fs.seen, key)
		}
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	fs.commitLocked(key, "update "+key)
	return nil
}

// Remove implements Medium.
func (fs *FileStore) Remove(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errClosed
	}
	fs.seen[key] = absent
	if err := os.Remove(fs.path(key)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	fs.commitLocked(key, "remove "+key)
	return nil
}

func (fs *FileStore) commitLocked(key, msg string) {
	if fs.history == nil {
		return
	}
	// The write itself succeeded; a history failure must not undo it.
	if err := fs.history.Commit(key+fileExt, msg); err != nil {
		slog.Warn("failed to record history", "key", key, "err", err)
	}
}

// Keys implements Medium.
func (fs *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromFile(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close implements Medium. It stops all watchers started with Watch.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return nil
	}
	fs.closed = true
	close(fs.stop)
	fs.mu.Unlock()
	fs.wg.Wait()
	return nil
}

// Watch implements Watcher using fsnotify on the data directory.
func (fs *FileStore) Watch(ctx context.Context, fn func(key string)) error {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return errClosed
	}
	fs.wg.Add(1)
	fs.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		fs.wg.Done()
		return err
	}
	if err := w.Add(fs.dir); err != nil {
		_ = w.Close()
		fs.wg.Done()
		return err
	}
	go func() {
		defer fs.wg.Done()
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-fs.stop:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if key, changed := fs.handleEvent(event); changed {
					fn(key)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching data directory", "dir", fs.dir, "err", err)
			}
		}
	}()
	return nil
}

// handleEvent reports whether event reflects a change this process did not make.
func (fs *FileStore) handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	key, ok := keyFromFile(filepath.Base(event.Name))
	if !ok {
		return "", false
	}
	state := absent
	if data, err := os.ReadFile(fs.path(key)); err == nil {
		state = digest(data)
	} else if !os.IsNotExist(err) {
		slog.Warn("failed to read changed key", "key", key, "err", err)
		return "", false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.seen[key] == state {
		return "", false
	}
	fs.seen[key] = state
	return key, true
}

func keyFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(name, fileExt)
	if ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}

func digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
