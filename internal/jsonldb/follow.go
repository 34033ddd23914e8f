package jsonldb

import (
	"context"
	"log/slog"

	"github.com/maruel/bgstudio/internal/storage"
)

// Follow reloads each value when another process changes its key.
//
// It returns once the watch is established; following stops when ctx is
// canceled.
func Follow(ctx context.Context, w storage.Watcher, rs ...Reloader) error {
	byKey := make(map[string][]Reloader, len(rs))
	for _, r := range rs {
		byKey[r.Key()] = append(byKey[r.Key()], r)
	}
	return w.Watch(ctx, func(key string) {
		targets := byKey[key]
		if len(targets) == 0 {
			return
		}
		slog.DebugContext(ctx, "Reloading after external change", "key", key)
		for _, r := range targets {
			r.Reload()
		}
	})
}
