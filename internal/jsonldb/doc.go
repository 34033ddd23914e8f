// Package jsonldb provides generic JSON-backed keyed stores with an in-memory
// cache and debounced write-back.
//
// # Overview
//
// [Value] wraps one storage key: it parses the persisted JSON once, serves
// reads from memory and coalesces bursts of writes into a single flush.
// [Collection] builds entity helpers (lookup by id, append, modify, delete)
// on top of a Value holding a JSON array.
//
// # Durability
//
// Memory is updated synchronously; storage is updated after the debounce
// interval elapses with no further write. Only the last value of a burst is
// serialized. [Value.Close] flushes a pending write before returning, so a
// clean shutdown loses nothing; a crash inside the debounce window loses every
// write of that window.
//
// # Cross-process changes
//
// [Follow] connects values to a [storage.Watcher] so that a change made by
// another process reloads the in-memory copy. Concurrent writers are not
// reconciled: the last flush wins.
package jsonldb
