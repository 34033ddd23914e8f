package jsonldb

import (
	"errors"

	"github.com/maruel/ksid"
)

// errNoChange aborts a TryUpdate without reporting an error to the caller.
var errNoChange = errors.New("no change")

// NewID returns a new time-sortable entity id.
//
// Ids are unique within a process even when generated in the same
// millisecond, and never derive from the size of a collection.
func NewID() string {
	return ksid.NewID().String()
}
