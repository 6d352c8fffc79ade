package idgen

import (
	"github.com/oklog/ulid/v2"
)

// MustGenerateSortableID returns a lexically sortable ULID string.
// ulid.Make draws from a process-wide monotonic entropy source, so IDs
// generated within the same millisecond still sort in creation order.
func MustGenerateSortableID() string {
	return ulid.Make().String()
}
