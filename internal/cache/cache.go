// Package cache provides the response cache backends for GET requests.
package cache

import (
	"context"
	"net/http"
	"time"
)

// Entry is a cached HTTP response. Stored entries are complete and
// deterministic for a given URL, so a last-writer-wins race on population
// is benign.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Store is the key/value capability consumed by the response cache layer.
// Keys are normalized request URLs.
type Store interface {
	// Get returns the cached entry for key, or false on a miss. Expired
	// entries are misses.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Set stores an entry under key, replacing any previous value.
	Set(ctx context.Context, key string, entry *Entry) error
}
