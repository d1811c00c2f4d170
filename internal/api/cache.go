package api

import (
	"bytes"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-imageproxy/internal/cache"
)

// cacheWriteTimeout bounds a single background cache population.
const cacheWriteTimeout = 30 * time.Second

// cacheKey normalizes the request URL: path plus the query re-encoded with
// sorted keys, so parameter order does not fragment the cache.
func cacheKey(r *http.Request) string {
	query := r.URL.Query().Encode()
	if query == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + query
}

// cacheMiddleware is the read-through/write-through response cache for GET
// requests. POST uploads bypass it entirely in both directions: their
// bodies are not part of the key, so caching them would conflate distinct
// payloads sharing a URL. Population happens in the background and only
// for status 200, so the caller never waits on the store.
func (s *Server) cacheMiddleware(next http.Handler) http.Handler {
	store := s.service.CacheStore()
	if store == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := cacheKey(r)

		if entry, ok := store.Get(r.Context(), key); ok {
			writeEntry(w, entry)
			return
		}

		rec := newRecorder()
		next.ServeHTTP(rec, r)

		maps.Copy(w.Header(), rec.header)
		w.WriteHeader(rec.status)
		if _, err := w.Write(rec.body.Bytes()); err != nil {
			slog.Debug("Failed to write response to client", "error", err)
		}

		if rec.status != http.StatusOK {
			return
		}

		entry := &cache.Entry{
			Status:   rec.status,
			Header:   rec.header.Clone(),
			Body:     bytes.Clone(rec.body.Bytes()),
			StoredAt: time.Now(),
		}

		s.service.Runner().Go(func() {
			ctx, cancel := s.service.Runner().Context(cacheWriteTimeout)
			defer cancel()

			if err := store.Set(ctx, key, entry); err != nil {
				slog.Warn("Failed to store cached response", "key", key, "error", err)
			}
		})
	})
}

// writeEntry replays a cached response verbatim.
func writeEntry(w http.ResponseWriter, entry *cache.Entry) {
	maps.Copy(w.Header(), entry.Header)
	w.WriteHeader(entry.Status)
	if _, err := w.Write(entry.Body); err != nil {
		slog.Debug("Failed to write cached response to client", "error", err)
	}
}

// recorder buffers a downstream response so it can be both replayed to the
// caller and stored in the cache.
type recorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newRecorder() *recorder {
	return &recorder{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
}

func (r *recorder) Write(p []byte) (int, error) {
	return r.body.Write(p)
}
