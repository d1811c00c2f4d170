package cache

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(body string) *Entry {
	header := make(http.Header)
	header.Set("Content-Type", "image/webp")
	return &Entry{
		Status:   http.StatusOK,
		Header:   header,
		Body:     []byte(body),
		StoredAt: time.Now(),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(8, time.Minute)

	_, ok := store.Get(t.Context(), "/thumb?width=100")
	assert.False(t, ok)

	entry := testEntry("webp bytes")
	require.NoError(t, store.Set(t.Context(), "/thumb?width=100", entry))

	got, ok := store.Get(t.Context(), "/thumb?width=100")
	require.True(t, ok)
	assert.Equal(t, entry.Body, got.Body)
	assert.Equal(t, "image/webp", got.Header.Get("Content-Type"))
	assert.Equal(t, http.StatusOK, got.Status)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(8, 20*time.Millisecond)
	require.NoError(t, store.Set(t.Context(), "key", testEntry("short-lived")))

	_, ok := store.Get(t.Context(), "key")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := store.Get(t.Context(), "key")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreEviction(t *testing.T) {
	store := NewMemoryStore(2, time.Minute)

	require.NoError(t, store.Set(t.Context(), "a", testEntry("a")))
	require.NoError(t, store.Set(t.Context(), "b", testEntry("b")))
	require.NoError(t, store.Set(t.Context(), "c", testEntry("c")))

	assert.Equal(t, 2, store.Len())

	// The oldest entry is the one evicted.
	_, ok := store.Get(t.Context(), "a")
	assert.False(t, ok)
	_, ok = store.Get(t.Context(), "c")
	assert.True(t, ok)
}
