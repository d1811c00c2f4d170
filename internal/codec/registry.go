package codec

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// Op identifies a codec operation whose capability needs one-time setup.
type Op int

// Codec operations.
const (
	OpDecode Op = iota
	OpEncode
	OpResize
)

// String returns the operation name for keys and logging.
func (o Op) String() string {
	switch o {
	case OpDecode:
		return "decode"
	case OpEncode:
		return "encode"
	default:
		return "resize"
	}
}

// SetupFunc performs the one-time initialization for a capability. It runs
// at most once per capability per process lifetime.
type SetupFunc func(format types.Format, op Op) error

// Registry tracks codec capability readiness across the process lifetime.
// Each {format, operation} pair is initialized at most once: concurrent
// first callers are collapsed by a single-flight guard, and the outcome
// (success or failure) is memoized so it is never retried. Retrying a
// failed one-time setup would fail identically for the rest of the process
// life, so the first error is the permanent answer.
type Registry struct {
	setup SetupFunc
	group singleflight.Group

	mu      sync.RWMutex
	outcome map[string]error

	setups atomic.Int64
}

// NewRegistry creates a Registry using the given setup function.
func NewRegistry(setup SetupFunc) *Registry {
	return &Registry{
		setup:   setup,
		outcome: make(map[string]error),
	}
}

// capabilityKey canonicalizes the capability identity. Resize is a single
// format-agnostic capability, so its key ignores the format.
func capabilityKey(format types.Format, op Op) string {
	if op == OpResize {
		return "resize"
	}
	return fmt.Sprintf("%s/%s", format, op)
}

// EnsureReady confirms the capability for the given format and operation is
// initialized, performing the one-time setup if this is the first request.
// All concurrent callers for the same capability observe the same outcome.
func (r *Registry) EnsureReady(format types.Format, op Op) error {
	key := capabilityKey(format, op)

	r.mu.RLock()
	err, done := r.outcome[key]
	r.mu.RUnlock()
	if done {
		return err
	}

	_, initErr, _ := r.group.Do(key, func() (any, error) {
		// Re-check under the flight: a previous flight may have completed
		// between the read lock release and Do.
		r.mu.RLock()
		err, done := r.outcome[key]
		r.mu.RUnlock()
		if done {
			return nil, err
		}

		r.setups.Add(1)
		err = r.setup(format, op)

		r.mu.Lock()
		r.outcome[key] = err
		r.mu.Unlock()

		return nil, err
	})

	return initErr
}

// Setups returns the number of underlying setup invocations performed.
func (r *Registry) Setups() int64 {
	return r.setups.Load()
}
