package codec

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

func TestRegistrySetupRunsOnce(t *testing.T) {
	registry := NewRegistry(func(types.Format, Op) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	const callers = 50
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = registry.EnsureReady(types.FormatWebP, OpDecode)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), registry.Setups())

	// Later callers hit the memoized outcome.
	require.NoError(t, registry.EnsureReady(types.FormatWebP, OpDecode))
	assert.Equal(t, int64(1), registry.Setups())
}

func TestRegistryFailureIsPermanent(t *testing.T) {
	setupErr := errors.New("avif support missing")
	registry := NewRegistry(func(types.Format, Op) error {
		return setupErr
	})

	err := registry.EnsureReady(types.FormatAVIF, OpEncode)
	require.ErrorIs(t, err, setupErr)

	// The failure is memoized, not retried.
	err = registry.EnsureReady(types.FormatAVIF, OpEncode)
	require.ErrorIs(t, err, setupErr)
	assert.Equal(t, int64(1), registry.Setups())
}

func TestRegistryCapabilitiesAreIndependent(t *testing.T) {
	var keys []string
	registry := NewRegistry(func(format types.Format, op Op) error {
		keys = append(keys, capabilityKey(format, op))
		return nil
	})

	require.NoError(t, registry.EnsureReady(types.FormatPNG, OpDecode))
	require.NoError(t, registry.EnsureReady(types.FormatPNG, OpEncode))
	require.NoError(t, registry.EnsureReady(types.FormatWebP, OpDecode))

	assert.Equal(t, int64(3), registry.Setups())
	assert.Equal(t, []string{"png/decode", "png/encode", "webp/decode"}, keys)
}

func TestRegistryResizeIsFormatAgnostic(t *testing.T) {
	registry := NewRegistry(func(types.Format, Op) error { return nil })

	require.NoError(t, registry.EnsureReady(types.FormatPNG, OpResize))
	require.NoError(t, registry.EnsureReady(types.FormatJPEG, OpResize))
	require.NoError(t, registry.EnsureReady(types.FormatWebP, OpResize))

	assert.Equal(t, int64(1), registry.Setups())
}
