package transform

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"github.com/oszuidwest/zwfm-imageproxy/internal/codec"
	"github.com/oszuidwest/zwfm-imageproxy/internal/params"
	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// stubEngine is a pure-Go engine for pipeline tests. It decodes with the
// standard image codecs, scales with x/image, and always emits PNG; the
// tests care about orchestration and geometry, not encoder output.
type stubEngine struct {
	decodes atomic.Int32
	resizes atomic.Int32
	encodes atomic.Int32
}

func (e *stubEngine) Decode(_ context.Context, data []byte, format types.Format) (*codec.Raster, error) {
	e.decodes.Add(1)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, types.WrapError(types.KindDecodeFailed, "Failed to decode image", err)
	}

	return &codec.Raster{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func (e *stubEngine) Resize(_ context.Context, r *codec.Raster, width, height int, fit types.FitMode) (*codec.Raster, error) {
	e.resizes.Add(1)

	src, _, err := image.Decode(bytes.NewReader(r.Data))
	if err != nil {
		return nil, types.WrapError(types.KindResizeFailed, "Failed to resize image", err)
	}

	outW, outH := codec.FitDimensions(r.Width, r.Height, width, height, fit)
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, types.WrapError(types.KindResizeFailed, "Failed to resize image", err)
	}

	return &codec.Raster{Data: buf.Bytes(), Format: r.Format, Width: outW, Height: outH}, nil
}

func (e *stubEngine) Encode(_ context.Context, r *codec.Raster, format types.Format, quality int) ([]byte, error) {
	e.encodes.Add(1)

	src, _, err := image.Decode(bytes.NewReader(r.Data))
	if err != nil {
		return nil, types.WrapError(types.KindEncodeFailed, "Failed to encode image", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, types.WrapError(types.KindEncodeFailed, "Failed to encode image", err)
	}
	return buf.Bytes(), nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *stubEngine, *codec.Registry) {
	t.Helper()
	engine := &stubEngine{}
	registry := codec.NewRegistry(func(types.Format, codec.Op) error { return nil })
	return New(engine, registry), engine, registry
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestConvertShortCircuit(t *testing.T) {
	pipeline, engine, registry := newTestPipeline(t)
	src := encodePNG(t, 10, 10)

	result, err := pipeline.Convert(t.Context(), src, ConvertRequest{
		Target:  types.FormatPNG,
		Quality: params.DefaultQuality,
	})
	require.NoError(t, err)

	assert.True(t, result.ShortCircuit)
	assert.Equal(t, src, result.Data)
	assert.Equal(t, types.FormatPNG, result.Format)
	assert.Equal(t, len(src), result.OriginalSize)

	// The codec is never touched on the short-circuit path.
	assert.Zero(t, engine.decodes.Load())
	assert.Zero(t, engine.encodes.Load())
	assert.Zero(t, registry.Setups())
}

func TestConvertFormatChange(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)
	src := encodeJPEG(t, 20, 10)

	result, err := pipeline.Convert(t.Context(), src, ConvertRequest{
		Target:  types.FormatPNG,
		Quality: 50,
	})
	require.NoError(t, err)

	assert.False(t, result.ShortCircuit)
	assert.Equal(t, types.FormatPNG, result.Format)
	assert.Equal(t, 20, result.Width)
	assert.Equal(t, 10, result.Height)

	w, h := decodedSize(t, result.Data)
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)

	assert.Equal(t, int32(1), engine.decodes.Load())
	assert.Zero(t, engine.resizes.Load())
	assert.Equal(t, int32(1), engine.encodes.Load())
}

func TestConvertSameFormatNonDefaultQuality(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)
	src := encodePNG(t, 10, 10)

	result, err := pipeline.Convert(t.Context(), src, ConvertRequest{
		Target:  types.FormatPNG,
		Quality: 50,
	})
	require.NoError(t, err)

	// An explicit quality disables the short-circuit even without a
	// format change.
	assert.False(t, result.ShortCircuit)
	assert.Equal(t, int32(1), engine.decodes.Load())
	assert.Equal(t, int32(1), engine.encodes.Load())
}

func TestConvertExplicitResize(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)
	src := encodePNG(t, 100, 50)

	result, err := pipeline.Convert(t.Context(), src, ConvertRequest{
		Target:  types.FormatPNG,
		Quality: params.DefaultQuality,
		Size:    &params.Size{Width: 40, Height: 40},
	})
	require.NoError(t, err)

	// Convert resizes with contain semantics, so a 100x50 source lands
	// at 40x20 inside the 40x40 box.
	assert.Equal(t, 40, result.Width)
	assert.Equal(t, 20, result.Height)
	assert.Equal(t, int32(1), engine.resizes.Load())

	w, h := decodedSize(t, result.Data)
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}

func TestConvertUnknownInput(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)

	_, err := pipeline.Convert(t.Context(), bytes.Repeat([]byte{0xAB}, 64), ConvertRequest{
		Target:  types.FormatPNG,
		Quality: params.DefaultQuality,
	})
	requirePipelineKind(t, err, types.KindUnsupportedFormat)
	assert.Zero(t, engine.decodes.Load())
}

func TestConvertSetupFailure(t *testing.T) {
	setupErr := errors.New("libvips missing webp support")
	engine := &stubEngine{}
	registry := codec.NewRegistry(func(types.Format, codec.Op) error { return setupErr })
	pipeline := New(engine, registry)

	_, err := pipeline.Convert(t.Context(), encodePNG(t, 10, 10), ConvertRequest{
		Target:  types.FormatWebP,
		Quality: params.DefaultQuality,
	})
	require.ErrorIs(t, err, setupErr)
	assert.Zero(t, engine.decodes.Load())
}

func TestThumbnailAdaptiveWidth(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)
	src := encodePNG(t, 800, 400)

	result, err := pipeline.Thumbnail(t.Context(), src, ThumbnailRequest{
		Width:   "200",
		Fit:     types.FitCover,
		Quality: params.DefaultQuality,
	})
	require.NoError(t, err)

	assert.Equal(t, types.FormatWebP, result.Format)
	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 100, result.Height)
	assert.Equal(t, len(src), result.OriginalSize)

	assert.Equal(t, int32(1), engine.decodes.Load())
	assert.Equal(t, int32(1), engine.resizes.Load())
	assert.Equal(t, int32(1), engine.encodes.Load())
}

func TestThumbnailDefaults(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)
	src := encodePNG(t, 800, 400)

	result, err := pipeline.Thumbnail(t.Context(), src, ThumbnailRequest{
		Fit:     types.FitCover,
		Quality: params.DefaultQuality,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, result.Width)
	assert.Equal(t, 200, result.Height)
}

func TestThumbnailNeverShortCircuits(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)
	src := encodePNG(t, 200, 200)

	// Same geometry, default quality: convert would short-circuit, but
	// thumbnails are always re-encoded to WebP.
	result, err := pipeline.Thumbnail(t.Context(), src, ThumbnailRequest{
		Width:   "200",
		Height:  "200",
		Fit:     types.FitCover,
		Quality: params.DefaultQuality,
	})
	require.NoError(t, err)

	assert.False(t, result.ShortCircuit)
	assert.Equal(t, int32(1), engine.encodes.Load())
}

func TestThumbnailDimensionCeiling(t *testing.T) {
	pipeline, engine, _ := newTestPipeline(t)
	src := encodePNG(t, 800, 400)

	_, err := pipeline.Thumbnail(t.Context(), src, ThumbnailRequest{
		Width:   "5001",
		Fit:     types.FitCover,
		Quality: params.DefaultQuality,
	})
	requirePipelineKind(t, err, types.KindInvalidParameter)

	// Validation needs the natural dimensions, so decode has already run
	// by the time the ceiling check fails.
	assert.Equal(t, int32(1), engine.decodes.Load())
	assert.Zero(t, engine.resizes.Load())
	assert.Zero(t, engine.encodes.Load())
}

func TestThumbnailUnknownInput(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t)

	_, err := pipeline.Thumbnail(t.Context(), []byte("definitely not an image"), ThumbnailRequest{
		Fit:     types.FitCover,
		Quality: params.DefaultQuality,
	})
	requirePipelineKind(t, err, types.KindUnsupportedFormat)
}

func requirePipelineKind(t *testing.T, err error, kind types.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var perr *types.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, kind, perr.Kind)
}
