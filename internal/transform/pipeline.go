// Package transform orchestrates the request-to-image pipeline: format
// detection, short-circuit check, decode, optional resize, and encode.
package transform

import (
	"context"
	"log/slog"

	"github.com/oszuidwest/zwfm-imageproxy/internal/codec"
	"github.com/oszuidwest/zwfm-imageproxy/internal/params"
	"github.com/oszuidwest/zwfm-imageproxy/internal/sniff"
	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// Pipeline sequences codec operations for convert and thumbnail requests.
// It owns no state of its own; the only cross-request state is the codec
// readiness registry.
type Pipeline struct {
	engine   codec.Engine
	registry *codec.Registry
}

// New creates a Pipeline around the given codec engine and registry.
func New(engine codec.Engine, registry *codec.Registry) *Pipeline {
	return &Pipeline{engine: engine, registry: registry}
}

// ConvertRequest is a validated format conversion intent.
type ConvertRequest struct {
	Target  types.Format
	Quality int
	Size    *params.Size // nil means no resize
}

// ThumbnailRequest is a thumbnail intent. Width and Height stay raw because
// adaptive completion needs the source's natural dimensions, which are only
// known after decode.
type ThumbnailRequest struct {
	Width   string
	Height  string
	Fit     types.FitMode
	Quality int
}

// Result is the outcome of a successful transformation.
type Result struct {
	Data         []byte
	Format       types.Format
	Width        int
	Height       int
	OriginalSize int
	ShortCircuit bool
}

// Convert transforms the source into the target format, optionally resizing
// to an explicit size with contain semantics. When the source is already in
// the target format and neither size nor a non-default quality was
// requested, the original bytes are returned unmodified: re-encoding would
// waste CPU and degrade quality through re-compression.
func (p *Pipeline) Convert(ctx context.Context, data []byte, req ConvertRequest) (*Result, error) {
	format := sniff.Detect(data)
	if format == types.FormatUnknown {
		return nil, types.NewError(types.KindUnsupportedFormat, "Unsupported image format")
	}

	if format == req.Target && req.Size == nil && req.Quality == params.DefaultQuality {
		slog.Debug("Conversion short-circuited", "format", format, "size", len(data))
		return &Result{
			Data:         data,
			Format:       req.Target,
			OriginalSize: len(data),
			ShortCircuit: true,
		}, nil
	}

	if err := p.registry.EnsureReady(format, codec.OpDecode); err != nil {
		return nil, err
	}
	raster, err := p.engine.Decode(ctx, data, format)
	if err != nil {
		return nil, err
	}

	if req.Size != nil {
		if err := p.registry.EnsureReady(format, codec.OpResize); err != nil {
			return nil, err
		}
		raster, err = p.engine.Resize(ctx, raster, req.Size.Width, req.Size.Height, types.FitContain)
		if err != nil {
			return nil, err
		}
	}

	if err := p.registry.EnsureReady(req.Target, codec.OpEncode); err != nil {
		return nil, err
	}
	out, err := p.engine.Encode(ctx, raster, req.Target, req.Quality)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:         out,
		Format:       req.Target,
		Width:        raster.Width,
		Height:       raster.Height,
		OriginalSize: len(data),
	}, nil
}

// Thumbnail produces a fitted WebP thumbnail. Decode always runs because
// adaptive dimension completion needs the natural size, and the output is
// always re-encoded; there is deliberately no short-circuit here.
func (p *Pipeline) Thumbnail(ctx context.Context, data []byte, req ThumbnailRequest) (*Result, error) {
	format := sniff.Detect(data)
	if format == types.FormatUnknown {
		return nil, types.NewError(types.KindUnsupportedFormat, "Unsupported image format")
	}

	if err := p.registry.EnsureReady(format, codec.OpDecode); err != nil {
		return nil, err
	}
	raster, err := p.engine.Decode(ctx, data, format)
	if err != nil {
		return nil, err
	}

	size, err := params.ThumbnailDimensions(req.Width, req.Height, raster.Width, raster.Height)
	if err != nil {
		return nil, err
	}

	if err := p.registry.EnsureReady(format, codec.OpResize); err != nil {
		return nil, err
	}
	raster, err = p.engine.Resize(ctx, raster, size.Width, size.Height, req.Fit)
	if err != nil {
		return nil, err
	}

	if err := p.registry.EnsureReady(types.FormatWebP, codec.OpEncode); err != nil {
		return nil, err
	}
	out, err := p.engine.Encode(ctx, raster, types.FormatWebP, req.Quality)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:         out,
		Format:       types.FormatWebP,
		Width:        size.Width,
		Height:       size.Height,
		OriginalSize: len(data),
	}, nil
}
