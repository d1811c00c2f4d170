// Package codec gates access to the image codec capability: per-format
// decode/encode plus resize, each behind a one-time initialization managed
// by the Registry. The pixel-level work itself is delegated to libvips.
package codec

import (
	"context"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// Raster is a decoded image: the working byte buffer plus its pixel
// dimensions. Values are immutable; every transformation stage returns a
// new Raster rather than mutating its input.
type Raster struct {
	Data   []byte
	Format types.Format
	Width  int
	Height int
}

// Engine is the codec capability consumed by the transformation pipeline.
// Callers must confirm readiness via Registry.EnsureReady for the matching
// format and operation before each call.
type Engine interface {
	// Decode validates the compressed buffer and yields a Raster carrying
	// the image's natural dimensions.
	Decode(ctx context.Context, data []byte, format types.Format) (*Raster, error)

	// Resize maps the raster into the target box according to the fit mode.
	Resize(ctx context.Context, r *Raster, width, height int, fit types.FitMode) (*Raster, error)

	// Encode produces the output bytes in the target format at the given
	// quality (1-100).
	Encode(ctx context.Context, r *Raster, format types.Format, quality int) ([]byte, error)
}
