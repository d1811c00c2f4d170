package codec

import (
	"context"
	"log/slog"

	"github.com/h2non/bimg"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// VipsEngine implements Engine on top of libvips via bimg. Decoding is
// lazy inside libvips; Decode therefore validates the buffer and reads the
// natural dimensions, and the pixel work happens in Resize/Encode.
type VipsEngine struct{}

// NewVipsEngine returns the libvips-backed codec engine.
func NewVipsEngine() *VipsEngine {
	slog.Info("Codec engine initialized", "backend", "libvips", "version", bimg.VipsVersion)
	return &VipsEngine{}
}

// VipsSetup is the production SetupFunc for the capability registry. It
// verifies once per capability that the linked libvips build supports the
// format; the error is terminal for the process lifetime.
func VipsSetup(format types.Format, op Op) error {
	if op == OpResize {
		return nil
	}

	if !bimg.IsTypeSupported(bimgType(format)) {
		return types.NewErrorf(types.KindInternalFault,
			"image format %s is not supported by the linked libvips build", format)
	}

	return nil
}

func bimgType(f types.Format) bimg.ImageType {
	switch f {
	case types.FormatJPEG:
		return bimg.JPEG
	case types.FormatPNG:
		return bimg.PNG
	case types.FormatWebP:
		return bimg.WEBP
	case types.FormatAVIF:
		return bimg.AVIF
	default:
		return bimg.UNKNOWN
	}
}

// Decode validates the compressed buffer and extracts its natural pixel
// dimensions. A sniffed-but-undecodable buffer indicates corruption and is
// reported as a decode failure.
func (e *VipsEngine) Decode(_ context.Context, data []byte, format types.Format) (*Raster, error) {
	size, err := bimg.NewImage(data).Size()
	if err != nil {
		return nil, types.WrapError(types.KindDecodeFailed, "Failed to decode image", err)
	}

	return &Raster{
		Data:   data,
		Format: format,
		Width:  size.Width,
		Height: size.Height,
	}, nil
}

// Resize maps the raster into the target box. Cover crops from the centre,
// contain pre-computes the aspect-preserving geometry, fill forces the
// exact box.
func (e *VipsEngine) Resize(_ context.Context, r *Raster, width, height int, fit types.FitMode) (*Raster, error) {
	outW, outH := FitDimensions(r.Width, r.Height, width, height, fit)

	opts := bimg.Options{
		Width:   outW,
		Height:  outH,
		Enlarge: true,
	}

	switch fit {
	case types.FitCover:
		opts.Crop = true
		opts.Gravity = bimg.GravityCentre
	default:
		// Contain geometry is already aspect-correct; fill is exact by
		// request. Both force the computed box.
		opts.Force = true
	}

	out, err := bimg.NewImage(r.Data).Process(opts)
	if err != nil {
		return nil, types.WrapError(types.KindResizeFailed, "Failed to resize image", err)
	}

	return &Raster{
		Data:   out,
		Format: r.Format,
		Width:  outW,
		Height: outH,
	}, nil
}

// Encode produces the output bytes in the target format at the given quality.
func (e *VipsEngine) Encode(_ context.Context, r *Raster, format types.Format, quality int) ([]byte, error) {
	out, err := bimg.NewImage(r.Data).Process(bimg.Options{
		Type:    bimgType(format),
		Quality: quality,
	})
	if err != nil {
		return nil, types.WrapError(types.KindEncodeFailed, "Failed to encode image", err)
	}

	return out, nil
}
