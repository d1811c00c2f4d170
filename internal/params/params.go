// Package params parses and bounds-checks user-supplied transform parameters.
// All validators are pure functions over the raw query strings; mode-specific
// behavior (ceilings, defaults) is passed in rather than duplicated per route.
package params

import (
	"math"
	"strconv"
	"strings"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

const (
	// DefaultQuality is used when no quality parameter is supplied. A
	// request at this quality with no resize is a candidate for the
	// convert short-circuit.
	DefaultQuality = 85

	// MaxConvertDimension bounds explicit convert sizes.
	MaxConvertDimension = 10000

	// MaxThumbnailDimension bounds resolved thumbnail sizes.
	MaxThumbnailDimension = 5000

	// DefaultThumbnailSize is used for thumbnail dimensions that cannot be
	// derived from the source aspect ratio.
	DefaultThumbnailSize = 200
)

// Size is a resolved target geometry.
type Size struct {
	Width  int
	Height int
}

// Quality parses the quality parameter. Absent means DefaultQuality;
// anything else must be an integer in [1,100].
func Quality(s string) (int, error) {
	if s == "" {
		return DefaultQuality, nil
	}

	q, err := strconv.Atoi(s)
	if err != nil || q < 1 || q > 100 {
		return 0, types.NewError(types.KindInvalidParameter, "Quality must be between 1 and 100")
	}

	return q, nil
}

// ExplicitSize parses the convert "size" parameter in WIDTHxHEIGHT form.
// Absent means no resize and returns nil.
func ExplicitSize(s string) (*Size, error) {
	if s == "" {
		return nil, nil
	}

	w, h, found := strings.Cut(s, "x")
	if !found || w == "" || h == "" {
		return nil, types.NewError(types.KindInvalidParameter, "Size must be in format WIDTHxHEIGHT")
	}

	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil ||
		width <= 0 || height <= 0 ||
		width > MaxConvertDimension || height > MaxConvertDimension {
		return nil, types.NewError(types.KindInvalidParameter, "Invalid size parameter")
	}

	return &Size{Width: width, Height: height}, nil
}

// ThumbnailDimensions resolves thumbnail width and height from the raw
// parameters and the source image's natural dimensions. A missing dimension
// is derived from the source aspect ratio; when the natural dimensions are
// unusable it falls back to the fixed default. This is the reason thumbnail
// validation runs after decode, unlike convert.
func ThumbnailDimensions(widthStr, heightStr string, naturalWidth, naturalHeight int) (Size, error) {
	hasWidth := strings.TrimSpace(widthStr) != ""
	hasHeight := strings.TrimSpace(heightStr) != ""

	var width, height int
	var err error

	switch {
	case hasWidth && hasHeight:
		if width, err = parseDimension(widthStr); err != nil {
			return Size{}, err
		}
		if height, err = parseDimension(heightStr); err != nil {
			return Size{}, err
		}

	case hasWidth:
		if width, err = parseDimension(widthStr); err != nil {
			return Size{}, err
		}
		height = derive(width, naturalHeight, naturalWidth)

	case hasHeight:
		if height, err = parseDimension(heightStr); err != nil {
			return Size{}, err
		}
		width = derive(height, naturalWidth, naturalHeight)

	default:
		width, height = DefaultThumbnailSize, DefaultThumbnailSize
	}

	if width <= 0 || height <= 0 ||
		width > MaxThumbnailDimension || height > MaxThumbnailDimension {
		return Size{}, types.NewErrorf(types.KindInvalidParameter,
			"Width and height must be between 1 and %d", MaxThumbnailDimension)
	}

	return Size{Width: width, Height: height}, nil
}

// derive computes the missing dimension from the source aspect ratio, or
// the fixed default when the source dimensions are unavailable.
func derive(given, naturalA, naturalB int) int {
	if naturalA <= 0 || naturalB <= 0 {
		return DefaultThumbnailSize
	}
	return int(math.Round(float64(given) * float64(naturalA) / float64(naturalB)))
}

func parseDimension(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, types.NewErrorf(types.KindInvalidParameter,
			"Width and height must be between 1 and %d", MaxThumbnailDimension)
	}
	return v, nil
}

// Fit parses the fit parameter. Absent means the mode-specific default
// (cover for thumbnails, contain for convert).
func Fit(s string, def types.FitMode) (types.FitMode, error) {
	if s == "" {
		return def, nil
	}

	switch strings.ToLower(s) {
	case "cover":
		return types.FitCover, nil
	case "contain":
		return types.FitContain, nil
	case "fill":
		return types.FitFill, nil
	default:
		return def, types.NewError(types.KindInvalidParameter,
			"Invalid fit method. Use one of: cover, contain, fill")
	}
}

// TargetFormat parses a requested output format name. "jpg" normalizes to
// jpeg. Unknown names fail with an UnsupportedFormat error.
func TargetFormat(s string) (types.Format, error) {
	switch strings.ToLower(s) {
	case "webp":
		return types.FormatWebP, nil
	case "jpeg", "jpg":
		return types.FormatJPEG, nil
	case "png":
		return types.FormatPNG, nil
	case "avif":
		return types.FormatAVIF, nil
	default:
		return types.FormatUnknown, types.NewErrorf(types.KindUnsupportedFormat,
			"Unsupported format: %s. Supported: %s", s, strings.Join(types.SupportedFormatNames, ", "))
	}
}
