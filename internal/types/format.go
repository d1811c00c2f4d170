package types

// Format identifies one of the supported image container formats. It is a
// closed enumeration: everything the pipeline cannot classify is
// FormatUnknown, which callers must treat as a validation failure.
type Format int

// Supported image formats.
const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
	FormatAVIF
)

// SupportedFormatNames lists the accepted target format names, in the order
// used for error messages. "jpg" is accepted as an alias for "jpeg".
var SupportedFormatNames = []string{"webp", "jpeg", "jpg", "png", "avif"}

// String returns the canonical lowercase format name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatAVIF:
		return "avif"
	default:
		return "unknown"
	}
}

// ContentType returns the MIME type for HTTP responses.
func (f Format) ContentType() string {
	return "image/" + f.String()
}

// FitMode is the policy for mapping a source image into a target box.
type FitMode int

const (
	// FitCover scales to fill the box preserving aspect ratio, cropping
	// whatever falls outside it.
	FitCover FitMode = iota
	// FitContain scales to fit inside the box preserving aspect ratio.
	FitContain
	// FitFill stretches to the exact box, ignoring aspect ratio.
	FitFill
)

// String returns the lowercase fit mode name.
func (m FitMode) String() string {
	switch m {
	case FitContain:
		return "contain"
	case FitFill:
		return "fill"
	default:
		return "cover"
	}
}
