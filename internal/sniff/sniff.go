// Package sniff classifies image buffers by magic-number inspection.
package sniff

import (
	"bytes"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// headerLen is the minimum number of bytes needed to classify a buffer.
// Shorter buffers are unknown by definition, never an error.
const headerLen = 12

var (
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegSOI      = []byte{0xFF, 0xD8, 0xFF}
	riffTag      = []byte("RIFF")
	webpTag      = []byte("WEBP")
	ftypBox      = []byte("ftyp")
	avifBrand    = []byte("avif")
)

// Detect classifies raw image data by its header bytes. It never decodes;
// a buffer matching none of the known signatures yields FormatUnknown.
func Detect(data []byte) types.Format {
	if len(data) < headerLen {
		return types.FormatUnknown
	}

	if bytes.HasPrefix(data, pngSignature) {
		return types.FormatPNG
	}

	if bytes.HasPrefix(data, jpegSOI) {
		return types.FormatJPEG
	}

	// WebP: RIFF container with a WEBP tag at offset 8.
	if bytes.HasPrefix(data, riffTag) && bytes.Equal(data[8:12], webpTag) {
		return types.FormatWebP
	}

	// AVIF: ftyp box at offset 4 with an avif brand at offset 8.
	if bytes.Equal(data[4:8], ftypBox) && bytes.Equal(data[8:12], avifBrand) {
		return types.FormatAVIF
	}

	return types.FormatUnknown
}
