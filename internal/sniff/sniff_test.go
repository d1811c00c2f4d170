package sniff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

func pad(header []byte) []byte {
	buf := make([]byte, headerLen)
	copy(buf, header)
	return buf
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want types.Format
	}{
		{
			name: "png",
			data: pad([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}),
			want: types.FormatPNG,
		},
		{
			name: "jpeg",
			data: pad([]byte{0xFF, 0xD8, 0xFF, 0xE0}),
			want: types.FormatJPEG,
		},
		{
			name: "webp",
			data: []byte("RIFF\x24\x00\x00\x00WEBP"),
			want: types.FormatWebP,
		},
		{
			name: "avif",
			data: []byte("\x00\x00\x00\x1Cftypavif"),
			want: types.FormatAVIF,
		},
		{
			name: "riff without webp tag",
			data: []byte("RIFF\x24\x00\x00\x00WAVE"),
			want: types.FormatUnknown,
		},
		{
			name: "ftyp with non-avif brand",
			data: []byte("\x00\x00\x00\x1Cftypheic"),
			want: types.FormatUnknown,
		},
		{
			name: "arbitrary text",
			data: []byte("<!DOCTYPE html>"),
			want: types.FormatUnknown,
		},
		{
			name: "empty",
			data: nil,
			want: types.FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.data))
		})
	}
}

func TestDetectShortBuffer(t *testing.T) {
	// A valid PNG signature is still unknown when the buffer is shorter
	// than the 12 bytes needed to rule out the container formats.
	short := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00}
	assert.Equal(t, types.FormatUnknown, Detect(short))

	assert.Equal(t, types.FormatUnknown, Detect(short[:0]))
	assert.Equal(t, types.FormatUnknown, Detect(short[:1]))
}

func TestDetectCorruptedSignature(t *testing.T) {
	valid := pad([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})

	for i := range 4 {
		corrupted := append([]byte(nil), valid...)
		corrupted[i] ^= 0xFF
		assert.NotEqual(t, types.FormatPNG, Detect(corrupted), "byte %d", i)
	}
}
