package codec

import (
	"math"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// FitDimensions resolves the output geometry for mapping a srcW×srcH image
// into a targetW×targetH box under the given fit mode. Cover and fill
// produce the exact box (cover crops, fill stretches); contain scales by
// the smaller axis factor so the whole image fits inside the box.
func FitDimensions(srcW, srcH, targetW, targetH int, fit types.FitMode) (int, int) {
	if fit != types.FitContain {
		return targetW, targetH
	}

	if srcW <= 0 || srcH <= 0 {
		return targetW, targetH
	}

	scale := min(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))

	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))

	return max(w, 1), max(h, 1)
}
