// Package nearlossless adjusts pixel values ahead of a lossless encode so that
// the result compresses better, with a guaranteed bound on the deviation of
// every channel from the source.
//
// Each channel is quantized to a multiple of 1<<bits (or to 255) using
// banker's rounding, except on the picture border and in smooth areas where
// the 4-connected neighbours are already within the limit. Processing runs
// one pass per level from the strongest down to 1.
package nearlossless

import "image"

const (
	// MinDim is the smallest width or height for which preprocessing runs.
	// Smaller pictures are encoded exactly.
	MinDim = 64
	// maxLimitBits is the strongest quantization level.
	maxLimitBits = 5
	// MaxLevel disables preprocessing (plain lossless).
	MaxLevel = 100
)

// Bits returns the quantization level for a near-lossless strength:
//
//	100     -> 0
//	80..99  -> 1
//	60..79  -> 2
//	40..59  -> 3
//	20..39  -> 4
//	 0..19  -> 5
func Bits(level int) int {
	if level < 0 {
		level = 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return maxLimitBits - level/20
}

// quantize rounds v to the closest multiple of 1<<bits, or 255.
func quantize(v uint8, bits uint) uint8 {
	mask := uint32(1)<<bits - 1
	a := uint32(v)
	biased := a + mask>>1 + (a>>bits)&1
	if biased > 0xff {
		return 0xff
	}
	return uint8(biased &^ mask)
}

// isNear reports whether every channel of the pixels at offsets i and j is
// strictly closer than limit.
func isNear(a []uint8, i int, b []uint8, j int, limit int) bool {
	for k := 0; k < 4; k++ {
		d := int(a[i+k]) - int(b[j+k])
		if d >= limit || d <= -limit {
			return false
		}
	}
	return true
}

func isSmooth(prev, curr, next []uint8, x, limit int) bool {
	o := 4 * x
	return isNear(curr, o, curr, o-4, limit) &&
		isNear(curr, o, curr, o+4, limit) &&
		isNear(curr, o, prev, o, limit) &&
		isNear(curr, o, next, o, limit)
}

// pass runs one quantization pass in place over a packed NRGBA buffer. Rows
// are read into a sliding window before they are overwritten, so every
// decision uses the values from before this pass.
func pass(w, h int, pix []uint8, bits uint) {
	limit := 1 << bits
	stride := 4 * w

	prev := make([]uint8, stride)
	curr := make([]uint8, stride)
	next := make([]uint8, stride)
	copy(curr, pix[:stride])

	for y := 0; y < h; y++ {
		row := pix[y*stride : (y+1)*stride]
		if y > 0 && y < h-1 {
			copy(next, pix[(y+1)*stride:(y+2)*stride])
			for x := 1; x < w-1; x++ {
				if isSmooth(prev, curr, next, x, limit) {
					continue
				}
				o := 4 * x
				for k := 0; k < 4; k++ {
					row[o+k] = quantize(curr[o+k], bits)
				}
			}
		} else if y == 0 && h > 1 {
			copy(next, pix[stride:2*stride])
		}
		prev, curr, next = curr, next, prev
	}
}

// Apply returns a copy of src preprocessed at the given strength in
// [0, MaxLevel]. The source is never modified. Strength MaxLevel, and
// pictures under MinDim in both dimensions or shorter than 3 rows, yield an
// exact copy.
func Apply(src *image.NRGBA, level int) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}

	limitBits := Bits(level)
	if limitBits <= 0 {
		return dst
	}
	if (w < MinDim && h < MinDim) || h < 3 {
		return dst
	}
	for bits := limitBits; bits >= 1; bits-- {
		pass(w, h, dst.Pix, uint(bits))
	}
	return dst
}
