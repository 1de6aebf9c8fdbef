// Package distortion computes per-channel PSNR between two RGBA pictures.
package distortion

import (
	"errors"
	"image"
	"image/draw"
	"math"
)

// Channel indices into the array returned by Distortion.
const (
	R   = 0
	G   = 1
	B   = 2
	A   = 3
	All = 4
)

// MaxPSNR is reported for identical planes and caps every other value so that
// no lossy result can score above an exact one.
const MaxPSNR = 99.0

// ErrSizeMismatch is returned when the two pictures differ in dimensions.
var ErrSizeMismatch = errors.New("distortion: picture dimensions differ")

// NRGBA returns img as a tightly packed *image.NRGBA with origin (0,0). An
// *image.NRGBA that already satisfies this is returned as is.
func NRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// PSNRFromSSE computes the PSNR from the sum of squared errors over count
// samples.
func PSNRFromSSE(sse uint64, count int) float64 {
	if sse == 0 || count == 0 {
		return MaxPSNR
	}
	mse := float64(sse) / float64(count)
	return math.Min(MaxPSNR, 10.0*math.Log10(255.0*255.0/mse))
}

// Distortion returns the PSNR of each channel of got against ref, with the
// overall PSNR over all four channels at index All.
func Distortion(ref, got *image.NRGBA) ([5]float64, error) {
	var res [5]float64
	rb, gb := ref.Bounds(), got.Bounds()
	if rb.Dx() != gb.Dx() || rb.Dy() != gb.Dy() {
		return res, ErrSizeMismatch
	}
	w, h := rb.Dx(), rb.Dy()

	var sse [4]uint64
	for y := 0; y < h; y++ {
		rrow := ref.Pix[ref.PixOffset(rb.Min.X, rb.Min.Y+y):]
		grow := got.Pix[got.PixOffset(gb.Min.X, gb.Min.Y+y):]
		for x := 0; x < 4*w; x++ {
			d := int(rrow[x]) - int(grow[x])
			sse[x&3] += uint64(d * d)
		}
	}

	n := w * h
	var total uint64
	for c := 0; c < 4; c++ {
		res[c] = PSNRFromSSE(sse[c], n)
		total += sse[c]
	}
	res[All] = PSNRFromSSE(total, 4*n)
	return res, nil
}
