package thumbnailer

import (
	"fmt"
	"image"

	"github.com/deepteams/thumbnailer/internal/distortion"
)

// EncodeParams selects how one frame is encoded. It is passed by value into
// every encode so that search trials never disturb a frame's committed state.
type EncodeParams struct {
	// Quality is the lossy quality (0-100). Ignored for near-lossless.
	Quality int
	// NearLossless selects lossless encoding after near-lossless
	// preprocessing at strength Level (0-100, 100 = exact).
	NearLossless bool
	Level        int
}

func (p EncodeParams) String() string {
	if p.NearLossless {
		return fmt.Sprintf("near-lossless:%d", p.Level)
	}
	return fmt.Sprintf("lossy:%d", p.Quality)
}

func lossyAt(q int) EncodeParams { return EncodeParams{Quality: q} }

func nearLosslessAt(level int) EncodeParams { return EncodeParams{NearLossless: true, Level: level} }

// rdPoint is one point of a frame's rate-distortion curve. payload is the
// frame bitstream ready for the muxer.
type rdPoint struct {
	Size    int
	PSNR    float64
	payload []byte
}

// choice is the encoding currently committed for a frame.
type choice struct {
	params            EncodeParams
	encodedSize       int // -1 until computed
	finalQuality      int // -1 unless lossy-encoded
	finalPSNR         float64
	nearLossless      bool
	nearLosslessLevel int
	payload           []byte
}

var unset = choice{encodedSize: -1, finalQuality: -1}

// frame is one entry of the frame store.
type frame struct {
	img         image.Image // borrowed from the caller
	ref         *image.NRGBA
	timestampMS int // ending timestamp
	width       int
	height      int

	// lossy memoizes lossy encodes by quality. Entries are never replaced;
	// absence means the quality has not been encoded yet.
	lossy map[int]rdPoint

	choice
}

func newFrame(img image.Image, timestampMS int) *frame {
	b := img.Bounds()
	return &frame{
		img:         img,
		timestampMS: timestampMS,
		width:       b.Dx(),
		height:      b.Dy(),
		lossy:       make(map[int]rdPoint),
		choice:      unset,
	}
}

// reference returns the frame pixels as packed NRGBA. Packed NRGBA sources
// are used directly, others are converted once.
func (f *frame) reference() *image.NRGBA {
	if f.ref == nil {
		f.ref = distortion.NRGBA(f.img)
	}
	return f.ref
}

func (f *frame) commit(p EncodeParams, pt rdPoint) {
	f.choice = choice{
		params:       p,
		encodedSize:  pt.Size,
		finalQuality: -1,
		finalPSNR:    pt.PSNR,
		payload:      pt.payload,
	}
	if p.NearLossless {
		f.nearLossless = true
		f.nearLosslessLevel = p.Level
	} else {
		f.finalQuality = p.Quality
	}
}

// current returns the committed encoding as an rdPoint.
func (f *frame) current() rdPoint {
	return rdPoint{Size: f.encodedSize, PSNR: f.finalPSNR, payload: f.payload}
}

// FrameReport describes the encoding chosen for one frame.
type FrameReport struct {
	TimestampMS       int
	Quality           int // -1 for near-lossless frames
	NearLossless      bool
	NearLosslessLevel int
	Size              int // size of the frame encoded on its own, in bytes
	PSNR              float64
}

func (f *frame) report() FrameReport {
	return FrameReport{
		TimestampMS:       f.timestampMS,
		Quality:           f.finalQuality,
		NearLossless:      f.nearLossless,
		NearLosslessLevel: f.nearLosslessLevel,
		Size:              f.encodedSize,
		PSNR:              f.finalPSNR,
	}
}
