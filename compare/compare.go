// Package compare measures how faithfully an animated WebP thumbnail
// reproduces its source frames, and compares two thumbnails of the same
// frames.
package compare

import (
	"fmt"
	"image"
	"slices"
	"time"

	"github.com/deepteams/webp/animation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/deepteams/thumbnailer"
	"github.com/deepteams/thumbnailer/internal/distortion"

	// Registers the VP8/VP8L frame decoder used by the animation package.
	_ "github.com/deepteams/webp"
)

// Frame is a full-canvas picture shown until TimestampMS.
type Frame struct {
	Image       image.Image
	TimestampMS int
}

// ThumbnailStatPSNR holds the PSNR of every source frame in a thumbnail.
type ThumbnailStatPSNR struct {
	PSNR   []float64
	Min    float64
	Max    float64
	Mean   float64
	Median float64
}

// ThumbnailDiffPSNR holds the per-frame PSNR change from one thumbnail to
// another. MaxDecrease is the most negative change, MaxIncrease the most
// positive one.
type ThumbnailDiffPSNR struct {
	PSNRDiff    []float64
	MaxIncrease float64
	MaxDecrease float64
	Sum         float64
	Mean        float64
	Median      float64
}

// DecodeAnimation decodes data into canvas snapshots with their ending
// timestamps. A still image yields one frame ending at 0.
func DecodeAnimation(data []byte) ([]Frame, error) {
	anim, err := animation.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse animation: %v", thumbnailer.ErrGeneric, err)
	}
	if err := anim.DecodeFrames(); err != nil {
		return nil, fmt.Errorf("%w: decode frames: %v", thumbnailer.ErrGeneric, err)
	}
	dec, err := animation.NewAnimDecoder(anim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", thumbnailer.ErrGeneric, err)
	}

	frames := make([]Frame, 0, len(anim.Frames))
	var end time.Duration
	for dec.HasNext() {
		img, d, err := dec.NextFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", thumbnailer.ErrGeneric, len(frames), err)
		}
		end += d
		frames = append(frames, Frame{Image: img, TimestampMS: int(end.Milliseconds())})
	}
	return frames, nil
}

// StatPSNR decodes the thumbnail data and computes the PSNR of every original
// frame against the decoded frame shown at its ending timestamp. Consecutive
// identical originals may share one decoded frame; a thumbnail with more
// frames than the originals is rejected.
func StatPSNR(original []Frame, data []byte) (*ThumbnailStatPSNR, error) {
	if len(original) == 0 {
		return nil, fmt.Errorf("%w: no original frames", thumbnailer.ErrGeneric)
	}
	decoded, err := DecodeAnimation(data)
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 || len(decoded) > len(original) {
		return nil, fmt.Errorf("%w: thumbnail has %d frames for %d originals",
			thumbnailer.ErrGeneric, len(decoded), len(original))
	}

	psnr := make([]float64, 0, len(original))
	j := 0
	for i, o := range original {
		for j+1 < len(decoded) && decoded[j].TimestampMS < o.TimestampMS {
			j++
		}
		if decoded[j].TimestampMS < o.TimestampMS {
			return nil, fmt.Errorf("%w: no decoded frame at %d ms for original frame %d",
				thumbnailer.ErrGeneric, o.TimestampMS, i)
		}
		d, err := distortion.Distortion(distortion.NRGBA(o.Image), distortion.NRGBA(decoded[j].Image))
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", thumbnailer.ErrGeneric, i, err)
		}
		psnr = append(psnr, d[distortion.All])
	}

	return &ThumbnailStatPSNR{
		PSNR:   psnr,
		Min:    floats.Min(psnr),
		Max:    floats.Max(psnr),
		Mean:   stat.Mean(psnr, nil),
		Median: median(psnr),
	}, nil
}

// Diff compares two thumbnails of the same original frames. Each entry of
// PSNRDiff is the PSNR in cand minus the PSNR in ref.
func Diff(original []Frame, ref, cand []byte) (*ThumbnailDiffPSNR, error) {
	if len(original) == 0 {
		return nil, fmt.Errorf("%w: no original frames", thumbnailer.ErrGeneric)
	}
	a, err := StatPSNR(original, ref)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	b, err := StatPSNR(original, cand)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	diff := make([]float64, len(original))
	floats.SubTo(diff, b.PSNR, a.PSNR)
	return &ThumbnailDiffPSNR{
		PSNRDiff:    diff,
		MaxIncrease: floats.Max(diff),
		MaxDecrease: floats.Min(diff),
		Sum:         floats.Sum(diff),
		Mean:        stat.Mean(diff, nil),
		Median:      median(diff),
	}, nil
}

// median returns the middle value, the upper middle one for an even count.
func median(xs []float64) float64 {
	s := slices.Sorted(slices.Values(xs))
	return s[len(s)/2]
}
