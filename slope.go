package thumbnailer

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/deepteams/thumbnailer/internal/nearlossless"
)

// median returns the middle element of xs after sorting; for an even count
// it returns the upper of the two middle elements.
func median(xs []float64) float64 {
	s := slices.Sorted(slices.Values(xs))
	return s[len(s)/2]
}

// slope returns the size cost, in bytes per dB, of moving from a to b on a
// rate-distortion curve. ok is false when the move gains no PSNR.
func slope(a, b rdPoint) (bytesPerDB float64, ok bool) {
	dPSNR := b.PSNR - a.PSNR
	if dPSNR <= 0 {
		return 0, false
	}
	dSize := b.Size - a.Size
	if dSize <= 0 {
		return 0, true
	}
	return float64(dSize) / dPSNR, true
}

// findMedianSlope returns the median of frameSlope over the frames where
// that slope exists.
func (t *Thumbnailer) findMedianSlope(log *slog.Logger) (float64, error) {
	var slopes []float64
	for _, f := range t.frames {
		s, ok, err := t.frameSlope(f)
		if err != nil {
			return 0, err
		}
		if ok {
			slopes = append(slopes, s)
		}
	}
	if len(slopes) < 2 {
		return 0, fmt.Errorf("%w: %d of %d frames have a usable slope", ErrSlopeOptim, len(slopes), len(t.frames))
	}
	m := median(slopes)
	log.Debug("median slope", "bytes_per_db", m, "slopes", len(slopes))
	return m, nil
}

// frameSlope measures the slope between quality 100 and the lowest quality
// whose PSNR is within SlopeDPSNR of it. ok is false when that point gains
// no PSNR or costs no bytes.
func (t *Thumbnailer) frameSlope(f *frame) (s float64, ok bool, err error) {
	top, err := t.stats(f, lossyAt(100))
	if err != nil {
		return 0, false, err
	}
	lo, hi := t.opts.MinLossyQuality, 100
	for lo <= hi {
		mid := (lo + hi) / 2
		pt, err := t.stats(f, lossyAt(mid))
		if err != nil {
			return 0, false, err
		}
		if top.PSNR-pt.PSNR <= t.opts.SlopeDPSNR {
			s, ok = slope(pt, top)
			if ok && pt.Size >= top.Size {
				ok = false
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return s, ok, nil
}

// slopeOptim refines the equal-quality baseline:
//  1. frames whose curve is cheaper than the median slope are raised
//     together, by binary search, while the animation fits
//  2. the leftover budget goes to the single best next-quality move, repeatedly
//  3. each frame may switch to near-lossless if it is no worse and no larger
//  4. bytes freed by the switches are spent as in step 2
func (t *Thumbnailer) slopeOptim(log *slog.Logger, data []byte) ([]byte, error) {
	limit, err := t.findMedianSlope(log)
	if err != nil {
		return nil, err
	}
	if data, err = t.raiseCheapFrames(log, data, limit); err != nil {
		return nil, err
	}
	if data, err = t.spendLeftover(log, data); err != nil {
		return nil, err
	}
	if data, err = t.substituteNearLossless(log, data); err != nil {
		return nil, err
	}
	return t.spendLeftover(log, data)
}

// raiseCheapFrames binary-searches a quality above the baseline. On each
// trial only the frames whose slope between the search bounds is at most
// limit are raised; frames left behind drop out of later trials.
func (t *Thumbnailer) raiseCheapFrames(log *slog.Logger, data []byte, limit float64) ([]byte, error) {
	base := 100
	for _, f := range t.frames {
		base = min(base, f.finalQuality)
	}
	lo, hi := base+1, 100
	cand := t.frames
	for lo <= hi && len(cand) > 0 {
		mid := (lo + hi) / 2
		var raise []*frame
		for _, f := range cand {
			a, err := t.stats(f, lossyAt(lo-1))
			if err != nil {
				return nil, err
			}
			b, err := t.stats(f, lossyAt(hi))
			if err != nil {
				return nil, err
			}
			if s, ok := slope(a, b); ok && s <= limit && f.finalQuality < mid {
				raise = append(raise, f)
			}
		}
		if len(raise) == 0 {
			break
		}

		params := make([]EncodeParams, len(t.frames))
		for i, f := range t.frames {
			params[i] = f.params
		}
		for _, f := range raise {
			params[t.index(f)] = lossyAt(mid)
		}
		next, pts, err := t.trial(params)
		if err != nil {
			return nil, err
		}
		log.Debug("slope trial", "quality", mid, "raised", len(raise), "size", len(next))
		if t.fits(len(next)) {
			for _, f := range raise {
				f.commit(lossyAt(mid), pts[t.index(f)])
			}
			data = next
			t.save(data)
			lo = mid + 1
		} else {
			hi = mid - 1
		}
		cand = raise
	}
	return data, nil
}

// spendLeftover repeatedly takes the lossy quality increase with the best
// PSNR gain per byte that fits in the budget left over by the assembled
// animation, until no move fits or none gains at least minPSNRGain.
func (t *Thumbnailer) spendLeftover(log *slog.Logger, data []byte) ([]byte, error) {
	stuck := make(map[*frame]bool)
	moves := 0
	for {
		leftover := t.opts.ByteBudget - t.animationSize(data)
		var (
			best     *frame
			bestQ    int
			bestPt   rdPoint
			bestGain = math.Inf(-1)
		)
		for _, f := range t.frames {
			if f.nearLossless || stuck[f] || f.finalQuality >= 100 {
				continue
			}
			q, pt, err := t.nextGain(f)
			if err != nil {
				return nil, err
			}
			if q < 0 {
				stuck[f] = true
				continue
			}
			cost := pt.Size - f.encodedSize
			if cost > leftover {
				continue
			}
			gain := (pt.PSNR - f.finalPSNR) / float64(max(cost, 1))
			if gain > bestGain {
				best, bestQ, bestPt, bestGain = f, q, pt, gain
			}
		}
		if best == nil {
			break
		}

		prev := best.choice
		best.commit(lossyAt(bestQ), bestPt)
		next, err := t.assembleCommitted()
		if err != nil {
			return nil, err
		}
		if !t.fits(len(next)) {
			best.choice = prev
			stuck[best] = true
			continue
		}
		data = next
		moves++
		if t.lossyOnly() {
			t.save(data)
		}
	}
	log.Debug("leftover spent", "moves", moves, "size", len(data))
	return data, nil
}

// minPSNRGain is the smallest PSNR increase, in dB, worth spending bytes on.
const minPSNRGain = 0.01

// nextGain returns the lowest quality above the frame's current one that
// gains at least minPSNRGain, or -1 when none does.
func (t *Thumbnailer) nextGain(f *frame) (int, rdPoint, error) {
	for q := f.finalQuality + 1; q <= 100; q++ {
		pt, err := t.stats(f, lossyAt(q))
		if err != nil {
			return -1, rdPoint{}, err
		}
		if pt.PSNR-f.finalPSNR >= minPSNRGain {
			return q, pt, nil
		}
	}
	return -1, rdPoint{}, nil
}

// substituteNearLossless switches each lossy frame to the highest
// near-lossless strength no larger than its current encoding, when that
// strength does not lose PSNR.
func (t *Thumbnailer) substituteNearLossless(log *slog.Logger, data []byte) ([]byte, error) {
	switched := 0
	for _, f := range t.frames {
		cur := f.current()
		low, err := t.stats(f, nearLosslessAt(0))
		if err != nil {
			return nil, err
		}
		if low.Size > cur.Size {
			continue
		}
		level, pt := 0, low
		lo, hi := 1, nearlossless.MaxLevel
		for lo <= hi {
			mid := (lo + hi) / 2
			p, err := t.stats(f, nearLosslessAt(mid))
			if err != nil {
				return nil, err
			}
			if p.Size <= cur.Size {
				level, pt = mid, p
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		if betterNearLossless(cur, pt) {
			f.commit(nearLosslessAt(level), pt)
			switched++
		}
	}
	if switched == 0 {
		return data, nil
	}
	next, err := t.assembleCommitted()
	if err != nil {
		return nil, err
	}
	log.Debug("near-lossless substitution", "frames", switched, "size", len(next))
	if !t.fits(len(next)) {
		return nil, fmt.Errorf("%w: %d bytes after near-lossless substitution", ErrByteBudget, len(next))
	}
	return next, nil
}

func (t *Thumbnailer) index(f *frame) int {
	for i, g := range t.frames {
		if g == f {
			return i
		}
	}
	return -1
}

// lossyOnly reports whether no frame is near-lossless.
func (t *Thumbnailer) lossyOnly() bool {
	for _, f := range t.frames {
		if f.nearLossless {
			return false
		}
	}
	return true
}
