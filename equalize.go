package thumbnailer

import (
	"fmt"
	"log/slog"
	"math"
)

// psnrPrecision is the resolution, in dB, of the equal-PSNR target search.
const psnrPrecision = 0.01

// equalQuality binary-searches the highest quality in [MinLossyQuality, 100]
// at which every frame encoded with it assembles within the budget, and
// commits it. Each trial measures the assembled container, not an estimate.
// Lower qualities that assemble to the same size as the chosen one are
// preferred.
func (t *Thumbnailer) equalQuality(log *slog.Logger) ([]byte, error) {
	lo, hi := t.opts.MinLossyQuality, 100
	best := -1
	var (
		bestData []byte
		bestPts  []rdPoint
		minSize  int
	)
	for lo <= hi {
		mid := (lo + hi) / 2
		data, pts, err := t.trial(t.uniform(mid))
		if err != nil {
			return nil, err
		}
		log.Debug("equal quality trial", "quality", mid, "size", len(data))
		if t.fits(len(data)) {
			best, bestData, bestPts = mid, data, pts
			lo = mid + 1
		} else {
			minSize = len(data)
			hi = mid - 1
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w: %d bytes at quality %d, budget %d",
			ErrByteBudget, minSize, t.opts.MinLossyQuality, t.opts.ByteBudget)
	}

	for best > t.opts.MinLossyQuality {
		data, pts, err := t.trial(t.uniform(best - 1))
		if err != nil {
			return nil, err
		}
		if len(data) != len(bestData) {
			break
		}
		best, bestData, bestPts = best-1, data, pts
	}

	for i, f := range t.frames {
		f.commit(lossyAt(best), bestPts[i])
	}
	t.save(bestData)
	log.Info("equal quality", "quality", best, "size", len(bestData))
	return bestData, nil
}

// uniform returns lossy params at quality q for every frame.
func (t *Thumbnailer) uniform(q int) []EncodeParams {
	params := make([]EncodeParams, len(t.frames))
	for i := range params {
		params[i] = lossyAt(q)
	}
	return params
}

// psnrMapping is the animation obtained by encoding every frame at the lowest
// quality that reaches target.
type psnrMapping struct {
	target float64
	qs     []int
	pts    []rdPoint
	data   []byte
}

// equalPSNR searches, to within psnrPrecision, the highest PSNR target that
// every frame reaches and whose mapping assembles within the budget. Targets
// range from the lowest baseline PSNR, so no frame ends below the worst
// baseline frame, to the lowest PSNR at quality 100.
func (t *Thumbnailer) equalPSNR(log *slog.Logger, _ []byte) ([]byte, error) {
	floor, ceil := math.Inf(1), math.Inf(1)
	for _, f := range t.frames {
		top, err := t.stats(f, lossyAt(100))
		if err != nil {
			return nil, err
		}
		floor = math.Min(floor, f.finalPSNR)
		ceil = math.Min(ceil, top.PSNR)
	}

	var best *psnrMapping
	if target := t.opts.TargetPSNR; target > 0 {
		if target > ceil {
			return nil, fmt.Errorf("%w: PSNR %.2f is out of reach of some frame (max %.2f)", ErrGeneric, target, ceil)
		}
		if target < floor {
			return nil, fmt.Errorf("%w: PSNR %.2f is below the baseline minimum %.2f", ErrGeneric, target, floor)
		}
		m, err := t.mapPSNR(log, target)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("%w: PSNR %.2f does not fit", ErrByteBudget, target)
		}
		best = m
	} else {
		m, err := t.mapPSNR(log, floor)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("%w: baseline PSNR %.2f does not fit", ErrByteBudget, floor)
		}
		best = m

		lo, hi := floor, ceil
		if hi > lo {
			m, err := t.mapPSNR(log, hi)
			if err != nil {
				return nil, err
			}
			if m != nil {
				best, lo = m, hi
			}
		}
		for hi-lo > psnrPrecision {
			mid := (lo + hi) / 2
			m, err := t.mapPSNR(log, mid)
			if err != nil {
				return nil, err
			}
			if m != nil {
				best, lo = m, mid
			} else {
				hi = mid
			}
		}
	}

	for i, f := range t.frames {
		f.commit(lossyAt(best.qs[i]), best.pts[i])
	}
	log.Info("equal PSNR", "target", best.target, "qualities", best.qs, "size", len(best.data))
	return best.data, nil
}

// mapPSNR assembles the mapping for target. It returns nil when some frame
// cannot reach target or the animation does not fit.
func (t *Thumbnailer) mapPSNR(log *slog.Logger, target float64) (*psnrMapping, error) {
	qs, ok, err := t.qualitiesFor(target)
	if err != nil || !ok {
		return nil, err
	}
	params := make([]EncodeParams, len(t.frames))
	for i, q := range qs {
		params[i] = lossyAt(q)
	}
	data, pts, err := t.trial(params)
	if err != nil {
		return nil, err
	}
	log.Debug("equal PSNR trial", "target", target, "size", len(data))
	if !t.fits(len(data)) {
		return nil, nil
	}
	return &psnrMapping{target: target, qs: qs, pts: pts, data: data}, nil
}

// qualitiesFor maps a PSNR target to the lowest quality of each frame whose
// PSNR reaches it. ok is false when some frame cannot reach the target even
// at quality 100.
func (t *Thumbnailer) qualitiesFor(target float64) (qs []int, ok bool, err error) {
	qs = make([]int, len(t.frames))
	for i, f := range t.frames {
		lo, hi := t.opts.MinLossyQuality, 100
		q := -1
		for lo <= hi {
			mid := (lo + hi) / 2
			pt, err := t.stats(f, lossyAt(mid))
			if err != nil {
				return nil, false, err
			}
			if pt.PSNR >= target {
				q = mid
				hi = mid - 1
			} else {
				lo = mid + 1
			}
		}
		if q < 0 {
			return nil, false, nil
		}
		qs[i] = q
	}
	return qs, true, nil
}
