package thumbnailer

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/deepteams/thumbnailer/internal/nearlossless"
)

// betterNearLossless reports whether the near-lossless point nl should replace
// cur. It must not lose PSNR; at equal PSNR it must be strictly smaller, so
// an exact tie keeps the lossy encoding.
func betterNearLossless(cur, nl rdPoint) bool {
	if nl.PSNR != cur.PSNR {
		return nl.PSNR > cur.PSNR
	}
	return nl.Size < cur.Size
}

// nearLosslessDiff gives each frame, in turn, the strongest-fidelity
// near-lossless strength that keeps the estimated animation within the
// budget, when it beats the frame's PSNR. Strengths are searched only for
// frames where strength 0 fits at all.
func (t *Thumbnailer) nearLosslessDiff(log *slog.Logger, data []byte) ([]byte, error) {
	animSize := t.animationSize(data)
	for _, f := range t.frames {
		pt, err := t.stats(f, nearLosslessAt(0))
		if err != nil {
			return nil, err
		}
		if !t.fits(animSize - f.encodedSize + pt.Size) {
			continue
		}
		lo, hi := 0, nearlossless.MaxLevel
		for lo <= hi {
			mid := (lo + hi) / 2
			pt, err := t.stats(f, nearLosslessAt(mid))
			if err != nil {
				return nil, err
			}
			size := animSize - f.encodedSize + pt.Size
			if !t.fits(size) {
				hi = mid - 1
				continue
			}
			if pt.PSNR > f.finalPSNR {
				f.commit(nearLosslessAt(mid), pt)
				animSize = size
			}
			lo = mid + 1
		}
		if f.nearLossless {
			log.Debug("near-lossless frame", "timestamp", f.timestampMS,
				"level", f.nearLosslessLevel, "size", f.encodedSize, "psnr", f.finalPSNR)
		}
	}
	return t.assembleCommitted()
}

// nearLosslessEqual switches frames to near-lossless strength 0, smallest
// frames first, while PSNR does not drop and the estimate fits. It then
// searches the highest strength shared by all switched frames.
func (t *Thumbnailer) nearLosslessEqual(log *slog.Logger, data []byte) ([]byte, error) {
	order := make([]*frame, len(t.frames))
	copy(order, t.frames)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].encodedSize < order[j].encodedSize
	})

	animSize := t.animationSize(data)
	var switched []*frame
	for _, f := range order {
		pt, err := t.stats(f, nearLosslessAt(0))
		if err != nil {
			return nil, err
		}
		size := animSize - f.encodedSize + pt.Size
		if t.fits(size) && betterNearLossless(f.current(), pt) {
			f.commit(nearLosslessAt(0), pt)
			animSize = size
			switched = append(switched, f)
		}
	}
	if len(switched) == 0 {
		log.Debug("no frame switched to near-lossless")
		return data, nil
	}
	data, err := t.assembleCommitted()
	if err != nil {
		return nil, err
	}
	if !t.fits(len(data)) {
		return nil, fmt.Errorf("%w: %d bytes with %d near-lossless frames", ErrByteBudget, len(data), len(switched))
	}

	level := 0
	lo, hi := 1, nearlossless.MaxLevel
	for lo <= hi {
		mid := (lo + hi) / 2
		ok, next, err := t.tryLevel(switched, mid, t.animationSize(data))
		if err != nil {
			return nil, err
		}
		if ok {
			data, level = next, mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	log.Info("near-lossless equal", "frames", len(switched), "level", level, "size", len(data))
	return data, nil
}

// tryLevel moves every frame of set to near-lossless strength level and
// commits it if no frame loses PSNR and the assembled animation fits.
func (t *Thumbnailer) tryLevel(set []*frame, level, animSize int) (bool, []byte, error) {
	pts := make([]rdPoint, len(set))
	for i, f := range set {
		pt, err := t.stats(f, nearLosslessAt(level))
		if err != nil {
			return false, nil, err
		}
		animSize += pt.Size - f.encodedSize
		if pt.PSNR < f.finalPSNR || !t.fits(animSize) {
			return false, nil, nil
		}
		pts[i] = pt
	}

	prev := make([]choice, len(set))
	for i, f := range set {
		prev[i] = f.choice
		f.commit(nearLosslessAt(level), pts[i])
	}
	data, err := t.assembleCommitted()
	if err == nil && t.fits(len(data)) {
		return true, data, nil
	}
	for i, f := range set {
		f.choice = prev[i]
	}
	return false, nil, err
}
