package thumbnailer

import (
	"fmt"

	"github.com/deepteams/webp/mux"

	"github.com/deepteams/thumbnailer/internal/pool"
)

// assemble muxes one payload per frame, in frame order, into an animated
// WebP. Frame i is shown from the ending timestamp of frame i-1 (0 for the
// first frame) to its own ending timestamp. Every frame covers the whole
// canvas and replaces it, so the output depends only on the payloads, the
// timestamps and the options.
func (t *Thumbnailer) assemble(payloads [][]byte) ([]byte, error) {
	if len(payloads) != len(t.frames) {
		return nil, fmt.Errorf("%w: %d payloads for %d frames", ErrMux, len(payloads), len(t.frames))
	}
	m := mux.NewMuxer()
	m.SetCanvasSize(t.width, t.height)
	m.SetLoopCount(t.opts.LoopCount)
	m.SetBackgroundColor(t.opts.BackgroundColor)

	prev, total := 0, 0
	for i, f := range t.frames {
		err := m.AddFrame(payloads[i], &mux.FrameOptions{
			Duration:    f.timestampMS - prev,
			BlendMode:   mux.BlendNone,
			DisposeMode: mux.DisposeNone,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrMux, i, err)
		}
		prev = f.timestampMS
		total += len(payloads[i])
	}

	buf := pool.Get(total + 64*len(payloads))
	defer pool.Put(buf)
	if err := m.Assemble(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMux, err)
	}
	return pool.Bytes(buf), nil
}

// assembleCommitted assembles the committed encoding of every frame.
func (t *Thumbnailer) assembleCommitted() ([]byte, error) {
	payloads := make([][]byte, len(t.frames))
	for i, f := range t.frames {
		payloads[i] = f.payload
	}
	return t.assemble(payloads)
}

// trial encodes frame i with params[i] and assembles the result without
// committing anything.
func (t *Thumbnailer) trial(params []EncodeParams) ([]byte, []rdPoint, error) {
	pts := make([]rdPoint, len(t.frames))
	payloads := make([][]byte, len(t.frames))
	for i, f := range t.frames {
		pt, err := t.stats(f, params[i])
		if err != nil {
			return nil, nil, err
		}
		pts[i] = pt
		payloads[i] = pt.payload
	}
	data, err := t.assemble(payloads)
	if err != nil {
		return nil, nil, err
	}
	return data, pts, nil
}

// animationSize is the larger of the assembled size and the sum of the
// committed frame sizes. Estimates built on it never undercount.
func (t *Thumbnailer) animationSize(data []byte) int {
	sum := 0
	for _, f := range t.frames {
		sum += f.encodedSize
	}
	return max(sum, len(data))
}

func (t *Thumbnailer) fits(size int) bool { return size <= t.opts.ByteBudget }
