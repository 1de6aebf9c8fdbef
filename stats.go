package thumbnailer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/mux"

	"github.com/deepteams/thumbnailer/internal/distortion"
	"github.com/deepteams/thumbnailer/internal/nearlossless"
	"github.com/deepteams/thumbnailer/internal/pool"
)

// nearLosslessEffort is the lossless compression effort used for
// near-lossless frames.
const nearLosslessEffort = 90

// stats returns the size and PSNR of f encoded with p. Lossy results are
// memoized per quality; near-lossless results are always recomputed.
func (t *Thumbnailer) stats(f *frame, p EncodeParams) (rdPoint, error) {
	if !p.NearLossless {
		if pt, ok := f.lossy[p.Quality]; ok {
			return pt, nil
		}
	}
	pt, err := t.encode(f, p)
	if err != nil {
		return rdPoint{}, fmt.Errorf("%w: frame at %d ms, %v: %v", ErrStats, f.timestampMS, p, err)
	}
	t.encodes++
	if !p.NearLossless {
		f.lossy[p.Quality] = pt
	}
	return pt, nil
}

func (t *Thumbnailer) encode(f *frame, p EncodeParams) (rdPoint, error) {
	ref := f.reference()

	opts := webp.DefaultOptions()
	opts.Method = t.opts.WebPMethod
	var src image.Image = ref
	if p.NearLossless {
		opts.Lossless = true
		opts.Quality = nearLosslessEffort
		opts.Exact = true
		src = nearlossless.Apply(ref, p.Level)
	} else {
		opts.Quality = float32(p.Quality)
	}

	buf := pool.Get(len(ref.Pix) / 4)
	defer pool.Put(buf)
	if err := webp.Encode(buf, src, opts); err != nil {
		return rdPoint{}, err
	}
	file := buf.Bytes()

	payload, err := framePayload(file)
	if err != nil {
		return rdPoint{}, err
	}
	pt := rdPoint{Size: len(file), payload: payload}

	// Plain lossless is exact.
	if p.NearLossless && p.Level >= nearlossless.MaxLevel {
		pt.PSNR = distortion.MaxPSNR
		return pt, nil
	}

	dec, err := webp.Decode(bytes.NewReader(file))
	if err != nil {
		return rdPoint{}, fmt.Errorf("decode: %w", err)
	}
	d, err := distortion.Distortion(ref, distortion.NRGBA(dec))
	if err != nil {
		return rdPoint{}, err
	}
	pt.PSNR = d[distortion.All]
	return pt, nil
}

// framePayload extracts the frame bitstream from a still WebP file in the
// form the muxer expects: the VP8/VP8L data, prefixed by its ALPH chunk when
// the frame carries a separate alpha plane. The result does not alias file.
func framePayload(file []byte) ([]byte, error) {
	dmx, err := mux.NewDemuxer(file)
	if err != nil {
		return nil, err
	}
	fi, err := dmx.Frame(0)
	if err != nil {
		return nil, err
	}
	n := len(fi.AlphaData)
	if n == 0 {
		return append([]byte(nil), fi.Data...), nil
	}
	out := make([]byte, 0, 8+n+1+len(fi.Data))
	out = binary.LittleEndian.AppendUint32(out, mux.FourCCALPH)
	out = binary.LittleEndian.AppendUint32(out, uint32(n))
	out = append(out, fi.AlphaData...)
	if n%2 != 0 {
		out = append(out, 0)
	}
	out = append(out, fi.Data...)
	return out, nil
}
