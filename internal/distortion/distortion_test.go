package distortion

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func TestPSNRFromSSE(t *testing.T) {
	tests := []struct {
		name  string
		sse   uint64
		count int
		want  float64
	}{
		{"zero_sse", 0, 100, 99},
		{"zero_count", 10, 0, 99},
		{"mse_1", 100, 100, 10 * math.Log10(255*255)},
		{"capped", 1, 1 << 40, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PSNRFromSSE(tt.sse, tt.count)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PSNRFromSSE(%d, %d) = %v, want %v", tt.sse, tt.count, got, tt.want)
			}
		})
	}
}

func TestDistortion_Identical(t *testing.T) {
	img := solid(8, 8, color.NRGBA{10, 20, 30, 255})
	res, err := Distortion(img, img)
	if err != nil {
		t.Fatal(err)
	}
	for c, v := range res {
		if v != MaxPSNR {
			t.Errorf("channel %d: PSNR = %v, want %v", c, v, MaxPSNR)
		}
	}
}

func TestDistortion_SingleChannel(t *testing.T) {
	ref := solid(4, 4, color.NRGBA{100, 100, 100, 255})
	got := solid(4, 4, color.NRGBA{101, 100, 100, 255})

	res, err := Distortion(ref, got)
	if err != nil {
		t.Fatal(err)
	}
	wantR := 10 * math.Log10(255*255)
	if math.Abs(res[R]-wantR) > 1e-9 {
		t.Errorf("PSNR[R] = %v, want %v", res[R], wantR)
	}
	for _, c := range []int{G, B, A} {
		if res[c] != MaxPSNR {
			t.Errorf("PSNR[%d] = %v, want %v", c, res[c], MaxPSNR)
		}
	}
	// One channel in four differs by 1: MSE over all samples is 1/4.
	wantAll := 10 * math.Log10(255*255*4)
	if math.Abs(res[All]-wantAll) > 1e-9 {
		t.Errorf("PSNR[All] = %v, want %v", res[All], wantAll)
	}
}

func TestDistortion_SizeMismatch(t *testing.T) {
	a := solid(4, 4, color.NRGBA{A: 255})
	b := solid(4, 5, color.NRGBA{A: 255})
	if _, err := Distortion(a, b); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Distortion() error = %v, want %v", err, ErrSizeMismatch)
	}
}

func TestDistortion_Monotone(t *testing.T) {
	ref := solid(6, 6, color.NRGBA{128, 128, 128, 255})
	prev := math.Inf(1)
	for _, d := range []uint8{1, 2, 4, 8, 16} {
		got := solid(6, 6, color.NRGBA{128 + d, 128, 128 - d, 255})
		res, err := Distortion(ref, got)
		if err != nil {
			t.Fatal(err)
		}
		if res[All] >= prev {
			t.Errorf("delta %d: PSNR = %v, want < %v", d, res[All], prev)
		}
		prev = res[All]
	}
}

func TestNRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(2, 3, 6, 7))
	src.Set(2, 3, color.RGBA{255, 0, 0, 255})

	got := NRGBA(src)
	if got.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), image.Rect(0, 0, 4, 4))
	}
	if c := got.NRGBAAt(0, 0); c != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("pixel (0,0) = %v, want opaque red", c)
	}

	packed := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	if NRGBA(packed) != packed {
		t.Error("NRGBA() copied an already packed image")
	}
}
