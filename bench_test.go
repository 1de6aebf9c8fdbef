package thumbnailer

import (
	"fmt"
	"testing"
)

func benchThumbnailer(b *testing.B, frames, budget int) *Thumbnailer {
	b.Helper()
	opts := DefaultOptions()
	opts.ByteBudget = budget
	opts.Logger = testLogger()
	th, err := New(opts)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < frames; i++ {
		if err := th.AddFrame(noiseFrame(96, 64, int64(i+1)), (i+1)*100); err != nil {
			b.Fatal(err)
		}
	}
	return th
}

func BenchmarkEncode_QualitySweep(b *testing.B) {
	th := benchThumbnailer(b, 1, DefaultByteBudget)
	f := th.frames[0]
	for _, q := range []int{0, 25, 50, 75, 100} {
		b.Run(fmt.Sprintf("Q%d", q), func(b *testing.B) {
			var pt rdPoint
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var err error
				if pt, err = th.encode(f, lossyAt(q)); err != nil {
					b.Fatal(err)
				}
			}
			b.SetBytes(int64(pt.Size))
		})
	}
}

func BenchmarkEncode_NearLosslessSweep(b *testing.B) {
	th := benchThumbnailer(b, 1, DefaultByteBudget)
	f := th.frames[0]
	for _, l := range []int{0, 40, 80, 100} {
		b.Run(fmt.Sprintf("L%d", l), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := th.encode(f, nearLosslessAt(l)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkGenerateAnimation(b *testing.B) {
	for _, m := range Methods() {
		b.Run(m.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				th := benchThumbnailer(b, 4, 12000)
				b.StartTimer()
				if _, err := th.GenerateAnimation(m); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
