package compare

import (
	"testing"

	"github.com/deepteams/thumbnailer"
)

// FuzzDecodeAnimation ensures that no input can cause a panic while turning
// a thumbnail into canvas snapshots.
func FuzzDecodeAnimation(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("RIFF\x00\x00\x00\x00WEBP"))
	if data := buildSeed(); data != nil {
		f.Add(data)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		DecodeAnimation(data) //nolint:errcheck
	})
}

func buildSeed() []byte {
	opts := thumbnailer.DefaultOptions()
	opts.ByteBudget = 4000
	th, err := thumbnailer.New(opts)
	if err != nil {
		return nil
	}
	for i := 0; i < 2; i++ {
		if err := th.AddFrame(gradient(8, 8, int64(i)), (i+1)*100); err != nil {
			return nil
		}
	}
	res, err := th.GenerateAnimation(thumbnailer.EqualQuality)
	if err != nil {
		return nil
	}
	return res.Data
}
