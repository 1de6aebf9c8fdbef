// Package thumbnailer builds animated WebP thumbnails that fit a byte budget.
//
// Frames are added with their ending timestamps, then GenerateAnimation picks
// an encoding for every frame so that the assembled animation stays under
// Options.ByteBudget while keeping PSNR high and even across frames.
//
// Every method starts from the equal-quality baseline: the highest single
// lossy quality at which the whole animation fits. The other methods refine
// that baseline:
//   - EqualPSNR targets one PSNR for all frames
//   - NearLosslessDiff and NearLosslessEqual swap frames to near-lossless
//     encoding where it improves PSNR within the budget
//   - SlopeOptim spends the budget where the rate-distortion curves are
//     cheapest, then tries near-lossless substitution
//
// When a refinement fails, the last all-lossy state that fit the budget is
// returned with Result.Outcome set to FellBack. Hard failures are returned as
// errors and produce no data.
//
// Basic usage:
//
//	opts := thumbnailer.DefaultOptions()
//	opts.ByteBudget = 100 << 10
//	t, err := thumbnailer.New(opts)
//	for i, img := range frames {
//		err = t.AddFrame(img, (i+1)*100)
//	}
//	res, err := t.GenerateAnimation(thumbnailer.SlopeOptim)
//	os.WriteFile("thumb.webp", res.Data, 0o644)
package thumbnailer
