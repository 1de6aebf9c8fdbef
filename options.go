package thumbnailer

import (
	"fmt"
	"log/slog"
)

// Default option values.
const (
	DefaultByteBudget      = 153600
	DefaultWebPMethod      = 4
	DefaultSlopeDPSNR      = 1.0
	DefaultBackgroundColor = 0xFFFFFFFF
)

// Options controls animation generation.
type Options struct {
	// Logger receives progress and diagnostic records. Nil discards them.
	Logger *slog.Logger

	// ByteBudget is the maximum size of the assembled animation in bytes
	// (default 153600).
	ByteBudget int

	// LoopCount is the number of times the animation plays (0 = forever).
	LoopCount int

	// MinLossyQuality is the lowest lossy quality any search may pick
	// (0-100, default 0).
	MinLossyQuality int

	// WebPMethod is the encoder effort (0-6, default 4). Higher values
	// produce smaller frames at the cost of longer encoding times.
	WebPMethod int

	// SlopeDPSNR is the PSNR drop from quality 100 at which the per-frame
	// rate-distortion slope is measured (0-99 dB, default 1.0).
	SlopeDPSNR float64

	// TargetPSNR, when positive, makes the equal-PSNR method try only this
	// target instead of searching for the highest one that fits. A target
	// below the lowest baseline PSNR or above the lowest PSNR at quality 100
	// makes the method fall back.
	TargetPSNR float64

	// BackgroundColor is the animation background as 0xAARRGGBB
	// (default opaque white).
	BackgroundColor uint32
}

// DefaultOptions returns the default generation options.
func DefaultOptions() *Options {
	return &Options{
		ByteBudget:      DefaultByteBudget,
		LoopCount:       0,
		MinLossyQuality: 0,
		WebPMethod:      DefaultWebPMethod,
		SlopeDPSNR:      DefaultSlopeDPSNR,
		BackgroundColor: DefaultBackgroundColor,
	}
}

func validateOptions(opts *Options) error {
	if opts.ByteBudget <= 0 {
		return fmt.Errorf("%w: invalid ByteBudget %d (must be > 0)", ErrGeneric, opts.ByteBudget)
	}
	if opts.LoopCount < 0 || opts.LoopCount > 65535 {
		return fmt.Errorf("%w: invalid LoopCount %d (must be 0-65535)", ErrGeneric, opts.LoopCount)
	}
	if opts.MinLossyQuality < 0 || opts.MinLossyQuality > 100 {
		return fmt.Errorf("%w: invalid MinLossyQuality %d (must be 0-100)", ErrGeneric, opts.MinLossyQuality)
	}
	if opts.WebPMethod < 0 || opts.WebPMethod > 6 {
		return fmt.Errorf("%w: invalid WebPMethod %d (must be 0-6)", ErrGeneric, opts.WebPMethod)
	}
	if opts.SlopeDPSNR < 0 || opts.SlopeDPSNR > 99 {
		return fmt.Errorf("%w: invalid SlopeDPSNR %.2f (must be 0-99)", ErrGeneric, opts.SlopeDPSNR)
	}
	if opts.TargetPSNR < 0 {
		return fmt.Errorf("%w: invalid TargetPSNR %.2f (must be >= 0)", ErrGeneric, opts.TargetPSNR)
	}
	return nil
}
