package thumbnailer

import (
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/deepteams/webp"
)

// Method selects the generation strategy.
type Method int

const (
	// EqualQuality encodes every frame at the highest common lossy quality
	// that fits the budget.
	EqualQuality Method = iota
	// EqualPSNR encodes every frame at the lowest quality reaching a common
	// PSNR target, using the highest target that fits.
	EqualPSNR
	// NearLosslessEqual switches frames to near-lossless with one shared
	// preprocessing strength.
	NearLosslessEqual
	// NearLosslessDiff switches frames to near-lossless with a per-frame
	// preprocessing strength.
	NearLosslessDiff
	// SlopeOptim allocates the budget using rate-distortion slopes, then
	// tries near-lossless substitution.
	SlopeOptim
)

var methodNames = [...]string{
	EqualQuality:      "equal-quality",
	EqualPSNR:         "equal-psnr",
	NearLosslessEqual: "near-lossless-equal",
	NearLosslessDiff:  "near-lossless-diff",
	SlopeOptim:        "slope-optim",
}

func (m Method) valid() bool { return m >= EqualQuality && m <= SlopeOptim }

func (m Method) String() string {
	if !m.valid() {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Methods returns all generation methods.
func Methods() []Method {
	return []Method{EqualQuality, EqualPSNR, NearLosslessEqual, NearLosslessDiff, SlopeOptim}
}

// ParseMethod returns the method with the given name, as printed by String.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown method %q", ErrGeneric, s)
}

// Outcome tells whether a method ran to completion or fell back.
type Outcome int

const (
	Succeeded Outcome = iota
	FellBack
)

func (o Outcome) String() string {
	if o == FellBack {
		return "fell back"
	}
	return "succeeded"
}

// Result is a generated animation.
type Result struct {
	Data    []byte
	Method  Method
	Outcome Outcome
	// Reason is the refinement failure behind a FellBack outcome.
	Reason error
	Frames []FrameReport
}

// Thumbnailer turns timestamped frames into an animation under a byte budget.
// A Thumbnailer is not safe for concurrent use.
type Thumbnailer struct {
	opts   Options
	log    *slog.Logger
	frames []*frame
	width  int
	height int

	generated bool
	encodes   int // encoder invocations, memo hits excluded

	// best is the last committed state verified to fit the budget.
	best checkpoint
}

// checkpoint records every frame's committed encoding with the animation
// assembled from it.
type checkpoint struct {
	data    []byte
	choices []choice
}

// New returns a Thumbnailer configured by opts. A nil opts uses
// DefaultOptions.
func New(opts *Options) (*Thumbnailer, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Thumbnailer{opts: *opts, log: log}, nil
}

// AddFrame appends a frame shown until timestampMS. img is borrowed: it must
// not be modified until the last GenerateAnimation call returns. All frames
// must have the dimensions of the first one.
func (t *Thumbnailer) AddFrame(img image.Image, timestampMS int) error {
	if t.generated {
		return fmt.Errorf("%w: frames cannot be added after GenerateAnimation", ErrGeneric)
	}
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrMemory)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty image %v", ErrImageFormat, b)
	}
	if w > webp.MaxDimension || h > webp.MaxDimension {
		return fmt.Errorf("%w: image dimension %dx%d exceeds maximum %d", ErrImageFormat, w, h, webp.MaxDimension)
	}
	if len(t.frames) > 0 && (w != t.width || h != t.height) {
		return fmt.Errorf("%w: frame is %dx%d, want %dx%d", ErrImageFormat, w, h, t.width, t.height)
	}
	if timestampMS < 0 {
		return fmt.Errorf("%w: negative timestamp %d", ErrGeneric, timestampMS)
	}
	if len(t.frames) == 0 {
		t.width, t.height = w, h
	}
	t.frames = append(t.frames, newFrame(img, timestampMS))
	return nil
}

// NumFrames returns the number of frames added so far.
func (t *Thumbnailer) NumFrames() int { return len(t.frames) }

// GenerateAnimation runs method from scratch and returns the animation.
// Every method first computes the equal-quality baseline; when that baseline
// cannot fit the budget the error wraps ErrByteBudget. Refinement failures are
// not errors: the best result that fits is returned with Outcome FellBack.
func (t *Thumbnailer) GenerateAnimation(method Method) (*Result, error) {
	if !method.valid() {
		return nil, fmt.Errorf("%w: invalid method %d", ErrGeneric, int(method))
	}
	if len(t.frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrGeneric)
	}
	t.generated = true
	t.prepare()

	log := t.log.With("method", method.String())
	data, err := t.equalQuality(log)
	if err != nil {
		return nil, err
	}
	res := &Result{Method: method, Outcome: Succeeded}

	var refine func(*slog.Logger, []byte) ([]byte, error)
	switch method {
	case EqualPSNR:
		refine = t.equalPSNR
	case NearLosslessEqual:
		refine = t.nearLosslessEqual
	case NearLosslessDiff:
		refine = t.nearLosslessDiff
	case SlopeOptim:
		refine = t.slopeOptim
	}
	if refine != nil {
		out, err := refine(log, data)
		if err == nil && !t.fits(len(out)) {
			err = fmt.Errorf("%w: refined animation is %d bytes", ErrByteBudget, len(out))
		}
		if err != nil {
			log.Warn("refinement failed, keeping best result", "err", err)
			t.restore(t.best)
			out = t.best.data
			res.Outcome = FellBack
			res.Reason = err
		}
		data = out
	}

	res.Data = data
	res.Frames = make([]FrameReport, len(t.frames))
	for i, f := range t.frames {
		res.Frames[i] = f.report()
	}
	log.Info("animation generated",
		"size", len(data), "budget", t.opts.ByteBudget, "frames", len(t.frames),
		"outcome", res.Outcome.String())
	return res, nil
}

// prepare orders the frames by timestamp and clears the derived state of a
// previous run. Memoized rate-distortion points are kept: they depend only on
// the frame pixels.
func (t *Thumbnailer) prepare() {
	sort.SliceStable(t.frames, func(i, j int) bool {
		return t.frames[i].timestampMS < t.frames[j].timestampMS
	})
	for _, f := range t.frames {
		f.choice = unset
	}
	t.best = checkpoint{}
}

// save records the committed state together with data, its assembly.
func (t *Thumbnailer) save(data []byte) {
	cp := checkpoint{data: data, choices: make([]choice, len(t.frames))}
	for i, f := range t.frames {
		cp.choices[i] = f.choice
	}
	t.best = cp
}

func (t *Thumbnailer) restore(cp checkpoint) {
	for i, f := range t.frames {
		f.choice = cp.choices[i]
	}
}
