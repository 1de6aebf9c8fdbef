// Command gwebpthumb builds animated WebP thumbnails under a byte budget and
// measures their quality.
//
// Usage:
//
//	gwebpthumb gen [options] <frames.txt>               frames → animated WebP
//	gwebpthumb psnr <frames.txt> <thumb.webp>           per-frame PSNR of a thumbnail
//	gwebpthumb compare <frames.txt> <a.webp> <b.webp>   PSNR change from a to b
//
// A frames file lists one "<image path> <timestamp ms>" pair per line.
// Relative paths are resolved against the frames file's directory.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"
	"github.com/lmittmann/tint"
	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/deepteams/thumbnailer"
	"github.com/deepteams/thumbnailer/compare"
	"github.com/deepteams/thumbnailer/internal/manifest"

	// Registers "webp" with image.Decode.
	_ "github.com/deepteams/webp"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "gen":
		err = runGen(os.Args[2:])
	case "psnr":
		err = runPSNR(os.Args[2:])
	case "compare":
		err = runCompare(os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "gwebpthumb: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "gwebpthumb: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gwebpthumb gen [options] <frames.txt>               Build an animated WebP thumbnail
  gwebpthumb psnr [options] <frames.txt> <thumb.webp> Report per-frame PSNR
  gwebpthumb compare [options] <frames.txt> <a.webp> <b.webp>
                                                      Report PSNR change from a to b

A frames file holds one "<image> <timestamp_ms>" pair per line.
Use "-" as the frames file to read it from stdin, "-o -" to write to stdout.

Run "gwebpthumb <command> -h" for command-specific options.
`)
}

// newLogger returns a colourised stderr logger.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

// --- gen ---

func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	output := fs.String("o", "out.webp", `output path ("-" for stdout)`)
	budget := fs.Int("soft_max_size", thumbnailer.DefaultByteBudget, "byte budget of the animation")
	loop := fs.Int("loop", 0, "loop count (0 = infinite)")
	minQ := fs.Int("min_lossy_quality", 0, "lowest lossy quality the search may use")
	method := fs.Int("m", thumbnailer.DefaultWebPMethod, "WebP compression method 0-6")
	slopeDPSNR := fs.Float64("slope_dpsnr", thumbnailer.DefaultSlopeDPSNR, "PSNR step for slope estimation (dB)")
	targetPSNR := fs.Float64("psnr", 0, "fixed PSNR target for equal-psnr (0 = search)")
	strategy := fs.String("method", thumbnailer.EqualQuality.String(),
		"strategy: "+methodList())
	bgcolor := fs.String("bgcolor", "", `background colour as #rrggbb, or "auto" to use the first frame's dominant colour`)
	resize := fs.String("resize", "", "fit frames into WxH before encoding")
	verbose := fs.Bool("v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("gen: missing frames file\nUsage: gwebpthumb gen [options] <frames.txt>")
	}
	framesPath := fs.Arg(0)

	m, err := thumbnailer.ParseMethod(*strategy)
	if err != nil {
		return err
	}
	var fitW, fitH int
	if *resize != "" {
		if fitW, fitH, err = parseSize(*resize); err != nil {
			return err
		}
	}

	frames, err := loadFrames(framesPath, fitW, fitH)
	if err != nil {
		return err
	}

	opts := thumbnailer.DefaultOptions()
	opts.Logger = newLogger(*verbose)
	opts.ByteBudget = *budget
	opts.LoopCount = *loop
	opts.MinLossyQuality = *minQ
	opts.WebPMethod = *method
	opts.SlopeDPSNR = *slopeDPSNR
	opts.TargetPSNR = *targetPSNR
	if *bgcolor != "" {
		c, err := parseBackground(*bgcolor, frames[0].Image)
		if err != nil {
			return err
		}
		opts.BackgroundColor = c
	}

	t, err := thumbnailer.New(opts)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := t.AddFrame(f.Image, f.TimestampMS); err != nil {
			return fmt.Errorf("frame at %d ms: %w", f.TimestampMS, err)
		}
	}

	start := time.Now()
	res, err := t.GenerateAnimation(m)
	if err != nil {
		return err
	}
	if res.Outcome == thumbnailer.FellBack {
		opts.Logger.Warn("refinement fell back to equal quality",
			"method", m, "reason", res.Reason)
	}

	if *output == "-" {
		_, err = os.Stdout.Write(res.Data)
		return err
	}
	if err := os.WriteFile(*output, res.Data, 0o644); err != nil {
		os.Remove(*output)
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Generated %s → %s (%d frames, %d bytes, %s, %v)\n",
		framesPath, *output, len(res.Frames), len(res.Data), res.Outcome,
		time.Since(start).Round(time.Millisecond))
	return nil
}

func methodList() string {
	var names []string
	for _, m := range thumbnailer.Methods() {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}

// parseSize parses "WxH".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q (want WxH)", s)
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q (want WxH)", s)
	}
	return w, h, nil
}

// parseBackground returns an ARGB background colour. "auto" picks the
// dominant colour of img.
func parseBackground(s string, img image.Image) (uint32, error) {
	if strings.EqualFold(s, "auto") {
		return argb(dominantcolor.Find(img)), nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("invalid -bgcolor: %w", err)
	}
	r, g, b := c.RGB255()
	return argb(color.RGBA{R: r, G: g, B: b, A: 0xff}), nil
}

func argb(c color.RGBA) uint32 {
	return 0xff<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// --- frame loading ---

// loadFrames decodes every image named by the frames file. A positive
// fitW/fitH scales frames down to fit that box.
func loadFrames(path string, fitW, fitH int) ([]compare.Frame, error) {
	entries, err := manifest.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dir := "."
	if path != "-" {
		dir = filepath.Dir(path)
	}
	frames := make([]compare.Frame, 0, len(entries))
	for _, e := range entries {
		p := e.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		img, err := decodeImage(p)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, e.Line, err)
		}
		if fitW > 0 && fitH > 0 {
			img = imaging.Fit(img, fitW, fitH, imaging.Lanczos)
		}
		frames = append(frames, compare.Frame{Image: img, TimestampMS: e.TimestampMS})
	}
	return frames, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// --- psnr ---

func runPSNR(args []string) error {
	fs := flag.NewFlagSet("psnr", flag.ContinueOnError)
	short := fs.Bool("short", false, "print only min/mean/median/max")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("psnr: missing arguments\nUsage: gwebpthumb psnr [options] <frames.txt> <thumb.webp>")
	}

	frames, err := loadFrames(fs.Arg(0), 0, 0)
	if err != nil {
		return err
	}
	data, err := readFile(fs.Arg(1))
	if err != nil {
		return err
	}
	st, err := compare.StatPSNR(frames, data)
	if err != nil {
		return err
	}

	w := os.Stdout
	if !*short {
		for i, p := range st.PSNR {
			fmt.Fprintf(w, "frame %3d  %6d ms  %6.2f dB\n", i, frames[i].TimestampMS, p)
		}
	}
	fmt.Fprintf(w, "min %.2f  mean %.2f  median %.2f  max %.2f\n", st.Min, st.Mean, st.Median, st.Max)
	return nil
}

// --- compare ---

func runCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	short := fs.Bool("short", false, "print only the aggregates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("compare: missing arguments\nUsage: gwebpthumb compare [options] <frames.txt> <a.webp> <b.webp>")
	}

	frames, err := loadFrames(fs.Arg(0), 0, 0)
	if err != nil {
		return err
	}
	ref, err := readFile(fs.Arg(1))
	if err != nil {
		return err
	}
	cand, err := readFile(fs.Arg(2))
	if err != nil {
		return err
	}
	d, err := compare.Diff(frames, ref, cand)
	if err != nil {
		return err
	}

	w := os.Stdout
	if !*short {
		for i, p := range d.PSNRDiff {
			fmt.Fprintf(w, "frame %3d  %6d ms  %+6.2f dB\n", i, frames[i].TimestampMS, p)
		}
	}
	fmt.Fprintf(w, "sum %+.2f  mean %+.2f  median %+.2f  max decrease %+.2f  max increase %+.2f\n",
		d.Sum, d.Mean, d.Median, d.MaxDecrease, d.MaxIncrease)
	return nil
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
