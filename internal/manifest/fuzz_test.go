package manifest

import (
	"errors"
	"strings"
	"testing"
)

// FuzzParse checks that Parse never panics and that accepted manifests
// hold ordered, non-negative timestamps.
func FuzzParse(f *testing.F) {
	f.Add("a.png 0\nb.png 100\n")
	f.Add("# comment\n\nframe.png 40")
	f.Add("x.png -1")
	f.Add("a.png 200\nb.png 100")

	f.Fuzz(func(t *testing.T, s string) {
		entries, err := Parse(strings.NewReader(s))
		if err != nil {
			if !errors.Is(err, ErrSyntax) && !errors.Is(err, ErrOrder) && !errors.Is(err, ErrEmpty) {
				t.Logf("Parse error outside the sentinel set: %v", err)
			}
			return
		}
		for i, e := range entries {
			if e.TimestampMS < 0 {
				t.Fatalf("entry %d: negative timestamp %d", i, e.TimestampMS)
			}
			if i > 0 && e.TimestampMS < entries[i-1].TimestampMS {
				t.Fatalf("entry %d: timestamp %d before %d", i, e.TimestampMS, entries[i-1].TimestampMS)
			}
		}
	})
}
