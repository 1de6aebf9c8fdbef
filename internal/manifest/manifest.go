// Package manifest reads frame lists: one "<image_path> <timestamp_ms>" pair
// per line, where the timestamp is the time at which the frame stops being
// displayed. Blank lines and lines starting with '#' are ignored.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is returned for lines that are not a path/timestamp pair.
	ErrSyntax = errors.New("manifest: syntax error")
	// ErrOrder is returned when timestamps decrease.
	ErrOrder = errors.New("manifest: timestamps must not decrease")
	// ErrEmpty is returned when the manifest lists no frames.
	ErrEmpty = errors.New("manifest: no frames")
)

// Entry is one frame of a manifest.
type Entry struct {
	Path        string
	TimestampMS int
	Line        int
}

// Parse reads all entries from r.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: want <path> <timestamp_ms>, got %d fields", ErrSyntax, line, len(fields))
		}
		ts, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: timestamp %q: %v", ErrSyntax, line, fields[1], err)
		}
		if ts < 0 {
			return nil, fmt.Errorf("%w: line %d: negative timestamp %d", ErrSyntax, line, ts)
		}
		if n := len(entries); n > 0 && ts < entries[n-1].TimestampMS {
			return nil, fmt.Errorf("%w: line %d: %d after %d", ErrOrder, line, ts, entries[n-1].TimestampMS)
		}
		entries = append(entries, Entry{Path: fields[0], TimestampMS: ts, Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	return entries, nil
}

// ReadFile parses the manifest stored in the named file, or standard input
// when name is "-".
func ReadFile(name string) ([]Entry, error) {
	if name == "-" {
		return Parse(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
