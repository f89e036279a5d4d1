package bulk

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sydlexius/lidarr-bulk/internal/filesystem"
)

// mbidPrefix tags each line of the MBID file, matching Lidarr's lookup
// term syntax.
const mbidPrefix = "lidarr:"

// ReadNames reads one artist name per line. Lines are trimmed; blank lines
// and repeated names are skipped. Order is preserved.
func ReadNames(r io.Reader) ([]string, error) {
	return readLines(r, strings.TrimSpace)
}

// ReadMBIDs reads an MBID file. Each line is either "lidarr:<mbid>" or a
// bare MBID.
func ReadMBIDs(r io.Reader) ([]string, error) {
	return readLines(r, ParseMBIDLine)
}

// ParseMBIDLine strips whitespace and the optional "lidarr:" prefix.
func ParseMBIDLine(line string) string {
	s := strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(s, mbidPrefix); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

// ReadNamesFile opens path and reads it with ReadNames.
func ReadNamesFile(path string) ([]string, error) {
	return readFile(path, ReadNames)
}

// ReadMBIDsFile opens path and reads it with ReadMBIDs.
func ReadMBIDsFile(path string) ([]string, error) {
	return readFile(path, ReadMBIDs)
}

// WriteNamesFile replaces path with one name per line, in the format
// ReadNamesFile reads back.
func WriteNamesFile(path string, names []string) error {
	var b strings.Builder
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			b.WriteString(n)
			b.WriteByte('\n')
		}
	}
	if err := filesystem.WriteFileAtomic(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readFile(path string, read func(io.Reader) ([]string, error)) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: operator-chosen input path
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close() //nolint:errcheck
	items, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return items, nil
}

func readLines(r io.Reader, clean func(string) string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s := clean(sc.Text())
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Truncate returns the first limit items. A limit of 0 or less keeps all.
func Truncate(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
