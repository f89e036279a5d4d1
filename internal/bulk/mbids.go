package bulk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sydlexius/lidarr-bulk/internal/filesystem"
)

// MBIDSink receives resolved MBIDs as they are found.
type MBIDSink interface {
	WriteMBID(mbid string) (bool, error)
}

// MBIDWriter streams "lidarr:<mbid>" lines to a file, flushing after every
// line so an interrupted run keeps its progress. Each MBID is written at
// most once; in append mode MBIDs already in the file count as written.
type MBIDWriter struct {
	f    *os.File
	w    *bufio.Writer
	seen map[string]struct{}
}

// OpenMBIDWriter opens path for writing. With appendMode the existing file
// is kept and its MBIDs are loaded so they are not repeated.
func OpenMBIDWriter(path string, appendMode bool) (*MBIDWriter, error) {
	seen := make(map[string]struct{})
	if appendMode {
		existing, err := ReadMBIDsFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		for _, id := range existing {
			seen[id] = struct{}{}
		}
	}

	f, err := filesystem.OpenStream(path, appendMode)
	if err != nil {
		return nil, err
	}
	return &MBIDWriter{f: f, w: bufio.NewWriter(f), seen: seen}, nil
}

// WriteMBID appends mbid unless it was already written. It reports whether
// a line was added.
func (m *MBIDWriter) WriteMBID(mbid string) (bool, error) {
	mbid = strings.TrimSpace(mbid)
	if mbid == "" {
		return false, nil
	}
	if _, dup := m.seen[mbid]; dup {
		return false, nil
	}
	if _, err := io.WriteString(m.w, mbidPrefix+mbid+"\n"); err != nil {
		return false, fmt.Errorf("writing mbid: %w", err)
	}
	if err := m.w.Flush(); err != nil {
		return false, fmt.Errorf("flushing mbid output: %w", err)
	}
	m.seen[mbid] = struct{}{}
	return true, nil
}

// Close flushes and closes the underlying file.
func (m *MBIDWriter) Close() error {
	flushErr := m.w.Flush()
	closeErr := m.f.Close()
	return errors.Join(flushErr, closeErr)
}
