package bulk

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sydlexius/lidarr-bulk/internal/filesystem"
)

// Status is the terminal state of one input line.
type Status string

// Result statuses. RESOLVED and UNRESOLVED end the resolve-only flow; the
// rest come from registration.
const (
	StatusResolved      Status = "RESOLVED"
	StatusUnresolved    Status = "UNRESOLVED"
	StatusAdded         Status = "ADDED"
	StatusAlreadyExists Status = "ALREADY_EXISTS"
	StatusSkipped       Status = "SKIPPED"
	StatusError         Status = "ERROR"
)

// Result is the outcome for one input identifier. Name is set when the
// identifier went through name resolution; MBID when one is known.
type Result struct {
	Identifier string
	Name       string
	MBID       string
	Status     Status
	Detail     string
}

// Summary holds the report's aggregate counts.
type Summary struct {
	Total      int
	Added      int
	Existing   int
	Skipped    int
	Errors     int
	Resolved   int
	Unresolved int
}

// Report is the ordered outcome of a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Add appends a result in input order.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
}

// Summary counts results by status. An artist counts as resolved when it
// went through name resolution and came out with an MBID.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusAdded:
			s.Added++
		case StatusAlreadyExists:
			s.Existing++
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Errors++
		case StatusUnresolved:
			s.Unresolved++
		}
		if res.Name != "" && res.MBID != "" {
			s.Resolved++
		}
	}
	return s
}

// Failed reports whether any artist ended in ERROR. Unresolved names are a
// normal outcome and do not fail the run.
func (r *Report) Failed() bool {
	return r.Summary().Errors > 0
}

// String renders the summary line.
func (s Summary) String() string {
	return fmt.Sprintf("total=%d\tadded=%d\texisting=%d\tskipped=%d\terror=%d\tresolved=%d\tunresolved=%d",
		s.Total, s.Added, s.Existing, s.Skipped, s.Errors, s.Resolved, s.Unresolved)
}

// SummaryLine renders the trailing SUMMARY row of the report.
func (r *Report) SummaryLine() string {
	return fmt.Sprintf("SUMMARY\t%s\trun=%s\n", r.Summary(), r.RunID)
}

// ResultSink receives each result as soon as it is final.
type ResultSink interface {
	WriteResult(res Result) error
}

// ReportWriter streams report rows to a file, flushing after every artist
// so an interrupted run keeps the rows it finished. The file is created on
// the first write; a run that stops before its first artist leaves an
// older report in place.
type ReportWriter struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewReportWriter returns a writer for path. Nothing touches the disk
// until the first row.
func NewReportWriter(path string) *ReportWriter {
	return &ReportWriter{path: path}
}

// Path returns the report location.
func (rw *ReportWriter) Path() string { return rw.path }

// WriteResult appends one tab-separated row.
func (rw *ReportWriter) WriteResult(res Result) error {
	return rw.writeLine(fmt.Sprintf("%s\t%s\t%s\n", tsvField(res.Identifier), res.Status, tsvField(res.detail())))
}

// Finish appends the SUMMARY line for r and closes the file.
func (rw *ReportWriter) Finish(r *Report) error {
	err := rw.writeLine(r.SummaryLine())
	return errors.Join(err, rw.Close())
}

// Close flushes and closes the file if it was opened.
func (rw *ReportWriter) Close() error {
	if rw.f == nil {
		return nil
	}
	flushErr := rw.w.Flush()
	closeErr := rw.f.Close()
	rw.f, rw.w = nil, nil
	return errors.Join(flushErr, closeErr)
}

func (rw *ReportWriter) writeLine(line string) error {
	if rw.f == nil {
		f, err := filesystem.OpenStream(rw.path, false)
		if err != nil {
			return fmt.Errorf("opening report: %w", err)
		}
		rw.f, rw.w = f, bufio.NewWriter(f)
	}
	if _, err := io.WriteString(rw.w, line); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}
	return nil
}

// detail prefixes the MBID when the identifier is a name.
func (res Result) detail() string {
	if res.MBID == "" || res.MBID == res.Identifier {
		return res.Detail
	}
	if res.Detail == "" {
		return mbidPrefix + res.MBID
	}
	return mbidPrefix + res.MBID + " " + res.Detail
}

var tsvReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func tsvField(s string) string {
	return tsvReplacer.Replace(s)
}
