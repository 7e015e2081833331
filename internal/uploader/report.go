package uploader

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Failure describes one file that could not be uploaded.
type Failure struct {
	Path string
	Err  error
}

// Summary holds the final per-run counters. It is populated by a single
// collector goroutine and read only after the run completes.
type Summary struct {
	Uploaded   int
	Duplicates int
	Skipped    int
	Failed     int
	Failures   []Failure
}

func (s *Summary) record(o outcome) {
	switch o.kind {
	case outcomeUploaded:
		s.Uploaded++
	case outcomeDuplicate:
		s.Duplicates++
	case outcomeSkipped:
		s.Skipped++
	case outcomeFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Path: o.path, Err: o.err})
	}
}

// Total counts the files that reached a terminal outcome.
func (s *Summary) Total() int {
	return s.Uploaded + s.Duplicates + s.Skipped + s.Failed
}

var (
	greenCount  = color.New(color.FgGreen).SprintFunc()
	yellowCount = color.New(color.FgYellow).SprintFunc()
	redCount    = color.New(color.FgRed).SprintFunc()
)

// Render writes a human-readable run summary to w, including one line per
// failed file.
func (s *Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "Upload complete: %s uploaded, %s duplicates, %s skipped, %s failed (%d files)\n",
		greenCount(s.Uploaded), yellowCount(s.Duplicates), yellowCount(s.Skipped), redCount(s.Failed), s.Total())
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  %s %s: %v\n", redCount("failed"), f.Path, f.Err)
	}
}
