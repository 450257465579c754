package pipeline

import (
	"time"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/stats"
)

// Summary reports the outcome of one run.
type Summary struct {
	RunID     string
	Backend   string
	Rendered  bool
	Documents []domain.DocumentResult
	Stats     stats.Snapshot
	Elapsed   time.Duration
	// Cancelled marks a summary of a run stopped by its context; Documents
	// holds what finished before that, the last one possibly partial.
	Cancelled bool

	DocumentsProcessed int
	DocumentsSkipped   int
	PagesSucceeded     int
	PagesFailed        int
	PagesOmitted       int
}

// StageCount pairs the units a stage completed with those it lost.
type StageCount struct {
	Stage     stats.Stage
	Succeeded int
	Failed    int
}

func (s *Summary) tally() {
	s.DocumentsProcessed, s.DocumentsSkipped = 0, 0
	s.PagesSucceeded, s.PagesFailed, s.PagesOmitted = 0, 0, 0
	for _, d := range s.Documents {
		if d.Skipped {
			s.DocumentsSkipped++
			continue
		}
		s.DocumentsProcessed++
		s.PagesSucceeded += d.Succeeded()
		s.PagesFailed += d.Failed()
		s.PagesOmitted += d.Omitted()
	}
}

// Pages returns the number of pages that went through extraction.
func (s *Summary) Pages() int {
	return s.PagesSucceeded + s.PagesFailed
}

// StageCounts lists successes and failures per stage in execution order.
// A page omitted from the reassembled PDF counts as a postprocess failure.
func (s *Summary) StageCounts() []StageCount {
	return []StageCount{
		{Stage: stats.Preprocess, Succeeded: s.DocumentsProcessed, Failed: s.DocumentsSkipped},
		{Stage: stats.Extract, Succeeded: s.PagesSucceeded, Failed: s.PagesFailed},
		{Stage: stats.Postprocess, Succeeded: s.PagesSucceeded - s.PagesOmitted, Failed: s.PagesOmitted},
	}
}

// SecondsPerPage is the reading speed of the run: wall time over the pages
// that went through extraction.
func (s *Summary) SecondsPerPage() (float64, error) {
	n := s.Pages()
	if n == 0 {
		return 0, stats.ErrNoData
	}
	return s.Elapsed.Seconds() / float64(n), nil
}

// Failed reports whether any document or page did not make it through.
func (s *Summary) Failed() bool {
	return s.DocumentsSkipped > 0 || s.PagesFailed > 0 || s.PagesOmitted > 0
}
