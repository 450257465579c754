package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/stats"
	"github.com/spherical/ocr-pipeline/pkg/extractor"
)

// trackProgress renders one progress bar per document until events closes.
func trackProgress(events <-chan extractor.StreamEvent) {
	var bar *ui.PageBar
	finish := func() {
		if bar != nil {
			bar.Done()
			bar = nil
		}
	}
	defer finish()

	for event := range events {
		switch event.Type {
		case extractor.EventRasterized:
			finish()
			bar = ui.NewPageBar(event.Document, event.Total)
		case extractor.EventPageComplete:
			if bar != nil {
				bar.Page(event.PageNumber)
			}
		case extractor.EventDocumentDone:
			finish()
		case extractor.EventDocumentSkipped:
			finish()
			ui.Warning("skipped %s: %v", event.Document, event.Payload)
		case extractor.EventError:
			if event.PageNumber > 0 && ui.Verbose() {
				ui.Warning("%s page %d: %v", event.Document, event.PageNumber, event.Payload)
			}
		}
	}
}

// summaryRows builds the per-stage table: units that made it through the
// stage, units lost there, and the average time of the successful ones.
func summaryRows(s *extractor.Summary) [][]string {
	counts := s.StageCounts()
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		avg := "n/a"
		if d, err := s.Stats.Average(c.Stage); err == nil {
			avg = ui.FormatDuration(d)
		} else if !errors.Is(err, stats.ErrNoData) {
			avg = err.Error()
		}
		rows = append(rows, []string{
			string(c.Stage),
			strconv.Itoa(c.Succeeded),
			strconv.Itoa(c.Failed),
			avg,
		})
	}
	return rows
}

// documentRows lists every document with its page outcome and artifacts.
func documentRows(s *extractor.Summary) [][]string {
	rows := make([][]string, 0, len(s.Documents))
	for _, d := range s.Documents {
		if d.Skipped {
			rows = append(rows, []string{d.Document.Name, "-", "-", "-", "skipped"})
			continue
		}
		output := d.ArtifactPath
		if output == "" {
			output = d.MarkdownPath
		}
		if output == "" {
			output = "-"
		}
		rows = append(rows, []string{
			d.Document.Name,
			strconv.Itoa(len(d.Pages)),
			strconv.Itoa(d.Failed()),
			strconv.Itoa(d.Omitted()),
			output,
		})
	}
	return rows
}

// failureRows lists every skipped document and every page that failed or
// was left out of its reassembled document, with the reason.
func failureRows(s *extractor.Summary) [][]string {
	var rows [][]string
	for _, d := range s.Documents {
		if d.Skipped {
			rows = append(rows, []string{d.Document.Name, "-", "skipped", errText(d.Err)})
			continue
		}
		for _, p := range d.Pages {
			if p.Status == domain.PageSucceeded {
				continue
			}
			rows = append(rows, []string{d.Document.Name, strconv.Itoa(p.Number), string(p.Status), errText(p.Err)})
		}
	}
	return rows
}

func errText(err error) string {
	if err == nil {
		return "-"
	}
	return err.Error()
}

func printSummary(s *extractor.Summary) {
	ui.Section("Run Summary")
	ui.KeyValue("Run", s.RunID)
	ui.KeyValue("Backend", s.Backend)
	ui.KeyValue("Documents", fmt.Sprintf("%d processed, %d skipped", s.DocumentsProcessed, s.DocumentsSkipped))
	ui.KeyValue("Pages", fmt.Sprintf("%d", s.Pages()))
	ui.KeyValue("Elapsed", ui.FormatDuration(s.Elapsed))
	if speed, err := s.SecondsPerPage(); err == nil {
		ui.KeyValue("Reading speed", fmt.Sprintf("%.2f s/page", speed))
	}
	ui.Newline()

	ui.Table([]string{"Stage", "Succeeded", "Failed", "Average"}, summaryRows(s))

	if len(s.Documents) > 0 {
		ui.Newline()
		ui.Table([]string{"Document", "Pages", "Failed", "Omitted", "Output"}, documentRows(s))
	}
	if failures := failureRows(s); len(failures) > 0 {
		ui.Newline()
		ui.Table([]string{"Document", "Page", "Status", "Reason"}, failures)
	}
	ui.Newline()

	switch {
	case s.Cancelled:
		ui.Warning("run cancelled; results above cover the work finished before it stopped")
	case len(s.Documents) == 0:
		ui.Warning("no supported documents found")
	case s.Failed():
		ui.Warning("run finished with failures")
	default:
		ui.Success("all documents processed")
	}
}
