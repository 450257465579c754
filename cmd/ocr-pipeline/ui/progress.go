package ui

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// PageBar shows how many pages of one document have been read.
type PageBar struct {
	bar *progressbar.ProgressBar
}

// NewPageBar starts a bar for a document of pages pages.
func NewPageBar(document string, pages int) *PageBar {
	bar := progressbar.NewOptions(pages,
		progressbar.OptionSetWriter(Err),
		progressbar.OptionSetDescription(color.CyanString("%-24s", truncate(document, 24))),
		progressbar.OptionEnableColorCodes(!color.NoColor),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(Err) }),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &PageBar{bar: bar}
}

// Page marks page n (1-based) as done.
func (p *PageBar) Page(n int) {
	_ = p.bar.Set(n)
}

// Done completes the bar, even when pages were skipped.
func (p *PageBar) Done() {
	_ = p.bar.Finish()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Spinner marks work without a known length, such as probing a backend.
type Spinner struct {
	s *spinner.Spinner
}

func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[11], 120*time.Millisecond, spinner.WithWriter(Err))
	s.Suffix = " " + message
	if !color.NoColor {
		_ = s.Color("cyan")
	}
	return &Spinner{s: s}
}

func (s *Spinner) Start() { s.s.Start() }
func (s *Spinner) Stop()  { s.s.Stop() }
