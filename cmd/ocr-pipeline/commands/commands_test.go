package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/internal/stats"
	"github.com/spherical/ocr-pipeline/pkg/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr := ui.Out, ui.Err
	ui.Out, ui.Err = &out, &errOut
	t.Cleanup(func() { ui.Out, ui.Err = prevOut, prevErr })
	return &out, &errOut
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.Execute()
}

func TestVersionCommand(t *testing.T) {
	out, _ := capture(t)
	require.NoError(t, execute(t, "version"))
	assert.Contains(t, out.String(), "ocr-pipeline version dev")
}

func TestModeRows(t *testing.T) {
	rows := modeRows()
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"tiny", "512", "512", "false", "tesseract, layout, vision"}, rows[0])
	assert.Equal(t, "large (default)", rows[3][0])
	assert.Equal(t, []string{"gundam", "1024", "640", "true"}, rows[4][:4])
}

func TestEngineName(t *testing.T) {
	newCmd := func(backend, mode string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("backend", backend, "")
		cmd.Flags().String("mode", mode, "")
		return cmd
	}

	name, err := engineName(newCmd("", ""))
	require.NoError(t, err)
	assert.Empty(t, name)

	name, err = engineName(newCmd("Vision", ""))
	require.NoError(t, err)
	assert.Equal(t, "vision/large", name)

	name, err = engineName(newCmd("layout", "TINY"))
	require.NoError(t, err)
	assert.Equal(t, "layout/tiny", name)

	_, err = engineName(newCmd("", "tiny"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))

	_, err = engineName(newCmd("vision", "huge"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))
}

func TestSummaryRows(t *testing.T) {
	timer := stats.NewTimer()
	require.NoError(t, timer.Record(stats.Preprocess, 2*time.Second))
	require.NoError(t, timer.Record(stats.Extract, 1500*time.Millisecond))

	s := &extractor.Summary{
		Stats:              timer.Finalize(),
		DocumentsProcessed: 1,
		DocumentsSkipped:   1,
		PagesSucceeded:     1,
		PagesFailed:        1,
		Documents: []domain.DocumentResult{
			{
				Document:     domain.Document{Name: "a.pdf"},
				MarkdownPath: "out/a_results.md",
				Pages: []domain.PageResult{
					{Number: 1, Status: domain.PageSucceeded},
					{Number: 2, Status: domain.PageExtractionError},
				},
			},
			{Document: domain.Document{Name: "b.pdf"}, Skipped: true},
		},
	}

	assert.Equal(t, [][]string{
		{"preprocess", "1", "1", "2s"},
		{"extract", "1", "1", "1.5s"},
		{"postprocess", "1", "0", "n/a"},
	}, summaryRows(s))

	assert.Equal(t, [][]string{
		{"a.pdf", "2", "1", "0", "out/a_results.md"},
		{"b.pdf", "-", "-", "-", "skipped"},
	}, documentRows(s))
}

func TestFailureRows(t *testing.T) {
	s := &extractor.Summary{
		Documents: []domain.DocumentResult{
			{
				Document: domain.Document{Name: "a.pdf"},
				Pages: []domain.PageResult{
					{Number: 1, Status: domain.PageSucceeded},
					{Number: 2, Status: domain.PageExtractionError, Err: domain.ExtractionError("page 2 timed out after 2m0s", nil)},
					{Number: 3, Status: domain.PageRenderOmitted, Err: domain.RenderError("wkhtmltopdf exited 1", nil)},
				},
			},
			{Document: domain.Document{Name: "b.pdf"}, Skipped: true, Err: domain.RasterizationError("b.pdf has no pages", nil)},
		},
	}

	assert.Equal(t, [][]string{
		{"a.pdf", "2", "extraction_failed", "[extraction] page 2 timed out after 2m0s"},
		{"a.pdf", "3", "render_omitted", "[render] wkhtmltopdf exited 1"},
		{"b.pdf", "-", "skipped", "[rasterization] b.pdf has no pages"},
	}, failureRows(s))
}

func TestPrintSummary_Cancelled(t *testing.T) {
	out, errOut := capture(t)
	printSummary(&extractor.Summary{
		Backend:   "layout/base",
		Cancelled: true,
		Documents: []domain.DocumentResult{{
			Document: domain.Document{Name: "a.pdf"},
			Pages:    []domain.PageResult{{Number: 1, Status: domain.PageSucceeded}},
		}},
	})

	assert.Contains(t, out.String(), "a.pdf")
	assert.Contains(t, errOut.String(), "run cancelled")
}

func TestRunCommand_MarkdownOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"errorCode":0,"result":{"layoutParsingResults":[{"markdown":{"text":"Hello <b>world</b>"}}]}}`)
	}))
	defer srv.Close()

	work := t.TempDir()
	t.Chdir(work)
	t.Setenv("LAYOUT_ENDPOINT", srv.URL+"/layout-parsing")
	t.Setenv("LOG_LEVEL", "error")

	in := filepath.Join(work, "batch")
	require.NoError(t, os.Mkdir(in, 0o755))
	f, err := os.Create(filepath.Join(in, "scan.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 16, 16))))
	require.NoError(t, f.Close())

	outDir := filepath.Join(work, "out")
	out, _ := capture(t)
	require.NoError(t, execute(t, "run", in, "--backend", "layout", "--mode", "small", "-o", outDir, "--no-render", "--no-color"))

	md, err := os.ReadFile(filepath.Join(outDir, "scan_results.md"))
	require.NoError(t, err)
	assert.Equal(t, "<!-- page 1 -->\n\nHello world\n", string(md))

	assert.Contains(t, out.String(), "Run Summary")
	assert.Contains(t, out.String(), "layout/small")
	assert.Contains(t, out.String(), "all documents processed")
}

func TestRunCommand_ConfigurationError(t *testing.T) {
	t.Chdir(t.TempDir())
	capture(t)

	err := execute(t, "run", t.TempDir(), "--mode", "colossal")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))
}
