package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and answers with a canned result.
type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	out   []byte
	err   error
	// onCall lets a test act like the program, e.g. write the output file.
	onCall func(args []string)
}

type call struct {
	name  string
	args  []string
	stdin string
}

func (f *fakeRunner) run(_ context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args, stdin: string(stdin)})
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(args)
	}
	return f.out, f.err
}

func TestRenderer_HTML(t *testing.T) {
	r := NewRenderer(RendererOptions{})

	got, err := r.HTML("# Invoice\nline one\nline two\n\n| A | B |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)

	html := string(got)
	assert.Contains(t, html, `<meta charset="utf-8">`)
	assert.Contains(t, html, "<h1>Invoice</h1>")
	assert.Contains(t, html, "line one<br")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>2</td>")
}

func TestRenderer_Render(t *testing.T) {
	fake := &fakeRunner{out: []byte("%PDF-1.4 fake")}
	r := NewRenderer(RendererOptions{Binary: "html2pdf", Runner: fake.run})

	pdf, err := r.Render(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(pdf))

	require.Len(t, fake.calls, 1)
	c := fake.calls[0]
	assert.Equal(t, "html2pdf", c.name)
	assert.Equal(t, []string{"--quiet", "--encoding", "utf-8", "-", "-"}, c.args)
	assert.Contains(t, c.stdin, "<p>Hello</p>")
}

func TestRenderer_RenderFailures(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeRunner
	}{
		{"converter fails", &fakeRunner{err: errors.New("exit status 1")}},
		{"converter prints garbage", &fakeRunner{out: []byte("<html>")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(RendererOptions{Runner: tt.fake.run})
			_, err := r.Render(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeRender))
		})
	}
}

func TestAssembler_MergesInOrder(t *testing.T) {
	out := t.TempDir()
	var staged []string
	fake := &fakeRunner{}
	fake.onCall = func(args []string) {
		for _, p := range args[:len(args)-1] {
			data, err := os.ReadFile(p)
			require.NoError(t, err)
			staged = append(staged, string(data))
		}
		require.NoError(t, os.WriteFile(args[len(args)-1], []byte("%PDF merged"), 0o644))
	}

	a := NewAssembler(AssemblerOptions{OutputDir: out, Runner: fake.run})
	doc := domain.Document{Name: "report.pdf"}

	path, err := a.Assemble(context.Background(), doc, [][]byte{[]byte("p1"), []byte("p2"), []byte("p3")})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "report_results.pdf"), path)
	assert.Equal(t, []string{"p1", "p2", "p3"}, staged)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, DefaultMerge, fake.calls[0].name)
	assert.FileExists(t, path)
}

func TestAssembler_SinglePageSkipsMerge(t *testing.T) {
	out := t.TempDir()
	fake := &fakeRunner{}
	a := NewAssembler(AssemblerOptions{OutputDir: out, Runner: fake.run})

	path, err := a.Assemble(context.Background(), domain.Document{Name: "one.png"}, [][]byte{[]byte("%PDF only")})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF only", string(data))
	assert.Empty(t, fake.calls)
}

func TestAssembler_Failures(t *testing.T) {
	a := NewAssembler(AssemblerOptions{OutputDir: t.TempDir(), Runner: (&fakeRunner{err: errors.New("boom")}).run})
	doc := domain.Document{Name: "x.pdf"}

	_, err := a.Assemble(context.Background(), doc, nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeRender))

	_, err = a.Assemble(context.Background(), doc, [][]byte{[]byte("a"), []byte("b")})
	assert.True(t, domain.IsType(err, domain.ErrorTypeRender))
}

func TestWriteMarkdown(t *testing.T) {
	out := t.TempDir()
	pages := []domain.PageResult{
		{Number: 1, Status: domain.PageSucceeded, Text: "# Title"},
		{Number: 2, Status: domain.PageExtractionError},
		{Number: 3, Status: domain.PageRenderOmitted, Text: "last page"},
		{Number: 4, Status: domain.PageSucceeded},
	}

	path, err := WriteMarkdown(out, domain.Document{Name: "scan.v2.pdf"}, pages)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "scan.v2_results.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := strings.Join([]string{
		"<!-- page 1 -->",
		"",
		"# Title",
		"",
		"<!-- page 2: extraction failed -->",
		"",
		"<!-- page 3 -->",
		"",
		"last page",
		"",
		"<!-- page 4 -->",
		"",
	}, "\n")
	assert.Equal(t, want, string(data))
}

func TestCheckBinary(t *testing.T) {
	err := CheckBinary("definitely-not-a-real-converter-binary")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfiguration))
}
