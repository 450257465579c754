package normalize

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "banner and reference span",
			raw:  "=====\nBASE: torch.Size([1,3])\nPATCHES: torch.Size([1,3])\n=====\nHello <|ref|>world<|/ref|> there",
			want: "Hello there",
		},
		{
			name: "simple table",
			raw:  "<table><tr><td>A</td><td>B</td></tr><tr><td>C</td><td>D</td></tr></table>",
			want: "A B\nC D",
		},
		{
			name: "table between paragraphs",
			raw:  "Totals\n<table border=\"1\"><tr><th> Item </th><th>Cost</th></tr><tr><td>Tea &amp; cake</td><td>4</td></tr></table>\nThanks",
			want: "Totals\nItem Cost\nTea & cake 4\nThanks",
		},
		{
			name: "empty table disappears",
			raw:  "before<table><tr></tr></table>after",
			want: "beforeafter",
		},
		{
			name: "detection spans across lines",
			raw:  "<|ref|>title<|/ref|><|det|>[[10, 20,\n 30, 40]]<|/det|>\n# Invoice 42",
			want: "# Invoice 42",
		},
		{
			name: "mangled close delimiter",
			raw:  "<table><tr><td>A<$/td><td>B</td></tr></table>",
			want: "A B",
		},
		{
			name: "orphan banner lines",
			raw:  "BASE: torch.Size([1, 1024])\nLine one\n  PATCHES:  torch.Size([2, 640])\n==========\nLine two",
			want: "Line one\nLine two",
		},
		{
			name: "windows line endings and blank lines",
			raw:  "first\r\n\r\n\r\n  second \t line  \rthird",
			want: "first\nsecond line\nthird",
		},
		{
			name: "stray tags",
			raw:  "<div class=\"page\"><b>Bold</b> text<br/></div>",
			want: "Bold text",
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
		{
			name: "decomposed accents are composed",
			raw:  "Cafe\u0301",
			want: "Caf\u00e9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

var tagPattern = regexp.MustCompile(`</?[^>\n]+>`)

// escapeTimes re-escapes every '&' in s n times.
func escapeTimes(s string, n int) string {
	for i := 0; i < n; i++ {
		s = strings.ReplaceAll(s, "&", "&amp;")
	}
	return s
}

func TestClean_DeeplyEscapedEntities(t *testing.T) {
	assert.Equal(t, "bold", Clean(escapeTimes("&lt;b&gt;bold", 9)))
	assert.Equal(t, "Qty & Price", Clean(escapeTimes("Qty &amp; Price", 12)))
}

func TestClean_Properties(t *testing.T) {
	inputs := []string{
		"=====\nBASE: torch.Size([1,3])\nPATCHES: torch.Size([1,3])\n=====\nHello <|ref|>world<|/ref|> there",
		"<table><tr><td>&lt;b&gt;x&lt;/b&gt;</td></tr></table>",
		"a &amp;lt;i&amp;gt; b",
		"<<b>>nested<</b>>",
		"<table><tr><td>open cell\n<table><tr><td>inner</td></tr></table>",
		"  \n\t\n  ",
		"plain text with a < sign and a > sign",
		"<|det|>[[1,2,3,4]]<|/det|><|ref|>unterminated",
		"=====\n=====\n",
		"line\n\n\n<p>para</p>\n\n<p>para two</p>",
		escapeTimes("&lt;b&gt;bold", 9),
		escapeTimes("x &lt;i&gt;deep&lt;/i&gt; y", 25),
		strings.Repeat("<", 12) + "b" + strings.Repeat(">b", 12),
	}

	for _, raw := range inputs {
		once := Clean(raw)
		assert.Equal(t, once, Clean(once), "Clean must be idempotent for %q", raw)
		assert.False(t, tagPattern.MatchString(once), "tag left in %q -> %q", raw, once)
		assert.NotContains(t, once, "\n\n")
		assert.NotContains(t, once, "<|ref|>")
		assert.NotContains(t, once, "<|det|>")
	}
}

func TestStripBanners_KeepsOrdinaryEquals(t *testing.T) {
	in := "x = y\n2 == 2"
	assert.Equal(t, in, StripBanners(in))
}

func TestRebuildTables_CaseInsensitive(t *testing.T) {
	got := RebuildTables("<TABLE><TR><TD>1</TD><TD>2</TD></TR></TABLE>")
	assert.Equal(t, "1 2", got)
}

func TestRebuildTables_ImpliedCellEnds(t *testing.T) {
	got := RebuildTables("<table><tr><td>a<td>b<tr><td>c</table>")
	assert.Equal(t, "a b\nc", got)
}
