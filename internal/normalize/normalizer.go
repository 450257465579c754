// Package normalize turns raw OCR engine output into clean page text.
//
// Engines return text mixed with grounding annotations, tensor shape dumps
// and HTML table fragments. Clean removes all of it in a fixed sequence of
// passes; each pass assumes the ones before it already ran.
package normalize

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	bannerBlock = regexp.MustCompile(
		`(?mi)^\s*={5,}\s*\n` +
			`\s*BASE:\s*torch\.Size\([^\n]*\)\s*\n` +
			`\s*PATCHES:\s*torch\.Size\([^\n]*\)\s*\n` +
			`^\s*={5,}[ \t]*$`)
	orphanBase    = regexp.MustCompile(`(?mi)^[ \t]*BASE:\s*torch\.Size\([^\n]*\)[ \t]*$`)
	orphanPatches = regexp.MustCompile(`(?mi)^[ \t]*PATCHES:\s*torch\.Size\([^\n]*\)[ \t]*$`)
	separatorLine = regexp.MustCompile(`(?m)^[ \t]*=+[ \t]*$`)

	refSpan = regexp.MustCompile(`(?s)<\|ref\|>.*?<\|/ref\|>`)
	detSpan = regexp.MustCompile(`(?s)<\|det\|>.*?<\|/det\|>`)

	tableBlock = regexp.MustCompile(`(?is)<table\b[^>]*>.*?</table>`)
	anyTag     = regexp.MustCompile(`</?[^>\n]+>`)

	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	spaceAroundLF   = regexp.MustCompile(`\s*\n\s*`)
	repeatedLF      = regexp.MustCompile(`\n{2,}`)
)

// Clean runs every pass over raw and returns the canonical page text.
// The result contains no markup tags, banners or grounding spans, and
// Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	// A pass that changes its input removes a tag, an entity, a banner or
	// a line break; none of them is put back, so the loop ends.
	out := pass(raw)
	for {
		next := pass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func pass(s string) string {
	s = NormalizeNewlines(s)
	s = StripBanners(s)
	s = StripGrounding(s)
	s = RebuildTables(s)
	s = StripTags(s)
	s = norm.NFC.String(s)
	return CollapseWhitespace(s)
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// StripBanners removes tensor shape debug blocks framed by lines of '='
// together with any BASE/PATCHES or separator lines left over from a
// partial block.
func StripBanners(s string) string {
	s = bannerBlock.ReplaceAllString(s, "")
	s = orphanBase.ReplaceAllString(s, "")
	s = orphanPatches.ReplaceAllString(s, "")
	return separatorLine.ReplaceAllString(s, "")
}

// StripGrounding decodes HTML entities, repairs the mangled "<$/" close
// delimiter some engines emit and removes reference and detection spans
// with everything they enclose.
func StripGrounding(s string) string {
	s = unescapeAll(s)
	s = strings.ReplaceAll(s, "<$/", "</")
	s = refSpan.ReplaceAllString(s, "")
	s = detSpan.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// unescapeAll decodes entities until none are left, so "&amp;lt;" ends up
// as "<" however many times it was escaped. Each decoding round that
// changes s consumes at least one '&'.
func unescapeAll(s string) string {
	for strings.Contains(s, "&") {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// RebuildTables replaces each HTML table with its rows as plain text.
func RebuildTables(s string) string {
	return tableBlock.ReplaceAllStringFunc(s, renderTable)
}

// StripTags removes any remaining angle bracket tags.
func StripTags(s string) string {
	return anyTag.ReplaceAllString(s, "")
}

// CollapseWhitespace squeezes horizontal runs to one space, trims every
// line, drops blank lines and trims the result.
func CollapseWhitespace(s string) string {
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceAroundLF.ReplaceAllString(s, "\n")
	s = repeatedLF.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
