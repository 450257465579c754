package normalize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// renderTable flattens one <table> block: cells of a row are joined by a
// single space and rows by a line break. Rows without cells are dropped, so
// a table without cells renders as the empty string.
func renderTable(block string) string {
	var (
		rows   []string
		cells  []string
		cell   strings.Builder
		inRow  bool
		inCell bool
	)

	endCell := func() {
		if inCell {
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
			inCell = false
		}
	}
	endRow := func() {
		endCell()
		if inRow && len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " "))
		}
		cells = cells[:0]
		inRow = false
	}

	z := html.NewTokenizer(strings.NewReader(block))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.TextToken:
			if inCell {
				cell.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Tr:
				endRow()
				inRow = true
			case atom.Td, atom.Th:
				endCell()
				inRow = true
				inCell = tt == html.StartTagToken
			case atom.Br:
				if inCell {
					cell.WriteByte(' ')
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Td, atom.Th:
				endCell()
			case atom.Tr, atom.Table:
				endRow()
			}
		}
	}
	endRow()

	return strings.Join(rows, "\n")
}
