package extract

import (
	"sort"

	"github.com/a3tai/label-extractor/internal/analysis"
)

// Segment is one line of recognized text with the page it came from.
type Segment struct {
	Page int
	Text string
}

// PageText holds LINE text grouped by page. Pages with no LINE blocks have
// no entry.
type PageText struct {
	pages []int
	lines map[int][]string
}

// GroupPages groups LINE blocks by page, preserving block order within each
// page. Other block types are ignored. Blocks without a positive page number
// land on analysis.DefaultPage.
func GroupPages(blocks []analysis.Block) PageText {
	pt := PageText{lines: make(map[int][]string)}
	for _, b := range blocks {
		if b.Type != analysis.BlockTypeLine {
			continue
		}
		page := b.Page
		if page < 1 {
			page = analysis.DefaultPage
		}
		if _, seen := pt.lines[page]; !seen {
			pt.pages = append(pt.pages, page)
		}
		pt.lines[page] = append(pt.lines[page], b.Text)
	}
	sort.Ints(pt.pages)
	return pt
}

// Pages returns the page numbers that have text, ascending.
func (pt PageText) Pages() []int {
	out := make([]int, len(pt.pages))
	copy(out, pt.pages)
	return out
}

// Page returns the lines of page n, or nil when the page has none.
func (pt PageText) Page(n int) []string {
	lines, ok := pt.lines[n]
	if !ok {
		return nil
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// Lines flattens the pages into segments in page order.
func (pt PageText) Lines() []Segment {
	var out []Segment
	for _, p := range pt.pages {
		for _, text := range pt.lines[p] {
			out = append(out, Segment{Page: p, Text: text})
		}
	}
	return out
}

// Len is the total number of lines.
func (pt PageText) Len() int {
	n := 0
	for _, lines := range pt.lines {
		n += len(lines)
	}
	return n
}
