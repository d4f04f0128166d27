package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Window is the text between a start marker and an end marker.
type Window struct {
	Found    bool
	Segments []Segment
}

// Text joins the window segments with newlines. It is empty when the start
// marker was not found.
func (w Window) Text() string {
	if !w.Found {
		return ""
	}
	parts := make([]string, len(w.Segments))
	for i, s := range w.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n")
}

// LocateSection returns the window that begins at the first occurrence of
// start and ends before the first occurrence of end that follows it. The
// window crosses page boundaries. When end is empty or never occurs, the
// window runs to the end of the document. Matching ignores case, and any
// whitespace in a marker matches any run of whitespace (including none).
func LocateSection(pt PageText, start, end string) Window {
	startRe := markerPattern(start)
	if startRe == nil {
		return Window{}
	}
	endRe := markerPattern(end)

	var w Window
	for _, seg := range pt.Lines() {
		text := seg.Text
		if !w.Found {
			loc := startRe.FindStringIndex(text)
			if loc == nil {
				continue
			}
			w.Found = true
			text = text[loc[0]:]
			markerLen := loc[1] - loc[0]
			if endRe != nil {
				if e := endRe.FindStringIndex(text[markerLen:]); e != nil {
					w.add(seg.Page, text[:markerLen+e[0]])
					return w
				}
			}
			w.add(seg.Page, text)
			continue
		}

		if endRe != nil {
			if e := endRe.FindStringIndex(text); e != nil {
				w.add(seg.Page, text[:e[0]])
				return w
			}
		}
		w.add(seg.Page, text)
	}
	return w
}

func (w *Window) add(page int, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.Segments = append(w.Segments, Segment{Page: page, Text: text})
}

// markerPattern compiles a heading marker into a case-insensitive pattern.
// Word boundaries are added at either end that starts or ends with a word
// character so that "Section 1" does not match "Section 14".
func markerPattern(marker string) *regexp.Regexp {
	words := strings.Fields(marker)
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	expr := strings.Join(quoted, `\s*`)

	first, _ := utf8.DecodeRuneInString(words[0])
	last, _ := utf8.DecodeLastRuneInString(words[len(words)-1])
	if isWordRune(first) {
		expr = `\b` + expr
	}
	if isWordRune(last) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isWordRune(r rune) bool {
	return r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}
