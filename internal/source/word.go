// Package source performs the line-oriented scans of rst documents needed
// to answer queries: the word under the cursor, the directive defining a
// need and the option lines referencing it.
package source

import (
	"strings"
	"unicode/utf8"
)

// Character offsets are UTF-16 code units, as LSP positions count them.

func isSeparator(r rune) bool {
	return r == ' ' || r == ','
}

type span struct {
	text       string
	start, end int // UTF-16 offsets into the line
}

// tokens splits line on runs of spaces and commas. Offsets refer to the
// untrimmed line.
func tokens(line string) []span {
	var out []span
	col, start, from := 0, -1, 0
	for i, r := range line {
		if isSeparator(r) {
			if start >= 0 {
				out = append(out, span{text: line[from:i], start: start, end: col})
				start = -1
			}
		} else if start < 0 {
			start, from = col, i
		}
		col += utf16Len(r)
	}
	if start >= 0 {
		out = append(out, span{text: line[from:], start: start, end: col})
	}
	return out
}

// ExtractWord returns the token of line the cursor at character belongs
// to. A cursor directly after a token or inside the separators before a
// token selects that token; past the last token the last one is returned.
// Punctuation stays attached. An empty line yields "".
func ExtractWord(line string, character int) string {
	line = strings.TrimRight(line, "\r\n")
	toks := tokens(line)
	if len(toks) == 0 {
		return ""
	}
	for _, t := range toks {
		if character <= t.end {
			return t.text
		}
	}
	return toks[len(toks)-1].text
}

// WordAt extracts the word at (line, character) of a whole document.
// A line beyond the end of the document yields "".
func WordAt(text string, line, character int) string {
	l, ok := Line(text, line)
	if !ok {
		return ""
	}
	return ExtractWord(l, character)
}

// Line returns line n of text without its line terminator.
func Line(text string, n int) (string, bool) {
	if n < 0 {
		return "", false
	}
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			return "", false
		}
		text = text[idx+1:]
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimRight(text, "\r"), true
}

// SplitLines splits a document into lines, dropping CR of CRLF endings.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Column converts a byte offset in line to a UTF-16 offset.
func Column(line string, byteOffset int) int {
	col := 0
	for _, r := range line[:byteOffset] {
		col += utf16Len(r)
	}
	return col
}

func utf16Len(r rune) int {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}
