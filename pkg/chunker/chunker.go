// Package chunker splits contract text into retrieval-sized fragments.
// Splitting prefers clause and sentence boundaries over hard cuts so an
// evidence excerpt reads as a coherent passage.
package chunker

import (
	"strings"
	"unicode/utf8"
)

type Options struct {
	// Size is the target fragment length in runes.
	Size int
	// Overlap repeats the tail of one fragment at the head of the next,
	// only applied by the fixed-window fallback.
	Overlap int
}

func DefaultOptions() Options {
	return Options{Size: 1000, Overlap: 200}
}

type Fragment struct {
	Text  string
	Index int
}

// separators in preference order: paragraph break, clause break (contracts
// number their clauses with newlines), sentence end, word boundary.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into fragments no longer than opts.Size runes, breaking at
// the coarsest separator that fits.
func Split(text string, opts Options) []Fragment {
	if opts.Size <= 0 {
		opts.Size = DefaultOptions().Size
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	var frags []Fragment
	for _, piece := range split(text, separators, opts) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		frags = append(frags, Fragment{Text: piece, Index: len(frags)})
	}
	return frags
}

func split(text string, seps []string, opts Options) []string {
	if utf8.RuneCountInString(text) <= opts.Size {
		return []string{text}
	}
	if len(seps) == 0 {
		return fixedWindows(text, opts)
	}

	sep := seps[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return split(text, seps[1:], opts)
	}

	var out []string
	var cur strings.Builder
	for _, part := range parts {
		if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+utf8.RuneCountInString(sep+part) > opts.Size {
			out = append(out, split(cur.String(), seps[1:], opts)...)
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(part)
	}
	if cur.Len() > 0 {
		out = append(out, split(cur.String(), seps[1:], opts)...)
	}
	return out
}

func fixedWindows(text string, opts Options) []string {
	runes := []rune(text)
	step := opts.Size - opts.Overlap
	if step <= 0 {
		step = opts.Size
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + opts.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
