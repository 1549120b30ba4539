package app

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.lsp.dev/protocol"
)

// ApplyTextEdits applies server edits to content and returns the result.
// Positions are UTF-16 code units per the protocol. Application is
// all-or-nothing: every range is validated before the first byte changes,
// and any out-of-range or overlapping edit rejects the whole batch.
func ApplyTextEdits(content string, edits []protocol.TextEdit) (string, error) {
	if len(edits) == 0 {
		return content, nil
	}

	idx := newLineIndex(content)
	type span struct {
		start, end int
		text       string
	}
	spans := make([]span, 0, len(edits))
	for i, e := range edits {
		start, err := idx.offset(e.Range.Start)
		if err != nil {
			return "", fmt.Errorf("edit %d: %w", i, err)
		}
		end, err := idx.offset(e.Range.End)
		if err != nil {
			return "", fmt.Errorf("edit %d: %w", i, err)
		}
		if end < start {
			return "", fmt.Errorf("edit %d: end before start", i)
		}
		spans = append(spans, span{start: start, end: end, text: e.NewText})
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return "", fmt.Errorf("edits %d and %d overlap", i-1, i)
		}
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, s := range spans {
		b.WriteString(content[last:s.start])
		b.WriteString(s.text)
		last = s.end
	}
	b.WriteString(content[last:])
	return b.String(), nil
}

// lineIndex maps protocol positions to byte offsets.
type lineIndex struct {
	content string
	starts  []int
}

func newLineIndex(content string) lineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{content: content, starts: starts}
}

func (ix lineIndex) offset(p protocol.Position) (int, error) {
	line := int(p.Line)
	if line >= len(ix.starts) {
		return 0, fmt.Errorf("line %d out of range", p.Line)
	}
	lineStart := ix.starts[line]
	lineEnd := len(ix.content)
	if line+1 < len(ix.starts) {
		lineEnd = ix.starts[line+1] - 1
	}

	want := int(p.Character)
	units := 0
	byteOff := lineStart
	for _, r := range ix.content[lineStart:lineEnd] {
		if units == want {
			return byteOff, nil
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		byteOff += utf8.RuneLen(r)
		if units > want {
			return 0, fmt.Errorf("position %d:%d splits a surrogate pair", p.Line, p.Character)
		}
	}
	if units == want {
		return byteOff, nil
	}
	return 0, fmt.Errorf("character %d out of range on line %d", p.Character, p.Line)
}
