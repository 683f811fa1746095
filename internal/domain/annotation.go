package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var reviewColors = map[ReviewType]string{
	ReviewTypeGrammar:     "#fbbf24",
	ReviewTypeStructure:   "#60a5fa",
	ReviewTypeWritingHelp: "#a78bfa",
}

// Color is the highlight color used for annotations of type t.
func (t ReviewType) Color() string {
	if c, ok := reviewColors[t]; ok {
		return c
	}
	return reviewColors[ReviewTypeGrammar]
}

// Annotation highlights the span of a submission a review suggestion
// refers to. Offsets count characters (runes) of the NFC-normalized content,
// markup included; EndOffset is exclusive.
type Annotation struct {
	SuggestionIndex int        `json:"suggestionIndex"`
	HighlightedText string     `json:"highlightedText"`
	StartOffset     int        `json:"startOffset"`
	EndOffset       int        `json:"endOffset"`
	SuggestionType  ReviewType `json:"suggestionType"`
	Color           string     `json:"color"`
}

// TextLocator finds snippets of a submission's visible text. Markup tags
// are skipped, matching ignores case, and any run of whitespace matches any
// other run.
type TextLocator struct {
	plain   []rune
	offsets []int // offsets[i] is the content offset of plain[i]
}

// NewTextLocator prepares content for repeated lookups.
func NewTextLocator(content string) *TextLocator {
	l := &TextLocator{}
	inTag := false
	for i, r := range []rune(norm.NFC.String(content)) {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			l.plain = append(l.plain, r)
			l.offsets = append(l.offsets, i)
		}
	}
	return l
}

// Find returns the content offsets of the first occurrence of snippet.
func (l *TextLocator) Find(snippet string) (start, end int, ok bool) {
	needle := []rune(strings.Join(strings.Fields(norm.NFC.String(snippet)), " "))
	if len(needle) == 0 {
		return 0, 0, false
	}
	for i := range l.plain {
		if n := l.matchAt(i, needle); n > 0 {
			return l.offsets[i], l.offsets[i+n-1] + 1, true
		}
	}
	return 0, 0, false
}

// matchAt returns how many plain runes needle covers starting at i, or 0.
func (l *TextLocator) matchAt(i int, needle []rune) int {
	p := i
	for _, r := range needle {
		if p >= len(l.plain) {
			return 0
		}
		if r == ' ' {
			if !unicode.IsSpace(l.plain[p]) {
				return 0
			}
			for p < len(l.plain) && unicode.IsSpace(l.plain[p]) {
				p++
			}
			continue
		}
		if unicode.ToLower(l.plain[p]) != unicode.ToLower(r) {
			return 0
		}
		p++
	}
	return p - i
}
