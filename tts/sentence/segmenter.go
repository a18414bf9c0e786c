package sentence

import (
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/tonic/tts"
)

var defaultParser = NewParser()

// Segment splits text into segments using the default parser.
func Segment(text string, minChars, maxChars int) ([]tts.Segment, error) {
	return defaultParser.Segment(text, minChars, maxChars)
}

// Segment greedily packs natural units into segments. A buffer is flushed
// once it holds at least minChars runes. A buffer longer than maxChars is
// cut at exactly maxChars runes and the remainder keeps accumulating. A
// single unit longer than maxChars is rejected with SegmentTooLongError.
//
// Whitespace-only pieces are dropped, so an empty input yields no segments
// and no error.
func (p *Parser) Segment(text string, minChars, maxChars int) ([]tts.Segment, error) {
	if text == "" {
		return nil, nil
	}

	var pieces []string
	flush := func(s string) {
		if strings.TrimSpace(s) != "" {
			pieces = append(pieces, s)
		}
	}

	var buf []rune
	for _, unit := range p.Units(text, maxChars) {
		line := []rune(strings.TrimSpace(unit))
		if len(line) == 0 {
			continue
		}
		if maxChars > 0 && len(line) > maxChars {
			return nil, &tts.SegmentTooLongError{Unit: string(line), Limit: maxChars}
		}

		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, line...)

		for maxChars > 0 && len(buf) > maxChars {
			flush(string(buf[:maxChars]))
			buf = append([]rune(nil), buf[maxChars:]...)
		}
		if len(buf) >= minChars {
			flush(string(buf))
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		flush(string(buf))
	}

	segments := make([]tts.Segment, len(pieces))
	for i, s := range pieces {
		segments[i] = tts.Segment{Text: s, Index: i + 1, Total: len(pieces)}
	}
	return segments, nil
}

// RuneLen returns the length of s in characters.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
