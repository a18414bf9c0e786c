// Package sentence splits input text into speakable segments.
package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// closers may trail sentence punctuation and still belong to the sentence.
const closers = "\"')]”’»"

// openers may start a sentence.
const openers = "\"'([“‘«"

// Parser finds natural text boundaries. It is safe for concurrent use.
type Parser struct {
	// Common abbreviations that don't end sentences
	abbreviations map[string]bool
}

// NewParser creates a new boundary parser.
func NewParser() *Parser {
	return &Parser{
		abbreviations: makeAbbreviationMap(),
	}
}

// Units splits text into natural units. Each non-blank line is one unit as
// long as it fits in maxChars runes; longer lines are split at sentence
// ends. A maxChars of zero or less disables the line length check.
func (p *Parser) Units(text string, maxChars int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var units []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if maxChars <= 0 || utf8.RuneCountInString(line) <= maxChars {
			units = append(units, line)
			continue
		}
		units = append(units, p.Sentences(line)...)
	}
	return units
}

// Sentences splits text at sentence boundaries. Abbreviations, decimals,
// initialisms and ellipses do not end a sentence.
func (p *Parser) Sentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	lastStart := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || !p.isSentenceEnd(runes, i) {
			continue
		}

		end := i + 1
		for end < len(runes) && isTerminal(runes[end]) {
			end++
		}
		for end < len(runes) && strings.ContainsRune(closers, runes[end]) {
			end++
		}

		if s := strings.TrimSpace(string(runes[lastStart:end])); s != "" {
			sentences = append(sentences, s)
		}

		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		lastStart = end
		i = end - 1
	}

	if lastStart < len(runes) {
		if s := strings.TrimSpace(string(runes[lastStart:])); s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isSentenceEnd checks if the punctuation at pos ends a sentence.
func (p *Parser) isSentenceEnd(runes []rune, pos int) bool {
	punct := runes[pos]

	if punct == '.' {
		// Ellipsis
		if pos > 0 && runes[pos-1] == '.' {
			return false
		}
		if pos+1 < len(runes) && runes[pos+1] == '.' {
			return false
		}

		start := pos - 1
		for start >= 0 && !unicode.IsSpace(runes[start]) {
			start--
		}
		wordBefore := strings.ToLower(string(runes[start+1 : pos+1]))
		wordBefore = strings.TrimLeft(wordBefore, openers)
		wordNoPeriod := strings.TrimSuffix(wordBefore, ".")

		if p.abbreviations[wordNoPeriod] {
			return false
		}

		// Multi-part abbreviations like "Ph.D." or "U.S."
		if strings.Count(wordBefore, ".") > 1 {
			return false
		}

		// Decimal numbers
		if pos > 0 && pos+1 < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
			return false
		}
	}

	nextPos := pos + 1
	for nextPos < len(runes) && (isTerminal(runes[nextPos]) || strings.ContainsRune(closers, runes[nextPos])) {
		if isTerminal(runes[nextPos]) {
			// Let the last mark of a run like "?!" decide.
			return false
		}
		nextPos++
	}

	if nextPos >= len(runes) {
		return true
	}

	if !unicode.IsSpace(runes[nextPos]) {
		return false
	}

	for nextPos < len(runes) && unicode.IsSpace(runes[nextPos]) {
		nextPos++
	}
	if nextPos >= len(runes) {
		return true
	}

	next := runes[nextPos]
	if unicode.IsUpper(next) || unicode.IsDigit(next) || strings.ContainsRune(openers, next) {
		return true
	}

	// Exclamation and question marks end sentences even before lowercase.
	return punct == '!' || punct == '?'
}

// makeAbbreviationMap creates a map of common abbreviations.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"llc", "inc", "ltd", "co", "corp",
		"etc", "vs", "cf", "al", "approx", "ext", "tel",
		"jan", "feb", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri",
		"rd", "ave", "blvd", "ln", "ct",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}
