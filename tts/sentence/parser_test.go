package sentence

import (
	"reflect"
	"strings"
	"testing"
)

func TestSentencesPlainText(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple sentences",
			input:    "Hello world. How are you? I'm fine!",
			expected: []string{"Hello world.", "How are you?", "I'm fine!"},
		},
		{
			name:     "sentences with newlines",
			input:    "First sentence.\nSecond sentence.\nThird sentence.",
			expected: []string{"First sentence.", "Second sentence.", "Third sentence."},
		},
		{
			name:     "sentences with multiple spaces",
			input:    "First.  Second.   Third.",
			expected: []string{"First.", "Second.", "Third."},
		},
		{
			name:     "sentence with ellipsis",
			input:    "Wait... I'm thinking. Done!",
			expected: []string{"Wait... I'm thinking.", "Done!"},
		},
		{
			name:     "mixed punctuation",
			input:    "Really? Yes! Of course. Why not?!",
			expected: []string{"Really?", "Yes!", "Of course.", "Why not?!"},
		},
		{
			name:     "quoted sentences",
			input:    `She said "Hello." Then she left.`,
			expected: []string{`She said "Hello."`, "Then she left."},
		},
		{
			name:     "parenthetical sentences",
			input:    "Main point (see appendix). Next point.",
			expected: []string{"Main point (see appendix).", "Next point."},
		},
		{
			name:     "no terminal punctuation",
			input:    "just a fragment",
			expected: []string{"just a fragment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Sentences(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSentencesAbbreviations(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "common titles",
			input:    "Dr. Smith arrived. Mr. Jones left.",
			expected: []string{"Dr. Smith arrived.", "Mr. Jones left."},
		},
		{
			name:     "academic degrees",
			input:    "Jane Doe, Ph.D. teaches here. John has a B.S. degree.",
			expected: []string{"Jane Doe, Ph.D. teaches here.", "John has a B.S. degree."},
		},
		{
			name:     "business abbreviations",
			input:    "Apple Inc. is large. Microsoft Corp. too.",
			expected: []string{"Apple Inc. is large.", "Microsoft Corp. too."},
		},
		{
			name:     "latin abbreviations",
			input:    "Many reasons, e.g. cost. Also consider efficiency, i.e. speed.",
			expected: []string{"Many reasons, e.g. cost.", "Also consider efficiency, i.e. speed."},
		},
		{
			name:     "months",
			input:    "Meeting on Jan. 5th. Deadline is Dec. 31st.",
			expected: []string{"Meeting on Jan. 5th.", "Deadline is Dec. 31st."},
		},
		{
			name:     "addresses",
			input:    "Located at 123 Main St. near Park Ave. intersection.",
			expected: []string{"Located at 123 Main St. near Park Ave. intersection."},
		},
		{
			name:     "countries",
			input:    "U.S. policy changed. U.K. followed suit.",
			expected: []string{"U.S. policy changed.", "U.K. followed suit."},
		},
		{
			name:     "decimals and extensions",
			input:    "The startup secured $5.2M in funding. Call ext. 402 anytime.",
			expected: []string{"The startup secured $5.2M in funding.", "Call ext. 402 anytime."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Sentences(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUnits(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		maxChars int
		expected []string
	}{
		{
			name:     "short lines stay whole",
			input:    "One. Two.\n\nThree.",
			maxChars: 100,
			expected: []string{"One. Two.", "Three."},
		},
		{
			name:     "long line split into sentences",
			input:    "First one here. Second one here.",
			maxChars: 20,
			expected: []string{"First one here.", "Second one here."},
		},
		{
			name:     "carriage returns",
			input:    "a\r\nb\rc",
			maxChars: 10,
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "no limit",
			input:    strings.Repeat("Word. ", 50),
			maxChars: 0,
			expected: []string{strings.TrimSpace(strings.Repeat("Word. ", 50))},
		},
		{
			name:     "blank input",
			input:    " \n\t\n",
			maxChars: 10,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Units(tt.input, tt.maxChars)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Units() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "heading and paragraph",
			input:    "# Title\n\nSome *emphasized* and **strong** text.",
			expected: "Title\nSome emphasized and strong text.",
		},
		{
			name:     "links keep text",
			input:    "Read [the docs](https://example.com) first.",
			expected: "Read the docs first.",
		},
		{
			name:     "code blocks dropped",
			input:    "Before.\n\n```go\nfmt.Println(1)\n```\n\nAfter.",
			expected: "Before.\nAfter.",
		},
		{
			name:     "list items",
			input:    "- one\n- two\n",
			expected: "one\ntwo",
		},
		{
			name:     "soft line breaks joined",
			input:    "A line\ncontinued here.",
			expected: "A line continued here.",
		},
		{
			name:     "blockquote",
			input:    "> quoted words",
			expected: "quoted words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripMarkdown(tt.input)
			if err != nil {
				t.Fatalf("StripMarkdown() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("StripMarkdown() = %q, want %q", got, tt.expected)
			}
		})
	}
}
