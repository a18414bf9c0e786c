package sentence

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/tonic/tts"
)

// shortSentences builds a single line of repeated short sentences at least n
// characters long.
func shortSentences(n int) string {
	words := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"}
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i%len(words)] + " went home today.")
	}
	return b.String()
}

func TestSegmentRepeatedGreetingIsOneSegment(t *testing.T) {
	text := strings.Repeat("Hello there. ", 10)

	segments, err := Segment(text, tts.MinChars, tts.MaxChars)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1: %q", len(segments), segments)
	}
	if segments[0].Text != strings.TrimSpace(text) {
		t.Errorf("segment text = %q", segments[0].Text)
	}
	if segments[0].Index != 1 || segments[0].Total != 1 {
		t.Errorf("segment index/total = %d/%d, want 1/1", segments[0].Index, segments[0].Total)
	}
}

func TestSegmentLongTextRespectsBounds(t *testing.T) {
	text := shortSentences(2500)

	segments, err := Segment(text, tts.MinChars, tts.MaxChars)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(segments) < 2 {
		t.Fatalf("got %d segments, want at least 2", len(segments))
	}

	for i, seg := range segments {
		if n := RuneLen(seg.Text); n > tts.MaxChars {
			t.Errorf("segment %d has %d chars, over the %d limit", i+1, n, tts.MaxChars)
		}
		if seg.Index != i+1 || seg.Total != len(segments) {
			t.Errorf("segment %d has index %d/%d", i+1, seg.Index, seg.Total)
		}
		if i < len(segments)-1 && RuneLen(seg.Text) < tts.MinChars {
			t.Errorf("non-final segment %d shorter than min: %d", i+1, RuneLen(seg.Text))
		}
	}
}

func TestSegmentReconstructsTokens(t *testing.T) {
	inputs := []string{
		"Hi.",
		"Dr. Smith arrived. Mr. Jones left.\n\nA new paragraph starts here!",
		shortSentences(2500),
		"  leading and trailing   whitespace  \n\n\n  ",
		"Unicode — “quoted” café text. Ünïcödé again.",
	}

	for _, text := range inputs {
		segments, err := Segment(text, tts.MinChars, tts.MaxChars)
		if err != nil {
			t.Fatalf("Segment(%q) error = %v", text, err)
		}

		parts := make([]string, len(segments))
		for i, s := range segments {
			parts[i] = s.Text
		}
		got := strings.Fields(strings.Join(parts, " "))
		want := strings.Fields(text)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tokens differ for %q:\n got %q\nwant %q", text, got, want)
		}
	}
}

func TestSegmentIdempotent(t *testing.T) {
	text := shortSentences(3000) + "\n" + "Closing line."

	first, err := Segment(text, 120, 500)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	second, err := Segment(text, 120, 500)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Segment() is not idempotent")
	}
}

func TestSegmentTooLong(t *testing.T) {
	unit := strings.Repeat("x", 1001)

	segments, err := Segment("Short intro.\n"+unit, tts.MinChars, tts.MaxChars)
	if !errors.Is(err, tts.ErrSegmentTooLong) {
		t.Fatalf("Segment() error = %v, want ErrSegmentTooLong", err)
	}
	if segments != nil {
		t.Errorf("Segment() returned %d segments on error", len(segments))
	}

	var tooLong *tts.SegmentTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("error is not a SegmentTooLongError: %T", err)
	}
	if tooLong.Limit != tts.MaxChars || tooLong.Unit != unit {
		t.Errorf("error names limit %d and a %d char unit", tooLong.Limit, len(tooLong.Unit))
	}
}

func TestSegmentHardCutsAccumulatedBuffer(t *testing.T) {
	// Each line fits under max, but the buffer does not.
	a := strings.Repeat("a", 60)
	b := strings.Repeat("b", 60)

	segments, err := Segment(a+"\n"+b, 100, 100)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	// "a*60 b*60" is 121 runes: cut at 100, remainder of 21 flushed last.
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2: %q", len(segments), segments)
	}
	if RuneLen(segments[0].Text) != 100 {
		t.Errorf("first segment has %d chars, want exactly 100", RuneLen(segments[0].Text))
	}
	if segments[0].Text+segments[1].Text != a+" "+b {
		t.Errorf("hard cut lost characters: %q + %q", segments[0].Text, segments[1].Text)
	}
}

func TestSegmentCountsRunes(t *testing.T) {
	line := strings.Repeat("é", 30)

	segments, err := Segment(line, 10, 30)
	if err != nil {
		t.Fatalf("Segment() error = %v, a 30 rune line must fit a 30 char limit", err)
	}
	if len(segments) != 1 || segments[0].Text != line {
		t.Errorf("Segment() = %q", segments)
	}
}

func TestSegmentEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t"} {
		segments, err := Segment(text, tts.MinChars, tts.MaxChars)
		if err != nil {
			t.Errorf("Segment(%q) error = %v", text, err)
		}
		if len(segments) != 0 {
			t.Errorf("Segment(%q) = %d segments, want 0", text, len(segments))
		}
	}
}
