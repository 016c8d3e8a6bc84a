package markdown

import (
	"errors"
	"strings"
	"testing"
)

func TestDegenerate_RepeatedUnit(t *testing.T) {
	// WHAT: A 3-char unit repeated 20 times at the end flags degenerate.
	// WHY: The classic looping failure mode of the model.
	text := "Normal prose first. " + strings.Repeat("abc", 20)
	if !Degenerate(text, 0, RepeatOptions{}) {
		t.Error("expected degenerate=true for 20x repeated unit")
	}
}

func TestDegenerate_NonRepeatingLongText(t *testing.T) {
	// WHAT: Long varied text does not flag.
	// WHY: False positives would waste retries on healthy output.
	var sb strings.Builder
	for i := 0; sb.Len() < 600; i++ {
		sb.WriteString("word")
		sb.WriteRune(rune('a' + i%26))
		sb.WriteString(" figure ")
		sb.WriteString(strings.Repeat("-", i%7+1))
		sb.WriteString(". ")
	}
	if Degenerate(sb.String(), 0, RepeatOptions{}) {
		t.Error("expected degenerate=false for varied text")
	}
}

func TestDegenerate_SingleCharCeiling(t *testing.T) {
	// WHAT: Short units tolerate proportionally more repeats.
	// WHY: floor(4*(1+3/1)) = 16 single-char repeats are still allowed.
	ok := "text" + strings.Repeat("!", 16)
	if Degenerate(ok, 0, RepeatOptions{}) {
		t.Error("16 single-char repeats should pass (ceiling 16)")
	}
	bad := "text" + strings.Repeat("!", 17)
	if !Degenerate(bad, 0, RepeatOptions{}) {
		t.Error("17 single-char repeats should flag (ceiling 16)")
	}
}

func TestDegenerate_CutFromEnd(t *testing.T) {
	// WHAT: cutFromEnd exposes repetition hidden by a trailing suffix.
	// WHY: The model often appends a short clean tail after looping.
	tail := "The quick brown fox jumps over the lazy dog today."
	text := strings.Repeat("loop ", 40) + tail
	if Degenerate(text, 0, RepeatOptions{}) {
		t.Error("clean tail should mask the loop for the full-text check")
	}
	if !Degenerate(text, len(tail), RepeatOptions{}) {
		t.Error("expected degenerate=true once the clean tail is cut")
	}
}

func TestDegenerate_ShortText(t *testing.T) {
	// WHAT: Text shorter than every candidate unit never flags.
	if Degenerate("ab", 0, RepeatOptions{}) {
		t.Error("tiny text must not flag")
	}
	if Degenerate("", 0, RepeatOptions{}) {
		t.Error("empty text must not flag")
	}
}

func TestDegenerateRaw_ConvertsFirst(t *testing.T) {
	// WHAT: Raw HTML is rendered to Markdown before the heuristic runs.
	// WHY: Closing tags would otherwise break up the repeated unit.
	c := New(Options{})
	d := NewRepeatDetector(c, RepeatOptions{})
	raw := `<div data-label="Text"><p>` + strings.Repeat("abc", 20) + `</p></div>`
	if !d.DegenerateRaw(raw, 0) {
		t.Error("expected degenerate=true for repeated unit inside markup")
	}
	clean := `<div data-label="Text"><p>a perfectly reasonable sentence</p></div>`
	if d.DegenerateRaw(clean, 0) {
		t.Error("expected degenerate=false for clean output")
	}
}

type failingConverter struct{}

func (failingConverter) Convert(string, bool, bool) (string, error) {
	return "", errors.New("boom")
}

func TestDegenerateRaw_FailsClosed(t *testing.T) {
	// WHAT: A markdown conversion failure counts as degenerate.
	// WHY: Unconvertible output should be retried, not accepted.
	d := &RepeatDetector{conv: failingConverter{}, opts: RepeatOptions{}, logger: converterLogger(nil)}
	if !d.DegenerateRaw("<div>x</div>", 0) {
		t.Error("expected fail-closed degenerate=true on conversion error")
	}
}
