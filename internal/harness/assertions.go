package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// EvaluateAssertions checks every assertion against result and returns
// one message per failure. It does not fail fast.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	lines := transcriptLines(result.Transcript)
	for i, a := range assertions {
		if err := evaluate(result, lines, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, lines []string, a Assertion) error {
	switch a.Type {
	case AssertContains:
		if countLines(lines, a.Text) == 0 {
			return fmt.Errorf("no line contains %q", a.Text)
		}
	case AssertNotContains:
		if n := countLines(lines, a.Text); n > 0 {
			return fmt.Errorf("%d line(s) contain %q", n, a.Text)
		}
	case AssertCount:
		got := countLines(lines, a.Text)
		if a.Severity != "" {
			got = countEntries(result.Entries, ir.Severity(a.Severity), a.Text)
		}
		if got != a.Count {
			return fmt.Errorf("expected %d match(es), got %d", a.Count, got)
		}
	case AssertOrder:
		return checkOrder(lines, a.Texts)
	case AssertMode:
		if string(result.Mode) != a.Mode {
			return fmt.Errorf("expected mode %q, got %q", a.Mode, result.Mode)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func transcriptLines(transcript string) []string {
	transcript = strings.TrimRight(transcript, "\n")
	if transcript == "" {
		return nil
	}
	return strings.Split(transcript, "\n")
}

func countLines(lines []string, text string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, text) {
			n++
		}
	}
	return n
}

func countEntries(entries []ir.Entry, sev ir.Severity, text string) int {
	n := 0
	for _, e := range entries {
		if e.Severity == sev && strings.Contains(e.Message, text) {
			n++
		}
	}
	return n
}

// checkOrder requires each text to appear on a line after the previous
// text's line.
func checkOrder(lines []string, texts []string) error {
	next := 0
	for _, text := range texts {
		found := false
		for next < len(lines) {
			line := lines[next]
			next++
			if strings.Contains(line, text) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q not found after preceding texts", text)
		}
	}
	return nil
}
