// Package printer renders log entries to severity-routed console channels.
//
// Routing: state-change → Log, effect-run → Info, slow-effect → Warn.
// Each line is prefixed with its severity tag and, when more than one entry
// in the same print batch shares a group key, an "i/N" ordinal.
package printer

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/cascade/internal/ir"
)

// Printer formats entries onto a Console.
type Printer struct {
	console Console
}

// New creates a printer writing to console.
func New(console Console) *Printer {
	return &Printer{console: console}
}

// Console returns the underlying console.
func (p *Printer) Console() Console {
	return p.console
}

// PrintBatch prints entries individually, in order, as one batch.
func (p *Printer) PrintBatch(entries []ir.Entry) {
	totals := countKeys(entries)
	seen := make(map[string]int, len(totals))
	for _, e := range entries {
		key := e.GroupKey()
		seen[key]++
		p.print(e, seen[key], totals[key])
	}
}

// PrintGroup prints entries inside one collapsible group labeled label.
// An empty batch prints nothing, not even the banner.
func (p *Printer) PrintGroup(label string, entries []ir.Entry) {
	if len(entries) == 0 {
		return
	}
	p.console.Group(label)
	defer p.console.GroupEnd()
	p.PrintBatch(entries)
}

func (p *Printer) print(e ir.Entry, i, n int) {
	line := Format(e, i, n)
	switch e.Severity {
	case ir.SeveritySlowEffect:
		p.console.Warn(line)
	case ir.SeverityEffectRun:
		p.console.Info(line)
	default:
		p.console.Log(line)
	}
}

// Format renders one line. The ordinal is shown only when n > 1.
func Format(e ir.Entry, i, n int) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Severity))
	b.WriteString("] ")
	if n > 1 {
		fmt.Fprintf(&b, "%d/%d ", i, n)
	}
	b.WriteString(e.Message)
	return b.String()
}

func countKeys(entries []ir.Entry) map[string]int {
	totals := make(map[string]int)
	for _, e := range entries {
		totals[e.GroupKey()]++
	}
	return totals
}

// Count splits entries into state-change entries and everything else.
func Count(entries []ir.Entry) (mutations, others int) {
	for _, e := range entries {
		if e.Severity == ir.SeverityStateChange {
			mutations++
		} else {
			others++
		}
	}
	return mutations, others
}

// GroupLabel composes a window banner such as
// "Long task 123ms: 3 effect→setState, 1 other effects".
// Counts of zero are left out.
func GroupLabel(w ir.Window) string {
	label := w.Label
	if label == "" {
		label = string(w.Source)
	}

	var parts []string
	if w.Mutations > 0 {
		parts = append(parts, fmt.Sprintf("%d effect→setState", w.Mutations))
	}
	if w.Others > 0 {
		parts = append(parts, fmt.Sprintf("%d other effects", w.Others))
	}

	head := fmt.Sprintf("%s %dms", label, w.Duration().Round(time.Millisecond).Milliseconds())
	if len(parts) == 0 {
		return head
	}
	return head + ": " + strings.Join(parts, ", ")
}
