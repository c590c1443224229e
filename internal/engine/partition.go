package engine

import "github.com/roach88/cascade/internal/ir"

// Partition splits buf against w, preserving order within each part:
//   - before: Timestamp < w.Start
//   - during: w.Start <= Timestamp <= w.End
//   - after:  Timestamp > w.End
//
// Partition is pure: buf is not modified and the returned slices do not
// alias it.
func Partition(buf []ir.Entry, w ir.Window) (before, during, after []ir.Entry) {
	for _, e := range buf {
		switch {
		case w.Contains(e.Timestamp):
			during = append(during, e)
		case e.Timestamp < w.Start:
			before = append(before, e)
		default:
			after = append(after, e)
		}
	}
	return before, during, after
}

// withoutEffectRuns drops effect-run entries. They only print inside groups.
func withoutEffectRuns(entries []ir.Entry) []ir.Entry {
	var out []ir.Entry
	for _, e := range entries {
		if e.Severity != ir.SeverityEffectRun {
			out = append(out, e)
		}
	}
	return out
}
