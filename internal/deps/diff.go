// Package deps explains why an effect ran by diffing its dependency lists.
package deps

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Reason strings. "no deps changed detected" is the missing-dependency
// signal and must stay distinguishable from the initial-mount reason.
const (
	ReasonInitial   = "initially mounted"
	ReasonUnchanged = "it re-ran (no deps changed detected)"
)

// Diff returns the names of dependencies whose value changed between prev
// and cur, compared by identity (see Same).
//
// A nil prev means there is no baseline and Diff returns nil. A nil cur
// (effect not tracking deps at all) also returns nil; callers decide
// whether that reads as an initial run. When both lists exist and nothing
// changed, Diff returns an empty non-nil slice.
//
// names is aligned positionally with the lists. A missing or empty name at
// position i falls back to "dep[i]".
func Diff(prev, cur []any, names []string) []string {
	if prev == nil || cur == nil {
		return nil
	}

	changed := []string{}
	n := max(len(prev), len(cur))
	for i := 0; i < n; i++ {
		if i < len(prev) && i < len(cur) && Same(prev[i], cur[i]) {
			continue
		}
		changed = append(changed, nameAt(names, i))
	}
	return changed
}

func nameAt(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("dep[%d]", i)
}

// Reason renders a changed-dependency set as the human-readable cause of a run.
func Reason(changed []string) string {
	switch {
	case changed == nil:
		return ReasonInitial
	case len(changed) == 0:
		return ReasonUnchanged
	default:
		return strings.Join(changed, ", ") + " changed"
	}
}

// Same reports whether a and b are the same value by identity.
//
// Reference kinds (pointers, maps, slices, channels, funcs) compare by the
// address they refer to; slices also compare length. Other comparable
// values use ==, except that NaN is the same as NaN. Values that cannot be
// compared are never the same, so they always register as a change.
//
// Go allocates every zero-size value at one shared address, so identity
// cannot tell two empty slices of the same type apart, nor two pointers
// to zero-size values. Such pairs are the same: a dependency rebuilt as an
// empty slice on every render does not register as a change.
func Same(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	}

	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}
