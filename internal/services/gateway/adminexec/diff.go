package adminexec

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Diff lists the top-level keys whose values differ between before and
// after. Values are compared by canonical JSON encoding.
func Diff(before, after map[string]any) []string {
	var changed []string
	seen := make(map[string]struct{}, len(before)+len(after))
	for _, snapshot := range []map[string]any{before, after} {
		for key := range snapshot {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			b, inBefore := before[key]
			a, inAfter := after[key]
			if inBefore != inAfter || !canonicalEqual(b, a) {
				changed = append(changed, key)
			}
		}
	}
	slices.Sort(changed)
	return changed
}

func canonicalEqual(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
