// internal/rules/priority.go

package rules

import "sort"

// Prioritize returns a copy of rs sorted by priority, highest first. Rules with equal
// priority keep their registration order.
func Prioritize(rs []*Rule) []*Rule {
	prioritized := make([]*Rule, len(rs))
	copy(prioritized, rs)

	sort.SliceStable(prioritized, func(i, j int) bool {
		return priorityOf(prioritized[i]) > priorityOf(prioritized[j])
	})
	return prioritized
}

// priorityOf treats a nil rule as priority 0.
func priorityOf(r *Rule) int {
	if r != nil {
		return r.Priority
	}
	return 0
}
