package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseSelection expands a user selection like "1,3" or "2-5" into sorted
// 1-based indices bounded by n. Empty, "all" and "a" select everything.
func ParseSelection(sel string, n int) ([]int, error) {
	sel = strings.ToLower(strings.TrimSpace(sel))
	if sel == "" || sel == "all" || sel == "a" {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}

	picked := map[int]bool{}
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if idx := strings.Index(part, "-"); idx >= 0 {
			lo, hi = part[:idx], part[idx+1:]
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		if from > to {
			from, to = to, from
		}
		for i := from; i <= to; i++ {
			if i < 1 || i > n {
				return nil, fmt.Errorf("selection %d out of range 1-%d", i, n)
			}
			picked[i] = true
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("empty selection %q", sel)
	}

	out := make([]int, 0, len(picked))
	for i := range picked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}
