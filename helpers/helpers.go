package helpers

import "strings"

type Timestamped interface {
	CacheTimestamp() int64
}

// FilterBySinceLimit keeps the items at or after since and then the last limit of them.
// since <= 0 and limit <= 0 disable the respective filter. items must be in chronological order.
func FilterBySinceLimit[T Timestamped](items []T, since int64, limit int) []T {
	out := items
	if since > 0 {
		out = make([]T, 0, len(items))
		for _, item := range items {
			if item.CacheTimestamp() >= since {
				out = append(out, item)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
