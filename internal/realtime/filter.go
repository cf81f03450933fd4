package realtime

import (
	"fmt"
	"strings"
)

// Filter is a parsed "column=op.value" row filter.
type Filter struct {
	Column string
	Op     string
	Values []string
}

// ParseFilter parses eq, neq and in filters such as "status=eq.Signed" or
// "status=in.(Lead,Qualified)". An empty string yields a match-all filter.
func ParseFilter(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Filter{}, nil
	}
	column, expr, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(column) == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: expected column=op.value", raw)
	}
	op, value, ok := strings.Cut(expr, ".")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q: expected op.value", raw)
	}

	filter := Filter{Column: strings.TrimSpace(column), Op: op}
	switch op {
	case "eq", "neq":
		filter.Values = []string{value}
	case "in":
		if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
			return Filter{}, fmt.Errorf("invalid filter %q: in expects (a,b)", raw)
		}
		for _, item := range strings.Split(strings.TrimSuffix(strings.TrimPrefix(value, "("), ")"), ",") {
			if item = strings.TrimSpace(item); item != "" {
				filter.Values = append(filter.Values, item)
			}
		}
		if len(filter.Values) == 0 {
			return Filter{}, fmt.Errorf("invalid filter %q: empty in list", raw)
		}
	default:
		return Filter{}, fmt.Errorf("invalid filter %q: unsupported operator %q", raw, op)
	}
	return filter, nil
}

// Match reports whether the row satisfies the filter.
func (f Filter) Match(row map[string]any) bool {
	if f.Column == "" {
		return true
	}
	raw, ok := row[f.Column]
	value := ""
	if ok && raw != nil {
		value = fmt.Sprint(raw)
	}

	switch f.Op {
	case "eq":
		return ok && value == f.Values[0]
	case "neq":
		return !ok || value != f.Values[0]
	case "in":
		for _, candidate := range f.Values {
			if ok && value == candidate {
				return true
			}
		}
	}
	return false
}
