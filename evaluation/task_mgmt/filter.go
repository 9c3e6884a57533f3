package task_mgmt

import (
	"sort"
	"strings"
)

// Categories returns the distinct categories of tasks, sorted.
func Categories(tasks []Task) []string {
	set := make(map[string]struct{})
	for _, t := range tasks {
		set[t.Category] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FilterTasks selects tasks by expression:
//
//	""  or "all"       every task
//	"<category>"       every task of an exact category
//	"<category>/<id>"  the single task with that key
//
// Anything else falls back to a substring match on category, name or
// "category__task_id", or an exact match on the task id.
func FilterTasks(tasks []Task, expr string) []Task {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, "all") {
		return append([]Task(nil), tasks...)
	}

	var out []Task
	for _, t := range tasks {
		if t.Category == expr {
			out = append(out, t)
		}
	}
	if len(out) > 0 {
		return out
	}

	if category, id, ok := strings.Cut(expr, "/"); ok {
		for _, t := range tasks {
			if t.Category == category && t.ID.String() == id {
				return []Task{t}
			}
		}
	}

	for _, t := range tasks {
		if strings.Contains(t.Category, expr) || strings.Contains(t.Name, expr) ||
			strings.Contains(t.Slug(), expr) || t.ID.String() == expr {
			out = append(out, t)
		}
	}
	return out
}
