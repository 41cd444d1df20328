package tasks

import "strings"

// VisibleTo returns the subset of tasks the session may see: admins see
// everything, regular users only tasks assigned to them. Assignee matching
// is case-insensitive against both the username and the display name.
//
// The filter is pure and runs before status filtering and before
// occurrence generation in the calendar flow.
func VisibleTo(s Session, ts []Task) []Task {
	if s.IsAdmin() {
		return ts
	}
	out := make([]Task, 0, len(ts))
	for _, t := range ts {
		if equalFold(t.Assignee, s.Username) || equalFold(t.Assignee, s.DisplayName) {
			out = append(out, t)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	return b != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
