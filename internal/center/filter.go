package center

import (
	"slices"
	"strings"
)

// Status is the mutually exclusive status tab of the center.
type Status string

const (
	StatusAll     Status = "all"
	StatusUnread  Status = "unread"
	StatusStarred Status = "starred"
	StatusPinned  Status = "pinned"
)

// Statuses lists the status tabs in display order.
var Statuses = []Status{StatusAll, StatusUnread, StatusStarred, StatusPinned}

// Filter controls which center notifications are visible. Zero values pass
// everything except archived entries.
type Filter struct {
	Query    string   // case-insensitive match on title, message, sender name
	Status   Status   // "" or StatusAll for no status restriction
	Type     RichType // "" for all types
	Priority Priority // "" for all priorities

	// ShowArchived switches the center to the archive: only archived entries
	// are shown.
	ShowArchived bool
}

// MatchesQuery reports whether n passes the free-text search.
func (f Filter) MatchesQuery(n RichNotification) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Message), q) ||
		strings.Contains(strings.ToLower(n.Sender.Name), q)
}

// MatchesStatus reports whether n passes the status tab.
func (f Filter) MatchesStatus(n RichNotification) bool {
	switch f.Status {
	case StatusUnread:
		return !n.Read
	case StatusStarred:
		return n.Starred
	case StatusPinned:
		return n.Pinned
	default:
		return true
	}
}

// MatchesType reports whether n passes the type filter.
func (f Filter) MatchesType(n RichNotification) bool {
	return f.Type == "" || n.Type == f.Type
}

// MatchesPriority reports whether n passes the priority filter.
func (f Filter) MatchesPriority(n RichNotification) bool {
	return f.Priority == "" || n.Priority == f.Priority
}

// MatchesArchive reports whether n belongs to the inbox or archive being shown.
func (f Filter) MatchesArchive(n RichNotification) bool {
	return n.Archived == f.ShowArchived
}

// Matches applies every predicate. The result does not depend on the order
// in which predicates are evaluated.
func (f Filter) Matches(n RichNotification) bool {
	return f.MatchesQuery(n) &&
		f.MatchesStatus(n) &&
		f.MatchesType(n) &&
		f.MatchesPriority(n) &&
		f.MatchesArchive(n)
}

// IsZero reports whether no user filter is active.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" &&
		(f.Status == "" || f.Status == StatusAll) &&
		f.Type == "" && f.Priority == "" && !f.ShowArchived
}

// Apply returns the entries of list passing f, sorted pinned first and then
// newest first. The input slice is not modified.
func Apply(list []RichNotification, f Filter) []RichNotification {
	out := make([]RichNotification, 0, len(list))

	// Search, status, type, priority, in that order.
	for _, n := range list {
		if !f.MatchesQuery(n) {
			continue
		}
		if !f.MatchesStatus(n) {
			continue
		}
		if !f.MatchesType(n) {
			continue
		}
		if !f.MatchesPriority(n) {
			continue
		}
		if !f.MatchesArchive(n) {
			continue
		}
		out = append(out, n)
	}

	SortNotifications(out)
	return out
}

// SortNotifications orders list in place: pinned entries first, then by
// descending timestamp. Entries equal on both keys keep their relative order.
func SortNotifications(list []RichNotification) {
	slices.SortStableFunc(list, func(a, b RichNotification) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		return b.Timestamp.Compare(a.Timestamp)
	})
}
