package center

import (
	"github.com/nhle/farmfresh-notify/internal/model"
)

// ReadMarker is the canonical store callback used by the center. Marking a
// notification read is the only center action that reaches the store.
type ReadMarker interface {
	MarkNotificationAsRead(id string)
}

// Stats holds the badge counts of the center tabs. Unread, Starred and
// Pinned count inbox entries only.
type Stats struct {
	Total    int
	Unread   int
	Starred  int
	Pinned   int
	Archived int
}

// View is the notification center's local copy of the canonical list.
// Star, pin, archive, priority, delete and mark-unread only change this copy
// and are lost when the session ends. A View is owned by the UI goroutine
// and is not safe for concurrent use.
type View struct {
	store ReadMarker
	items []RichNotification

	// deleted tombstones ids removed locally so a later Sync does not bring
	// them back.
	deleted map[string]bool

	// unread holds ids marked unread in the center; the canonical read flag
	// does not override them until they are marked read again here.
	unread map[string]bool
}

// NewView creates an empty center bound to store.
func NewView(store ReadMarker) *View {
	return &View{
		store:   store,
		deleted: make(map[string]bool),
		unread:  make(map[string]bool),
	}
}

// Sync merges the canonical list into the center. Canonical fields are
// refreshed from the store while center-only fields, local deletions and
// local unread marks are preserved.
func (v *View) Sync(canonical []model.Notification) {
	prev := make(map[string]RichNotification, len(v.items))
	for _, n := range v.items {
		prev[n.ID] = n
	}

	items := make([]RichNotification, 0, len(canonical))
	seen := make(map[string]bool, len(canonical))
	for _, n := range canonical {
		if v.deleted[n.ID] || seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		rn := MapAppNotification(n)
		if old, ok := prev[n.ID]; ok {
			rn.Starred = old.Starred
			rn.Pinned = old.Pinned
			rn.Archived = old.Archived
			rn.Priority = old.Priority
		}
		if v.unread[n.ID] {
			rn.Read = false
		}
		items = append(items, rn)
	}

	for id := range v.unread {
		if !seen[id] {
			delete(v.unread, id)
		}
	}

	v.items = items
}

// Len returns the number of entries, archived ones included.
func (v *View) Len() int {
	return len(v.items)
}

// Visible returns the filtered and sorted entries.
func (v *View) Visible(f Filter) []RichNotification {
	return Apply(v.items, f)
}

// Get returns the entry with id.
func (v *View) Get(id string) (RichNotification, bool) {
	if i := v.indexOf(id); i >= 0 {
		return v.items[i], true
	}
	return RichNotification{}, false
}

// MarkRead marks the entry read here and in the canonical store.
func (v *View) MarkRead(id string) {
	i := v.indexOf(id)
	if i < 0 {
		return
	}
	v.items[i].Read = true
	delete(v.unread, id)
	if v.store != nil {
		v.store.MarkNotificationAsRead(id)
	}
}

// Acknowledge marks the entry read in the center only, for reads that already
// reached the store by another path.
func (v *View) Acknowledge(id string) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Read = true
	}
	delete(v.unread, id)
}

// MarkUnread marks the entry unread in the center only.
func (v *View) MarkUnread(id string) {
	i := v.indexOf(id)
	if i < 0 {
		return
	}
	v.items[i].Read = false
	v.unread[id] = true
}

// ToggleRead flips the read state using MarkRead or MarkUnread.
func (v *View) ToggleRead(id string) {
	n, ok := v.Get(id)
	if !ok {
		return
	}
	if n.Read {
		v.MarkUnread(id)
	} else {
		v.MarkRead(id)
	}
}

// MarkAllRead marks every unread inbox entry read, one store callback per
// entry.
func (v *View) MarkAllRead() {
	for _, n := range v.items {
		if !n.Read && !n.Archived {
			v.MarkRead(n.ID)
		}
	}
}

// ToggleStar flips the starred flag.
func (v *View) ToggleStar(id string) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Starred = !v.items[i].Starred
	}
}

// TogglePin flips the pinned flag.
func (v *View) TogglePin(id string) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Pinned = !v.items[i].Pinned
	}
}

// Archive moves the entry to the archive.
func (v *View) Archive(id string) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Archived = true
	}
}

// Unarchive moves the entry back to the inbox.
func (v *View) Unarchive(id string) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Archived = false
	}
}

// ToggleArchive flips the archived flag.
func (v *View) ToggleArchive(id string) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Archived = !v.items[i].Archived
	}
}

// SetPriority changes the center-only priority.
func (v *View) SetPriority(id string, p Priority) {
	if i := v.indexOf(id); i >= 0 {
		v.items[i].Priority = p
	}
}

// CyclePriority advances the priority low -> medium -> high -> urgent -> low.
func (v *View) CyclePriority(id string) {
	i := v.indexOf(id)
	if i < 0 {
		return
	}
	next := PriorityLow
	for k, p := range Priorities {
		if p == v.items[i].Priority {
			next = Priorities[(k+1)%len(Priorities)]
			break
		}
	}
	v.items[i].Priority = next
}

// Delete removes the entry from the center.
func (v *View) Delete(id string) {
	i := v.indexOf(id)
	if i < 0 {
		return
	}
	v.deleted[id] = true
	delete(v.unread, id)
	v.items = append(v.items[:i], v.items[i+1:]...)
}

// ClearAll removes every entry from the center.
func (v *View) ClearAll() {
	for _, n := range v.items {
		v.deleted[n.ID] = true
	}
	v.unread = make(map[string]bool)
	v.items = nil
}

// Stats returns the tab badge counts.
func (v *View) Stats() Stats {
	var st Stats
	st.Total = len(v.items)
	for _, n := range v.items {
		if n.Archived {
			st.Archived++
			continue
		}
		if !n.Read {
			st.Unread++
		}
		if n.Starred {
			st.Starred++
		}
		if n.Pinned {
			st.Pinned++
		}
	}
	return st
}

func (v *View) indexOf(id string) int {
	for i := range v.items {
		if v.items[i].ID == id {
			return i
		}
	}
	return -1
}
