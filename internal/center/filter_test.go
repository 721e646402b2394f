package center

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sample() []RichNotification {
	return []RichNotification{
		{ID: "a", Title: "Order shipped", Type: TypeOrder, Priority: PriorityHigh, Timestamp: base, Sender: Sender{Name: "Order Updates"}},
		{ID: "b", Title: "Fresh strawberries", Message: "Picked this morning", Type: TypeCommunity, Read: true, Starred: true, Priority: PriorityLow, Timestamp: base.Add(-time.Hour)},
		{ID: "c", Title: "Maintenance", Type: TypeSystem, Pinned: true, Priority: PriorityLow, Timestamp: base.Add(-48 * time.Hour)},
		{ID: "d", Title: "Old order", Type: TypeOrder, Archived: true, Priority: PriorityHigh, Timestamp: base.Add(-72 * time.Hour)},
		{ID: "e", Title: "Weekend deal", Type: TypePromotion, Read: true, Priority: PriorityMedium, Timestamp: base.Add(time.Hour)},
	}
}

func ids(list []RichNotification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter hides archive, pinned first", Filter{}, []string{"c", "e", "a", "b"}},
		{"status all", Filter{Status: StatusAll}, []string{"c", "e", "a", "b"}},
		{"unread", Filter{Status: StatusUnread}, []string{"c", "a"}},
		{"starred", Filter{Status: StatusStarred}, []string{"b"}},
		{"pinned", Filter{Status: StatusPinned}, []string{"c"}},
		{"type", Filter{Type: TypeOrder}, []string{"a"}},
		{"priority", Filter{Priority: PriorityLow}, []string{"c", "b"}},
		{"query on title, case insensitive", Filter{Query: "ORDER"}, []string{"a"}},
		{"query on message", Filter{Query: "morning"}, []string{"b"}},
		{"query on sender", Filter{Query: "updates"}, []string{"a"}},
		{"archive", Filter{ShowArchived: true}, []string{"d"}},
		{"archive with type", Filter{ShowArchived: true, Type: TypeOrder, Query: "old"}, []string{"d"}},
		{"combined no match", Filter{Status: StatusStarred, Type: TypeOrder}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sample(), tt.filter)))
		})
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	in := sample()
	_ = Apply(in, Filter{})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(in))
}

func TestSortNotifications_StableOnTies(t *testing.T) {
	list := []RichNotification{
		{ID: "x", Timestamp: base},
		{ID: "y", Timestamp: base},
		{ID: "p", Timestamp: base.Add(-time.Hour), Pinned: true},
	}
	SortNotifications(list)
	assert.Equal(t, []string{"p", "x", "y"}, ids(list))
}

func TestFilter_IsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.True(t, Filter{Status: StatusAll, Query: "  "}.IsZero())
	assert.False(t, Filter{Query: "x"}.IsZero())
	assert.False(t, Filter{ShowArchived: true}.IsZero())
	assert.False(t, Filter{Priority: PriorityUrgent}.IsZero())
}
