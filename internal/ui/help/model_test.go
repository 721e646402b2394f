package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	notifcenter "github.com/nhle/farmfresh-notify/internal/center"
	"github.com/nhle/farmfresh-notify/internal/keys"
)

func TestTabHint(t *testing.T) {
	tests := []struct {
		name   string
		filter notifcenter.Filter
		want   []string
	}{
		{
			name:   "unset status is the inbox",
			filter: notifcenter.Filter{},
			want:   []string{"Every notification"},
		},
		{
			name:   "unread tab",
			filter: notifcenter.Filter{Status: notifcenter.StatusUnread},
			want:   []string{"not opened yet", "R for all"},
		},
		{
			name:   "archive wins over status",
			filter: notifcenter.Filter{Status: notifcenter.StatusPinned, ShowArchived: true},
			want:   []string{"Archived notifications"},
		},
		{
			name: "narrowing filters are listed",
			filter: notifcenter.Filter{
				Status:   notifcenter.StatusStarred,
				Query:    "eggs",
				Type:     notifcenter.RichType("order"),
				Priority: notifcenter.PriorityHigh,
			},
			want: []string{"starred with s", `matching "eggs"`, "type order", "priority high", "Press 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(keys.DefaultKeyMap(), 80, 40)
			m.SetContext(Context{Filter: tt.filter})

			got := m.TabHint()
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestSavingHint(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 40)

	m.SetContext(Context{Guest: true})
	assert.Contains(t, m.SavingHint(), "kept on this device")

	m.SetContext(Context{Guest: false})
	assert.Contains(t, m.SavingHint(), "saved to your account")
	assert.Contains(t, m.SavingHint(), "mark unread only change this screen")
}

func TestView_SessionSection(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 60)

	m.SetContext(Context{Session: "offline"})
	assert.Contains(t, m.View(), "Live updates are unavailable")

	m.SetContext(Context{Guest: true, Session: "offline"})
	assert.NotContains(t, m.View(), "Live updates are unavailable")
}
