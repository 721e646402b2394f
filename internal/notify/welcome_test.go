package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/farmfresh-notify/internal/model"
)

func TestApplyWelcomePolicy(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	order := model.Notification{ID: "1717200000000", Title: "Order placed", Timestamp: now}
	byTitle := model.Notification{ID: "1717200000001", Title: model.WelcomeTitle, Timestamp: now}

	tests := []struct {
		name      string
		list      []model.Notification
		completed bool
		wantIDs   []string
	}{
		{"empty not completed", nil, false, []string{model.WelcomeID}},
		{"prepends before existing", []model.Notification{order}, false, []string{model.WelcomeID, order.ID}},
		{"existing by title kept as is", []model.Notification{order, byTitle}, false, []string{order.ID, byTitle.ID}},
		{"existing by id kept as is", []model.Notification{NewWelcomeNotification(now)}, false, []string{model.WelcomeID}},
		{"completed removes by id", []model.Notification{NewWelcomeNotification(now), order}, true, []string{order.ID}},
		{"completed removes by title", []model.Notification{byTitle, order}, true, []string{order.ID}},
		{"completed empty", nil, true, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyWelcomePolicy(tt.list, tt.completed, now)
			ids := make([]string, 0, len(got))
			for _, n := range got {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestApplyWelcomePolicy_DoesNotModifyInput(t *testing.T) {
	now := time.Now()
	in := []model.Notification{NewWelcomeNotification(now), {ID: "2", Title: "x"}}

	out := ApplyWelcomePolicy(in, true, now)
	require.Len(t, out, 1)
	require.Len(t, in, 2)
	assert.Equal(t, model.WelcomeID, in[0].ID)
}

func TestApplyWelcomePolicy_Idempotent(t *testing.T) {
	now := time.Now()
	once := ApplyWelcomePolicy(nil, false, now)
	twice := ApplyWelcomePolicy(once, false, now)
	assert.Equal(t, once, twice)
}

func TestNewWelcomeNotification(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	n := NewWelcomeNotification(now)

	assert.Equal(t, model.WelcomeID, n.ID)
	assert.Equal(t, model.WelcomeTitle, n.Title)
	assert.Equal(t, model.NotificationTypeAdmin, n.Type)
	assert.False(t, n.Read)
	assert.True(t, n.HasAction())
	assert.Equal(t, now, n.Timestamp)
}
