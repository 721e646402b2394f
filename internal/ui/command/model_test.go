package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want CommandMsg
	}{
		{"", CommandMsg{}},
		{"   ", CommandMsg{}},
		{"mark all read", CommandMsg{Name: "mark all read"}},
		{"  Mark   ALL read ", CommandMsg{Name: "mark all read"}},
		{"clear filters", CommandMsg{Name: "clear filters"}},
		{"keep  unread", CommandMsg{Name: "keep unread"}},
		{"type order", CommandMsg{Name: "type", Arg: "order"}},
		{"Priority  HIGH", CommandMsg{Name: "priority", Arg: "high"}},
		{"quit", CommandMsg{Name: "quit"}},
		{"search fresh eggs", CommandMsg{Name: "search", Arg: "fresh eggs"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}
