//go:build property
// +build property

package center

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propQueries = []string{"", "order", "FRESH", "deal", "zzz"}

// fromSeed derives a notification from generated bits so every field
// combination is reachable.
func fromSeed(i, seed int) RichNotification {
	titles := []string{"Order shipped", "Fresh eggs", "Weekend deal", "Maintenance"}
	return RichNotification{
		ID:        strconv.Itoa(i),
		Title:     titles[seed%len(titles)],
		Type:      RichTypes[(seed/4)%len(RichTypes)],
		Priority:  Priorities[(seed/24)%len(Priorities)],
		Read:      seed&(1<<7) != 0,
		Starred:   seed&(1<<8) != 0,
		Pinned:    seed&(1<<9) != 0,
		Archived:  seed&(1<<10) != 0,
		Timestamp: time.Unix(int64(seed%97)*3600, 0),
	}
}

func buildList(seeds []int) []RichNotification {
	out := make([]RichNotification, len(seeds))
	for i, s := range seeds {
		out[i] = fromSeed(i, s)
	}
	return out
}

func buildFilter(seed int) Filter {
	f := Filter{
		Query:        propQueries[seed%len(propQueries)],
		Status:       Statuses[(seed/5)%len(Statuses)],
		ShowArchived: seed&(1<<12) != 0,
	}
	if t := (seed / 20) % (len(RichTypes) + 1); t > 0 {
		f.Type = RichTypes[t-1]
	}
	if p := (seed / 140) % (len(Priorities) + 1); p > 0 {
		f.Priority = Priorities[p-1]
	}
	return f
}

func idSet(list []RichNotification) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, n := range list {
		out[n.ID] = true
	}
	return out
}

// TestFilterComposition verifies that the combined filter selects exactly
// the intersection of the individual predicates.
func TestFilterComposition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("combined filter equals intersection of predicates", prop.ForAll(
		func(seeds []int, fseed int) bool {
			list := buildList(seeds)
			f := buildFilter(fseed)

			predicates := []func(RichNotification) bool{
				f.MatchesQuery, f.MatchesStatus, f.MatchesType, f.MatchesPriority, f.MatchesArchive,
			}
			want := make(map[string]bool)
			for _, n := range list {
				want[n.ID] = true
			}
			for _, p := range predicates {
				for _, n := range list {
					if !p(n) {
						delete(want, n.ID)
					}
				}
			}

			got := idSet(Apply(list, f))
			if len(got) != len(want) {
				return false
			}
			for id := range want {
				if !got[id] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1<<13)),
		gen.IntRange(0, 1<<13),
	))

	properties.TestingRun(t)
}

// TestSortPinnedFirstNewestFirst verifies the center ordering.
func TestSortPinnedFirstNewestFirst(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("pinned precede unpinned, each group newest first", prop.ForAll(
		func(seeds []int) bool {
			list := buildList(seeds)
			SortNotifications(list)

			for i := 1; i < len(list); i++ {
				prev, cur := list[i-1], list[i]
				if !prev.Pinned && cur.Pinned {
					return false
				}
				if prev.Pinned == cur.Pinned && prev.Timestamp.Before(cur.Timestamp) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1<<13)),
	))

	properties.TestingRun(t)
}
