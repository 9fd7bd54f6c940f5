package feed

import (
	"sort"
	"time"

	"github.com/mph-llm-experiments/acalls/internal/model"
)

// DateGroup is one dated block of the feed.
type DateGroup struct {
	// Day is midnight of the bucket's calendar day in the grouping location.
	// It is the zero time for the bucket of unparseable timestamps.
	Day        time.Time
	Label      string
	Activities []model.Activity
}

// Valid reports whether the group holds activities with parseable timestamps.
func (g DateGroup) Valid() bool {
	return !g.Day.IsZero()
}

// Filter keeps the activities whose archived flag equals showArchived.
func Filter(activities []model.Activity, showArchived bool) []model.Activity {
	out := make([]model.Activity, 0, len(activities))
	for _, a := range activities {
		if a.IsArchived == showArchived {
			out = append(out, a)
		}
	}
	return out
}

// Partition splits activities into the active and archived feeds.
func Partition(activities []model.Activity) (active, archived []model.Activity) {
	return Filter(activities, false), Filter(activities, true)
}

type stamped struct {
	activity model.Activity
	at       time.Time
}

// GroupByDate buckets activities by calendar day in loc. Buckets are ordered
// newest day first and each bucket newest call first; calls with identical
// timestamps keep their input order. Activities whose created_at does not parse
// are collected, in input order, into a final "Invalid Date" group.
func GroupByDate(activities []model.Activity, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[time.Time][]stamped)
	var invalid []model.Activity

	for _, a := range activities {
		t, err := a.CreatedTime()
		if err != nil {
			invalid = append(invalid, a)
			continue
		}
		t = t.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		buckets[day] = append(buckets[day], stamped{activity: a, at: t})
	}

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})

	groups := make([]DateGroup, 0, len(days)+1)
	for _, day := range days {
		entries := buckets[day]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].at.After(entries[j].at)
		})

		sorted := make([]model.Activity, len(entries))
		for i, e := range entries {
			sorted[i] = e.activity
		}
		groups = append(groups, DateGroup{
			Day:        day,
			Label:      day.Format("Jan 2, 2006"),
			Activities: sorted,
		})
	}

	if len(invalid) > 0 {
		groups = append(groups, DateGroup{Label: InvalidDate, Activities: invalid})
	}
	return groups
}

// Flatten concatenates the groups in display order.
func Flatten(groups []DateGroup) []model.Activity {
	var out []model.Activity
	for _, g := range groups {
		out = append(out, g.Activities...)
	}
	return out
}

// Build runs the whole pipeline: filter, then group.
func Build(activities []model.Activity, showArchived bool, loc *time.Location) []DateGroup {
	return GroupByDate(Filter(activities, showArchived), loc)
}
