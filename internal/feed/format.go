// Package feed turns a flat list of call activities into the dated, newest-first
// groups shown by the feed, and formats the dates and times those groups display.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// InvalidDate is shown in place of any timestamp that cannot be parsed.
const InvalidDate = "Invalid Date"

// FormatDate renders a timestamp as "Jan 5, 2024" in loc.
func FormatDate(ts string, loc *time.Location) string {
	t, ok := parse(ts, loc)
	if !ok {
		return InvalidDate
	}
	return t.Format("Jan 2, 2006")
}

// FormatTime renders a timestamp as a two-digit 12-hour clock, "09:05 PM".
func FormatTime(ts string, loc *time.Location) string {
	t, ok := parse(ts, loc)
	if !ok {
		return InvalidDate
	}
	return t.Format("03:04 PM")
}

// FormatDateTime is used by the detail screen.
func FormatDateTime(ts string, loc *time.Location) string {
	t, ok := parse(ts, loc)
	if !ok {
		return InvalidDate
	}
	return t.Format("Jan 2, 2006, 03:04:05 PM")
}

// FormatDuration renders a call length in seconds.
func FormatDuration(seconds int) string {
	if seconds == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", seconds)
}

// SeparatorWidth returns how many filler cells go on each side of label so it sits
// centred in containerWidth cells. A label wider than the container gets none.
func SeparatorWidth(label string, containerWidth int) int {
	n := (containerWidth - ansi.StringWidth(label) - 2) / 2
	if n < 0 {
		return 0
	}
	return n
}

// Separator renders "---- label ----" for a date heading.
func Separator(label string, containerWidth int) string {
	dashes := strings.Repeat("-", SeparatorWidth(label, containerWidth))
	if dashes == "" {
		return label
	}
	return dashes + " " + label + " " + dashes
}

func parse(ts string, loc *time.Location) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc), true
}
