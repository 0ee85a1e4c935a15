package render

import (
	"fmt"
	"strings"
	"time"
)

// RelativeUntil formats a countdown floor-rounded to at most two units:
// "in 2h 15m", "in 3d", "in 3d 4h". The second unit is only the one adjacent
// to the coarsest, so 3d 0h 45m collapses to "in 3d" rather than skipping a
// zero unit. Non-positive deltas render "now" rather than a negative duration.
func RelativeUntil(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("in %dd %dh", days, hours)
	case days > 0:
		return fmt.Sprintf("in %dd", days)
	case hours > 0 && mins > 0:
		return fmt.Sprintf("in %dh %dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("in %dh", hours)
	case mins > 0:
		return fmt.Sprintf("in %dm", mins)
	default:
		return "in <1m"
	}
}

// AbsoluteReset picks the clock form by distance: bare time for same-day
// resets, weekday plus time inside the coming week, calendar date beyond.
// Both instants are read in now's location.
func AbsoluteReset(reset, now time.Time) string {
	local := reset.In(now.Location())
	ny, nd := now.Year(), now.YearDay()
	ly, ld := local.Year(), local.YearDay()
	if ny == ly && nd == ld {
		return local.Format("15:04")
	}
	if local.Sub(now) < 7*24*time.Hour {
		return local.Format("Mon 15:04")
	}
	return local.Format("Jan 2")
}

func formatReset(reset *time.Time, now time.Time, st styles) string {
	if reset == nil {
		return st.dim.Render("—")
	}
	delta := reset.Sub(now)
	if delta <= 0 {
		return st.ok.Render("now")
	}
	parts := []string{
		st.dim.Render(AbsoluteReset(*reset, now)),
		"(" + RelativeUntil(delta) + ")",
	}
	return strings.Join(parts, " ")
}
