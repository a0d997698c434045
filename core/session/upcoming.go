package session

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

var (
	timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}
	clockLayouts     = []string{"15:04", "15:04:05"}
)

func parseTimestamp(val string, loc *time.Location) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, val, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseClock parses HH:MM, ignoring anything after the minutes.
func parseClock(val string) (time.Time, bool) {
	if len(val) > 5 {
		if _, err := time.Parse(clockLayouts[1], val); err != nil {
			return time.Time{}, false
		}
		val = val[:5]
	}
	t, err := time.Parse(clockLayouts[0], val)
	return t, err == nil
}

// StartsAt resolves when a session starts, trying in order:
// start as a full timestamp, date combined with the HH:MM of start, then date at midnight.
// ok is false when none of them parse.
func StartsAt(date, start string, loc *time.Location) (t time.Time, ok bool) {
	if t, ok = parseTimestamp(start, loc); ok {
		return t, true
	}
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	if clock, ok := parseClock(start); ok {
		return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), true
	}
	return day, true
}

// IsUpcoming reports whether the session has not started yet, at minute precision.
// Cancelled and completed sessions are never upcoming. Sessions whose start cannot be parsed are.
func IsUpcoming(s Session, now time.Time, loc *time.Location) bool {
	if s.Status == StatusCancelled || s.Status == StatusCompleted {
		return false
	}
	start, ok := StartsAt(s.Date, s.StartTime, loc)
	if !ok {
		return true
	}
	return !start.Before(now.In(loc).Truncate(time.Minute))
}

// FilterUpcoming returns the upcoming sessions sorted by start. Unparseable ones come last.
func FilterUpcoming(sessions []Session, now time.Time, loc *time.Location) []Session {
	type entry struct {
		sess  Session
		start time.Time
		ok    bool
	}
	entries := make([]entry, 0, len(sessions))
	for _, s := range sessions {
		if !IsUpcoming(s, now, loc) {
			continue
		}
		start, ok := StartsAt(s.Date, s.StartTime, loc)
		entries = append(entries, entry{sess: s, start: start, ok: ok})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ok != entries[j].ok {
			return entries[i].ok
		}
		return entries[i].start.Before(entries[j].start)
	})

	upcoming := make([]Session, 0, len(entries))
	for _, e := range entries {
		upcoming = append(upcoming, e.sess)
	}
	return upcoming
}
