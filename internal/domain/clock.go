package domain

import "time"

// Location is the fixed business timezone (Tashkent, UTC+5, no DST). It is
// deliberately independent of the host timezone.
var Location = time.FixedZone("UTC+5", 5*60*60)

const (
	CutoffHour   = 10
	CutoffMinute = 10
)

func LocalTime(t time.Time) time.Time {
	return t.In(Location)
}

// OrderingClosed reports whether t is at or after the daily cutoff.
func OrderingClosed(t time.Time) bool {
	lt := LocalTime(t)
	return lt.Hour() > CutoffHour || (lt.Hour() == CutoffHour && lt.Minute() >= CutoffMinute)
}

// MenuDate returns the local calendar date of t as YYYY-MM-DD.
func MenuDate(t time.Time) string {
	return LocalTime(t).Format("2006-01-02")
}
