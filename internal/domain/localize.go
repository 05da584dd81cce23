package domain

import (
	"fmt"
	"time"
)

// DefaultTimezone is the civil timezone of the study region.
const DefaultTimezone = "Europe/Madrid"

// Localize composes (year, month, day, hour) into an absolute instant in loc,
// applying that zone's daylight-saving rules.
//
// A local time falling in a spring-forward gap is shifted to the next valid
// instant. An ambiguous fall-back time resolves to the earlier of the two
// instants, the one consistent with an ascending hourly sequence. An
// unconstructable tuple (day 32, month 13, hour outside 0-23) is an error.
func Localize(year, month, day, hour int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		return time.Time{}, fmt.Errorf("localize: nil location")
	}
	if hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("localize: hour %d out of range", hour)
	}

	// time.Date normalizes out-of-range calendar components (Feb 30 becomes
	// Mar 2), so probe the date at noon UTC where no DST transition can
	// interfere, and reject any tuple that rolled over.
	probe := time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
	if probe.Year() != year || int(probe.Month()) != month || probe.Day() != day {
		return time.Time{}, fmt.Errorf("localize: invalid calendar date %04d-%02d-%02d", year, month, day)
	}

	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, loc)
	if t.Hour() == hour {
		// The wall time may be ambiguous: during fall-back the same hour
		// occurs twice and the runtime picks the later instant. When the
		// instant one hour back shows the same wall clock, take it, the
		// earlier of the two.
		if earlier := t.Add(-time.Hour); earlier.Hour() == hour && earlier.Day() == day {
			return earlier, nil
		}
		return t, nil
	}

	// The wall time does not exist: it fell in a spring-forward gap and the
	// runtime landed on one side of it. Shift forward to the first valid
	// instant after the gap.
	if t.Hour() == (hour+23)%24 {
		t = t.Add(time.Hour)
	}
	return t, nil
}
