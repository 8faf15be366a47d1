// Package calendar answers whether the facility is open on a given day and
// during which hours. Everything here is a pure function of the date; holidays
// are derived per year so no table needs maintaining.
package calendar

import (
	"sort"
	"time"
)

const (
	OpeningHour         = 8
	WeekdayClosingHour  = 17
	SaturdayClosingHour = 13

	SlotLength = 30 * time.Minute
)

// Hours is the trading window of a single day. StartHour and EndHour are zero
// when the facility is closed.
type Hours struct {
	Open      bool   `json:"open"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Holiday   string `json:"holiday,omitempty"`
}

type Holiday struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

var fixedHolidays = []struct {
	month time.Month
	day   int
	name  string
}{
	{time.January, 1, "New Year's Day"},
	{time.March, 21, "Human Rights Day"},
	{time.April, 27, "Freedom Day"},
	{time.May, 1, "Workers' Day"},
	{time.June, 16, "Youth Day"},
	{time.August, 9, "National Women's Day"},
	{time.September, 24, "Heritage Day"},
	{time.December, 16, "Day of Reconciliation"},
	{time.December, 25, "Christmas Day"},
	{time.December, 26, "Day of Goodwill"},
}

// IsOpen reports the trading hours for the calendar day of date, read in
// date's own location.
func IsOpen(date time.Time) Hours {
	if name, ok := HolidayName(date); ok {
		return Hours{Holiday: name}
	}

	switch date.Weekday() {
	case time.Sunday:
		return Hours{}
	case time.Saturday:
		return Hours{Open: true, StartHour: OpeningHour, EndHour: SaturdayClosingHour}
	default:
		return Hours{Open: true, StartHour: OpeningHour, EndHour: WeekdayClosingHour}
	}
}

// HolidayName returns the public holiday falling on date, if any.
func HolidayName(date time.Time) (string, bool) {
	y, m, d := date.Date()
	for _, h := range fixedHolidays {
		if h.month == m && h.day == d {
			return h.name, true
		}
	}

	easter := EasterSunday(y, time.UTC)
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch {
	case day.Equal(easter.AddDate(0, 0, -2)):
		return "Good Friday", true
	case day.Equal(easter.AddDate(0, 0, 1)):
		return "Family Day", true
	}
	return "", false
}

// Holidays lists every public holiday of year in date order.
func Holidays(year int, loc *time.Location) []Holiday {
	if loc == nil {
		loc = time.UTC
	}
	easter := EasterSunday(year, loc)
	out := make([]Holiday, 0, len(fixedHolidays)+2)
	for _, h := range fixedHolidays {
		out = append(out, Holiday{Name: h.name, Date: time.Date(year, h.month, h.day, 0, 0, 0, 0, loc)})
	}
	out = append(out,
		Holiday{Name: "Good Friday", Date: easter.AddDate(0, 0, -2)},
		Holiday{Name: "Family Day", Date: easter.AddDate(0, 0, 1)},
	)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// EasterSunday computes Easter for year with the anonymous Gregorian
// (Meeus/Jones/Butcher) algorithm.
func EasterSunday(year int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

// StartOfDay truncates t to midnight of its calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SlotStarts enumerates the 30-minute grid of date's trading window,
// excluding the closing hour. A closed day yields nil.
func SlotStarts(date time.Time, loc *time.Location) []time.Time {
	day := StartOfDay(date, loc)
	hours := IsOpen(day)
	if !hours.Open {
		return nil
	}

	y, m, d := day.Date()
	start := time.Date(y, m, d, hours.StartHour, 0, 0, 0, day.Location())
	end := time.Date(y, m, d, hours.EndHour, 0, 0, 0, day.Location())

	slots := make([]time.Time, 0, int(end.Sub(start)/SlotLength))
	for t := start; t.Before(end); t = t.Add(SlotLength) {
		slots = append(slots, t)
	}
	return slots
}

// WithinHours reports whether slot starts inside its day's trading window.
func WithinHours(slot time.Time) bool {
	hours := IsOpen(slot)
	if !hours.Open {
		return false
	}
	y, m, d := slot.Date()
	start := time.Date(y, m, d, hours.StartHour, 0, 0, 0, slot.Location())
	end := time.Date(y, m, d, hours.EndHour, 0, 0, 0, slot.Location())
	return !slot.Before(start) && slot.Before(end)
}
