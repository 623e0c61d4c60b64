package cutoff

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Window is the monthly reconciliation period during which batch entry is
// closed. It opens on StartDay at StartHour and closes on EndDay at EndHour
// of the following month, both evaluated in Location.
type Window struct {
	StartDay  int
	StartHour int
	EndDay    int
	EndHour   int
	Location  *time.Location
}

// NewWindow validates the bounds and resolves the timezone name
func NewWindow(startDay, startHour, endDay, endHour int, timezone string) (*Window, error) {
	if startDay < 1 || startDay > 31 || endDay < 1 || endDay > 31 {
		return nil, fmt.Errorf("cutoff days must be within 1..31, got %d and %d", startDay, endDay)
	}
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 {
		return nil, fmt.Errorf("cutoff hours must be within 0..23, got %d and %d", startHour, endHour)
	}
	if endDay >= startDay {
		return nil, fmt.Errorf("cutoff must span a month boundary: end day %d is not before start day %d", endDay, startDay)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load cutoff timezone %q: %w", timezone, err)
	}

	return &Window{
		StartDay:  startDay,
		StartHour: startHour,
		EndDay:    endDay,
		EndHour:   endHour,
		Location:  loc,
	}, nil
}

// Active reports whether t falls inside the window
func (w *Window) Active(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	day, hour := t.Day(), t.Hour()

	switch {
	case day > w.StartDay:
		return true
	case day == w.StartDay:
		return hour >= w.StartHour
	case day < w.EndDay:
		return true
	case day == w.EndDay:
		return hour < w.EndHour
	}
	return false
}

// ReopensAt returns the first instant at or after t when the window is closed
func (w *Window) ReopensAt(t time.Time) time.Time {
	if !w.Active(t) {
		return t
	}
	if w.Location != nil {
		t = t.In(w.Location)
	}

	year, month, day := t.Date()
	if day >= w.StartDay {
		month++
	}
	return time.Date(year, month, w.EndDay, w.EndHour, 0, 0, 0, t.Location())
}
