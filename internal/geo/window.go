package geo

import "time"

// Window is the closed interval [At-Tolerance, At+Tolerance]
type Window struct {
	At        time.Time
	Tolerance time.Duration
}

// Start returns the lower edge of the window
func (w Window) Start() time.Time { return w.At.Add(-w.Tolerance) }

// End returns the upper edge of the window
func (w Window) End() time.Time { return w.At.Add(w.Tolerance) }

// Contains reports whether t falls inside the window, edges included
func (w Window) Contains(t time.Time) bool {
	t = Normalize(t)
	return !t.Before(Normalize(w.Start())) && !t.After(Normalize(w.End()))
}

// Normalize converts t to the single representation used for storage and
// comparison: UTC with monotonic reading stripped.
func Normalize(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// FromWallClock reinterprets a zone-less wall clock reading (as parsed from
// form input, which Go reports as UTC) as local time in loc and normalizes it.
// Offset-aware inputs must not go through here, they only need Normalize.
func FromWallClock(wall time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
	return Normalize(local)
}
