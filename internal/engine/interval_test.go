package engine

import (
	"testing"
	"time"
)

func hm(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ymd(year, month, day int) Date {
	return Date{Year: year, Month: time.Month(month), Day: day}
}

func iv(date Date, start TimeOfDay, minutes int) TimeInterval {
	return TimeInterval{Date: date, Start: start, Minutes: minutes}
}

// =========== Overlaps Tests ===========

func TestOverlaps_Partial(t *testing.T) {
	d := ymd(2025, 6, 2)
	a := iv(d, hm(10, 0), 30)
	b := iv(d, hm(10, 15), 30)

	if !a.Overlaps(b) {
		t.Error("expected partial overlap to be detected")
	}
}

func TestOverlaps_Contained(t *testing.T) {
	d := ymd(2025, 6, 2)
	outer := iv(d, hm(9, 0), 120)
	inner := iv(d, hm(9, 30), 30)

	if !outer.Overlaps(inner) {
		t.Error("expected containment to count as overlap")
	}
	if !inner.Overlaps(outer) {
		t.Error("expected containment to count as overlap from either side")
	}
}

func TestOverlaps_Symmetric(t *testing.T) {
	d := ymd(2025, 6, 2)
	pairs := []struct {
		a, b TimeInterval
	}{
		{iv(d, hm(10, 0), 30), iv(d, hm(10, 15), 30)},
		{iv(d, hm(9, 0), 60), iv(d, hm(10, 0), 60)},
		{iv(d, hm(9, 0), 30), iv(d, hm(14, 0), 30)},
		{iv(d, hm(9, 0), 30), iv(ymd(2025, 6, 3), hm(9, 0), 30)},
	}

	for i, p := range pairs {
		if p.a.Overlaps(p.b) != p.b.Overlaps(p.a) {
			t.Errorf("pair %d: Overlaps is not symmetric", i)
		}
	}
}

func TestOverlaps_Self(t *testing.T) {
	a := iv(ymd(2025, 6, 2), hm(10, 0), 30)
	if !a.Overlaps(a) {
		t.Error("expected an interval to overlap itself")
	}
}

func TestOverlaps_Adjacent(t *testing.T) {
	d := ymd(2025, 6, 2)
	a := iv(d, hm(10, 0), 30)
	b := iv(d, hm(10, 30), 30)

	// Half-open semantics: back-to-back intervals do not overlap.
	if a.Overlaps(b) || b.Overlaps(a) {
		t.Error("expected adjacent intervals not to overlap")
	}
}

func TestOverlaps_DifferentDates(t *testing.T) {
	a := iv(ymd(2025, 6, 2), hm(10, 0), 30)
	b := iv(ymd(2025, 6, 3), hm(10, 0), 30)

	if a.Overlaps(b) {
		t.Error("expected intervals on different dates not to overlap")
	}
}

func TestOverlaps_ZeroDuration(t *testing.T) {
	d := ymd(2025, 6, 2)
	point := iv(d, hm(10, 0), 0)
	window := iv(d, hm(9, 0), 120)

	if point.Overlaps(window) || window.Overlaps(point) {
		t.Error("expected a zero-duration interval to overlap nothing")
	}
	if point.Overlaps(point) {
		t.Error("expected a zero-duration interval not to overlap itself")
	}
}

func TestTimeInterval_End(t *testing.T) {
	a := iv(ymd(2025, 6, 2), hm(16, 45), 30)
	if a.End() != hm(17, 15) {
		t.Errorf("expected end 17:15, got %s", a.End())
	}
}
