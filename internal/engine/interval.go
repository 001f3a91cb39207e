package engine

// TimeInterval is a same-day time range: a start time plus a duration in
// minutes. Multi-day spans are not representable.
type TimeInterval struct {
	Date    Date      `json:"date"`
	Start   TimeOfDay `json:"start_time"`
	Minutes int       `json:"duration_minutes"`
}

// End returns the exclusive end time of the interval.
func (iv TimeInterval) End() TimeOfDay {
	return iv.Start + TimeOfDay(iv.Minutes)
}

// Overlaps reports whether two intervals intersect, using half-open
// semantics: an interval ending exactly when another begins does not
// overlap it. Intervals on different dates never overlap. Degenerate
// intervals (duration <= 0) never overlap anything.
func (iv TimeInterval) Overlaps(other TimeInterval) bool {
	if iv.Date != other.Date {
		return false
	}
	if iv.Minutes <= 0 || other.Minutes <= 0 {
		return false
	}
	return iv.Start < other.End() && iv.End() > other.Start
}

// overlapsAny reports whether iv overlaps any interval in the list.
func overlapsAny(iv TimeInterval, others []TimeInterval) (TimeInterval, bool) {
	for _, other := range others {
		if iv.Overlaps(other) {
			return other, true
		}
	}
	return TimeInterval{}, false
}
