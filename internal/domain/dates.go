package domain

import "time"

const day = 24 * time.Hour

// Nights counts nights in the half-open range [from, to).
func Nights(from, to time.Time) int {
	d := to.Sub(from)
	n := int(d / day)
	if d%day > 0 {
		n++
	}
	return n
}

// Overlaps reports whether two half-open date ranges intersect. Touching
// endpoints do not overlap, so back-to-back stays are allowed.
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && aTo.After(bFrom)
}
