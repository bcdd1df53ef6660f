package geo

// Radius is a distance constraint with an explicit unbounded mode. A zero or
// negative kilometre value collapses to Unbounded: "0 km" in user preferences
// and filters means "no distance constraint", never "nothing matches".
type Radius struct {
	km      float64
	bounded bool
}

func Unbounded() Radius {
	return Radius{}
}

func Bounded(km float64) Radius {
	if !(km > 0) {
		return Unbounded()
	}
	return Radius{km: km, bounded: true}
}

// Km returns the bound in kilometres and whether one exists.
func (r Radius) Km() (float64, bool) {
	return r.km, r.bounded
}

// Contains reports whether a distance satisfies the constraint.
func (r Radius) Contains(distanceKm float64) bool {
	if !r.bounded {
		return true
	}
	return distanceKm <= r.km
}

// WithinRadius narrows candidates to those whose location is within radius of
// ref. Unbounded returns the input unchanged. Candidates without a valid
// location are excluded from bounded filtering.
func WithinRadius[T any](ref Coordinate, candidates []T, locate func(T) *Coordinate, radius Radius) []T {
	if _, bounded := radius.Km(); !bounded {
		return candidates
	}

	var kept []T
	for _, c := range candidates {
		loc := locate(c)
		if loc == nil || !loc.Valid() {
			continue
		}
		if radius.Contains(HaversineKm(ref, *loc)) {
			kept = append(kept, c)
		}
	}
	return kept
}
