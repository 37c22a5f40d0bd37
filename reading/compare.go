package reading

// DefaultEpsilon is the absolute tolerance used when comparing measurements.
const DefaultEpsilon = 0.1

// Comparator decides whether two readings are the same under a numeric
// tolerance.
//
// Numeric fields match when both are absent or when both are present and
// differ by strictly less than Epsilon. Status strings and the fallback flag
// must match exactly. The relation is symmetric.
type Comparator struct {
	Epsilon float64
}

// NewComparator returns a Comparator using eps, or [DefaultEpsilon] when eps
// is not positive.
func NewComparator(eps float64) Comparator {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return Comparator{Epsilon: eps}
}

// Equal reports whether a and b describe the same reading.
// A nil reading equals only another nil reading.
func (c Comparator) Equal(a, b *Reading) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.status != b.status || a.fallback != b.fallback {
		return false
	}
	return a.temperature.Close(b.temperature, c.Epsilon) &&
		a.luminosity.Close(b.luminosity, c.Epsilon) &&
		a.sound.Close(b.sound, c.Epsilon)
}
