package plot

import (
	"strconv"

	"github.com/matzehuels/afcplot/pkg/errors"
)

// Bound is one end of an axis range: a fixed value or Auto.
type Bound struct {
	v   float64
	set bool
}

// Auto leaves a bound to auto-scaling.
var Auto = Bound{}

// At fixes a bound at v.
func At(v float64) Bound { return Bound{v: v, set: true} }

// Value returns the fixed value and whether the bound is fixed.
func (b Bound) Value() (float64, bool) { return b.v, b.set }

// IsAuto reports whether the bound is left to auto-scaling.
func (b Bound) IsAuto() bool { return !b.set }

func (b Bound) String() string {
	if !b.set {
		return "auto"
	}
	return strconv.FormatFloat(b.v, 'g', -1, 64)
}

// LimitPolicy decides which one-sided limits are accepted.
type LimitPolicy int

const (
	// LimitsStrict accepts a one-sided auto range only when the fixed bound
	// is zero. Both backends render that case identically.
	LimitsStrict LimitPolicy = iota
	// LimitsRelaxed accepts any one-sided auto range.
	LimitsRelaxed
)

// ParseLimitPolicy parses "strict" or "relaxed".
func ParseLimitPolicy(s string) (LimitPolicy, error) {
	switch s {
	case "", "strict":
		return LimitsStrict, nil
	case "relaxed":
		return LimitsRelaxed, nil
	}
	return LimitsStrict, errors.New(errors.ErrCodeInvalidConfig, "unknown axis limit policy %q (want strict or relaxed)", s)
}

// checkLimits enforces the axis-limit contract.
func checkLimits(dim Dim, lo, hi Bound, policy LimitPolicy) error {
	if policy == LimitsRelaxed || lo.set == hi.set {
		return nil
	}
	fixed := lo
	if hi.set {
		fixed = hi
	}
	if fixed.v != 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"%s-limits (%s, %s): with one bound on auto the other must be 0", dim, lo, hi)
	}
	return nil
}

// ResolveBounds fills the auto ends of a range from a data extent. An empty
// extent (nothing flushed yet) counts as [0, 1].
func ResolveBounds(lo, hi Bound, dataMin, dataMax float64, hasData bool) (float64, float64) {
	if !hasData {
		dataMin, dataMax = 0, 1
	}
	l, h := dataMin, dataMax
	if lo.set {
		l = lo.v
	}
	if hi.set {
		h = hi.v
	}
	return l, h
}
