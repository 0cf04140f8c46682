package geo

import "cmp"

// Bound is an optional closed range. The zero value is Unbounded.
type Bound[T cmp.Ordered] struct {
	min, max       T
	hasMin, hasMax bool
}

// Unbounded imposes no constraint
func Unbounded[T cmp.Ordered]() Bound[T] { return Bound[T]{} }

// AtLeast constrains values to >= min
func AtLeast[T cmp.Ordered](min T) Bound[T] { return Bound[T]{min: min, hasMin: true} }

// AtMost constrains values to <= max
func AtMost[T cmp.Ordered](max T) Bound[T] { return Bound[T]{max: max, hasMax: true} }

// Between constrains values to [min, max]
func Between[T cmp.Ordered](min, max T) Bound[T] {
	return Bound[T]{min: min, max: max, hasMin: true, hasMax: true}
}

// BoundFrom builds a bound from two optional endpoints; nil drops that side.
func BoundFrom[T cmp.Ordered](min, max *T) Bound[T] {
	var b Bound[T]
	if min != nil {
		b.min, b.hasMin = *min, true
	}
	if max != nil {
		b.max, b.hasMax = *max, true
	}
	return b
}

// Active reports whether the bound constrains anything
func (b Bound[T]) Active() bool { return b.hasMin || b.hasMax }

// Min returns the lower endpoint and whether it is set
func (b Bound[T]) Min() (T, bool) { return b.min, b.hasMin }

// Max returns the upper endpoint and whether it is set
func (b Bound[T]) Max() (T, bool) { return b.max, b.hasMax }

// Contains reports whether v satisfies every set endpoint (inclusive)
func (b Bound[T]) Contains(v T) bool {
	if b.hasMin && v < b.min {
		return false
	}
	if b.hasMax && v > b.max {
		return false
	}
	return true
}

// ContainsPtr applies the bound to an optional attribute. A missing value
// never satisfies an active bound.
func (b Bound[T]) ContainsPtr(v *T) bool {
	if !b.Active() {
		return true
	}
	if v == nil {
		return false
	}
	return b.Contains(*v)
}
