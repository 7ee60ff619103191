// Package rules implements first-match rule resolution for page imposition
// and cost calculation.
package rules

// Slot is one independent variable of a rule. A wildcard slot matches any
// template value.
type Slot[T comparable] struct {
	Value    T
	Wildcard bool
}

// Is returns a slot that only matches v.
func Is[T comparable](v T) Slot[T] {
	return Slot[T]{Value: v}
}

// Any returns a wildcard slot.
func Any[T comparable]() Slot[T] {
	return Slot[T]{Wildcard: true}
}

// Rule pairs an ordered tuple of independent variables with its result.
type Rule[T comparable, R any] struct {
	Slots  []Slot[T]
	Result R
}

// Matches reports whether every non-wildcard slot equals the template value
// at the same position. Tuples of different arity never match.
func (r Rule[T, R]) Matches(template []T) bool {
	if len(r.Slots) != len(template) {
		return false
	}
	for i, slot := range r.Slots {
		if !slot.Wildcard && slot.Value != template[i] {
			return false
		}
	}
	return true
}

// Match returns the first rule in list order that matches template.
func Match[T comparable, R any](rules []Rule[T, R], template []T) (Rule[T, R], bool) {
	return First(rules, func(r Rule[T, R]) bool { return r.Matches(template) })
}

// First returns the first element of items accepted by pred.
func First[E any](items []E, pred func(E) bool) (E, bool) {
	for _, item := range items {
		if pred(item) {
			return item, true
		}
	}
	var zero E
	return zero, false
}
