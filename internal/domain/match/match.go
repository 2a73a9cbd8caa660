// Package match evaluates ordered (predicate, outcome) cases where the first match wins.
package match

// Case is one named entry of an ordered decision list.
// Eval reports the outcome and whether the case matched.
type Case[T any] struct {
	Name string
	Eval func() (T, bool)
}

// Result is the outcome of First
type Result[T any] struct {
	Value   T
	Name    string
	Index   int
	Matched bool
}

// First evaluates cases in order and returns the first match.
// Cases after the first match are not evaluated.
func First[T any](cases []Case[T]) Result[T] {
	for i, c := range cases {
		if c.Eval == nil {
			continue
		}
		if v, ok := c.Eval(); ok {
			return Result[T]{Value: v, Name: c.Name, Index: i, Matched: true}
		}
	}
	return Result[T]{Index: -1}
}

// FirstOr is First with a fallback value when nothing matches
func FirstOr[T any](cases []Case[T], fallback T) Result[T] {
	r := First(cases)
	if !r.Matched {
		r.Value = fallback
	}
	return r
}

// When builds a case from a predicate and a fixed outcome
func When[T any](name string, pred func() bool, value T) Case[T] {
	return Case[T]{
		Name: name,
		Eval: func() (T, bool) {
			if pred() {
				return value, true
			}
			var zero T
			return zero, false
		},
	}
}
