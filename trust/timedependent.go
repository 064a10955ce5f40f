// Package trust models trusted-list service information: the history of a
// trust service's type and status over time.
package trust

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrOverlap       = errors.New("time-dependent value overlaps existing values")
	ErrInvalidPeriod = errors.New("time-dependent value ends before it starts")
)

// TimeDependent is a value valid from a start date up to an optional end date.
type TimeDependent interface {
	StartDate() time.Time
	// EndDate returns nil while the value is still current.
	EndDate() *time.Time
}

// TimeDependentValues is a history of non-overlapping values ordered from
// newest to oldest.
type TimeDependentValues[T TimeDependent] struct {
	values []T
}

// NewTimeDependentValues builds a history from values ordered newest first.
func NewTimeDependentValues[T TimeDependent](values ...T) (*TimeDependentValues[T], error) {
	v := &TimeDependentValues[T]{}
	for _, x := range values {
		if err := v.AddOldest(x); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// AddOldest appends a value older than every value already present. The
// value must end at or before the start of the current oldest value; gaps
// are allowed.
func (v *TimeDependentValues[T]) AddOldest(x T) error {
	if end := x.EndDate(); end != nil && end.Before(x.StartDate()) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, x.StartDate(), *end)
	}
	if n := len(v.values); n > 0 {
		oldest := v.values[n-1]
		end := x.EndDate()
		if end == nil || end.After(oldest.StartDate()) {
			return fmt.Errorf("%w: new value must end before %s", ErrOverlap, oldest.StartDate())
		}
	}
	v.values = append(v.values, x)
	return nil
}

// Current returns the value valid at t: start <= t and (no end or t < end).
func (v *TimeDependentValues[T]) Current(t time.Time) (T, bool) {
	if v != nil {
		for _, x := range v.values {
			if t.Before(x.StartDate()) {
				continue
			}
			if end := x.EndDate(); end == nil || t.Before(*end) {
				return x, true
			}
		}
	}
	var zero T
	return zero, false
}

// Latest returns the newest value.
func (v *TimeDependentValues[T]) Latest() (T, bool) {
	if v == nil || len(v.values) == 0 {
		var zero T
		return zero, false
	}
	return v.values[0], true
}

// All returns a copy of the values, newest first.
func (v *TimeDependentValues[T]) All() []T {
	if v == nil {
		return nil
	}
	out := make([]T, len(v.values))
	copy(out, v.values)
	return out
}

// Len returns the number of values.
func (v *TimeDependentValues[T]) Len() int {
	if v == nil {
		return 0
	}
	return len(v.values)
}
