package date

import (
	"iter"
	"slices"
)

// History maps days to values, iterated in chronological order.
//
// Schedules use it to collect price points, the tracker to index the quotes a
// host already records.
type History[T any] struct {
	days   []Date
	values []T
}

// Len returns the number of days with a value.
func (h *History[T]) Len() int { return len(h.days) }

func (h *History[T]) search(day Date) (int, bool) {
	return slices.BinarySearchFunc(h.days, day, Date.Compare)
}

// Append sets the value of day, replacing any previous one, and returns h.
func (h *History[T]) Append(day Date, value T) *History[T] {
	i, found := h.search(day)
	if found {
		h.values[i] = value
		return h
	}
	h.days = slices.Insert(h.days, i, day)
	h.values = slices.Insert(h.values, i, value)
	return h
}

// Values iterates over days and their value, oldest first.
func (h *History[T]) Values() iter.Seq2[Date, T] {
	return func(yield func(Date, T) bool) {
		for i, day := range h.days {
			if !yield(day, h.values[i]) {
				return
			}
		}
	}
}

// Get returns the value of day, and false if there is none.
func (h *History[T]) Get(day Date) (T, bool) {
	i, found := h.search(day)
	if !found {
		var zero T
		return zero, false
	}
	return h.values[i], true
}
