package model

// Stack is a stack of values built from a slice. Popping is O(1).
type Stack[T any] struct {
	values []T
}

// StackOf returns a stack holding a copy of values, the last element on top.
func StackOf[T any](values []T) *Stack[T] {
	s := &Stack[T]{values: make([]T, len(values))}
	copy(s.values, values)
	return s
}

// Pop removes and returns the top value from the stack.
func (s *Stack[T]) Pop() (result T, ok bool) {
	if len(s.values) == 0 {
		ok = false
		return
	}
	top := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return top, true
}

func (s *Stack[T]) Len() int { return len(s.values) }

// Each calls fn for every value from the top of the stack down, without
// removing anything. Iteration stops when fn returns false.
func (s *Stack[T]) Each(fn func(T) bool) {
	for i := len(s.values) - 1; i >= 0; i-- {
		if !fn(s.values[i]) {
			return
		}
	}
}

// Queue is a FIFO worklist.
type Queue[T any] struct {
	values []T
	head   int
}

func (q *Queue[T]) Push(v T) {
	q.values = append(q.values, v)
}

// Pop removes and returns the oldest value.
func (q *Queue[T]) Pop() (result T, ok bool) {
	if q.head == len(q.values) {
		return result, false
	}
	result = q.values[q.head]
	var zero T
	q.values[q.head] = zero
	q.head++
	if q.head == len(q.values) {
		q.values = q.values[:0]
		q.head = 0
	}
	return result, true
}

func (q *Queue[T]) Len() int { return len(q.values) - q.head }
