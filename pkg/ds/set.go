package ds

type void struct{}

var empty void

type Set[T comparable] interface {
	Add(item T)
	Contains(item T) bool
	Size() int
	ToSlice() []T
}

func NewSet[T comparable](items ...T) Set[T] {
	s := &mapSet[T]{data: make(map[T]void, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

type mapSet[T comparable] struct {
	data map[T]void
}

func (s *mapSet[T]) Add(item T) {
	s.data[item] = empty
}

func (s *mapSet[T]) Contains(item T) bool {
	_, exists := s.data[item]
	return exists
}

func (s *mapSet[T]) Size() int {
	return len(s.data)
}

func (s *mapSet[T]) ToSlice() []T {
	slice := make([]T, 0, len(s.data))
	for item := range s.data {
		slice = append(slice, item)
	}
	return slice
}
