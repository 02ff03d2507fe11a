package stream

// Source produces records for WriteFile. Record values are passed to
// Writer.Write, so any shape it accepts may be produced.
type Source interface {
	Next() bool
	Record() any
	Err() error
}

type sliceSource[T any] struct {
	items []T
	pos   int
	cur   T
}

// Slice adapts an in-memory sequence to a Source.
func Slice[T any](items []T) Source {
	return &sliceSource[T]{items: items}
}

func (s *sliceSource[T]) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.cur = s.items[s.pos]
	s.pos++
	return true
}

func (s *sliceSource[T]) Record() any {
	return s.cur
}

func (s *sliceSource[T]) Err() error {
	return nil
}
