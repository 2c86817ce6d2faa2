package bracket

import "sync/atomic"

// IDSource hands out client order ids.
type IDSource interface {
	Next() int64
}

// ClientOrderIDSequence issues strictly increasing client order ids for one process run.
// The first id is 1 and ids are never reused, even when the order they were issued for fails.
type ClientOrderIDSequence struct {
	last atomic.Int64
}

func NewClientOrderIDSequence() *ClientOrderIDSequence {
	return &ClientOrderIDSequence{}
}

func (s *ClientOrderIDSequence) Next() int64 {
	return s.last.Add(1)
}

// Last returns the most recently issued id, 0 when none was issued yet.
func (s *ClientOrderIDSequence) Last() int64 {
	return s.last.Load()
}
