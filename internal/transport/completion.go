package transport

import "container/list"

// completionSet records message ids whose payload has already been
// emitted, consulted to reject late-arriving fragments. It is a
// size-bounded LRU so a long-lived receiver doesn't leak one map entry
// per message forever: once maxSize entries are held, the
// least-recently-completed id is evicted to admit the newest. maxSize
// <= 0 disables the bound.
type completionSet struct {
	maxSize int
	order   *list.List               // front = most recently completed
	index   map[uint32]*list.Element // message_id -> element in order
}

func newCompletionSet(maxSize int) *completionSet {
	return &completionSet{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[uint32]*list.Element),
	}
}

// Has reports whether id has already been delivered.
func (s *completionSet) Has(id uint32) bool {
	_, ok := s.index[id]
	return ok
}

// Add records id as delivered, evicting the oldest entry if the set is
// full.
func (s *completionSet) Add(id uint32) {
	if el, ok := s.index[id]; ok {
		s.order.MoveToFront(el)
		return
	}
	el := s.order.PushFront(id)
	s.index[id] = el

	if s.maxSize <= 0 {
		return
	}
	for s.order.Len() > s.maxSize {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(uint32))
	}
}

// Len reports the number of tracked ids.
func (s *completionSet) Len() int { return s.order.Len() }
