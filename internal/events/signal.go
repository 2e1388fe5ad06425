package events

import "sync"

type listener[T any] struct {
	id int
	fn func(T)
}

// Signal is a synchronous, ordered event stream. Emit dispatches the
// payload to every listener attached at the moment of emission, in
// attachment order. No buffering, no replay.
type Signal[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener[T]
}

// NewSignal creates an empty signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Connect attaches fn and returns a disconnect function. Disconnecting
// twice is a no-op.
func (s *Signal[T]) Connect(fn func(T)) (disconnect func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers v to all currently attached listeners. The listener set
// is snapshotted first, so a listener attached or detached during
// dispatch does not affect this emission.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		l.fn(v)
	}
}

// DisconnectAll detaches every listener. Used on dispose so no further
// events are deliverable through the owner.
func (s *Signal[T]) DisconnectAll() {
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}

// Len returns the number of attached listeners.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
