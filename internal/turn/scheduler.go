// Package turn implements the per-team rotating turn queue.
package turn

// Scheduler is an ordered rotating queue of connected client IDs. It
// never relies on map iteration order — the queue order is the only
// source of truth for whose turn it is.
type Scheduler struct {
	order []int
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{order: make([]int, 0, 4)}
}

// Seed replaces the queue with ids, in the given order, typically the
// team's connected client IDs in join order at match start.
func (s *Scheduler) Seed(ids []int) {
	s.order = append(s.order[:0], ids...)
}

// Append adds cid to the tail of the queue if it is not already present.
func (s *Scheduler) Append(cid int) {
	for _, id := range s.order {
		if id == cid {
			return
		}
	}
	s.order = append(s.order, cid)
}

// Remove deletes cid from the queue, preserving the relative order of
// the remaining entries.
func (s *Scheduler) Remove(cid int) {
	for i, id := range s.order {
		if id == cid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Current returns the head of the queue, or (0, false) if empty.
func (s *Scheduler) Current() (int, bool) {
	if len(s.order) == 0 {
		return 0, false
	}
	return s.order[0], true
}

// Rotate moves the head of the queue to the tail. A no-op on an empty or
// single-element queue.
func (s *Scheduler) Rotate() {
	if len(s.order) < 2 {
		return
	}
	head := s.order[0]
	s.order = append(s.order[1:], head)
}

// Order returns a copy of the current queue, head first.
func (s *Scheduler) Order() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of entries currently queued.
func (s *Scheduler) Len() int {
	return len(s.order)
}
