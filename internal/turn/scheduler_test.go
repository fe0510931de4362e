package turn

import "testing"

func TestAppendDedups(t *testing.T) {
	s := New()
	s.Append(1)
	s.Append(2)
	s.Append(1)
	if got := s.Order(); len(got) != 2 {
		t.Fatalf("Order() = %v, want 2 unique entries", got)
	}
}

func TestRotateMovesHeadToTail(t *testing.T) {
	s := New()
	s.Seed([]int{1, 2, 3})
	s.Rotate()
	if got := s.Order(); got[0] != 2 || got[1] != 3 || got[2] != 1 {
		t.Fatalf("Order() after rotate = %v, want [2 3 1]", got)
	}
}

func TestRemovePreservesOrder(t *testing.T) {
	s := New()
	s.Seed([]int{1, 2, 3, 4})
	s.Remove(2)
	if got := s.Order(); got[0] != 1 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("Order() after remove = %v, want [1 3 4]", got)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
}

func TestCurrentOnEmptyQueue(t *testing.T) {
	s := New()
	if _, ok := s.Current(); ok {
		t.Fatal("Current() on empty queue should return ok=false")
	}
}

func TestRotateSingleElementNoop(t *testing.T) {
	s := New()
	s.Seed([]int{7})
	s.Rotate()
	if got := s.Order(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("Order() after rotate on single element = %v, want [7]", got)
	}
}
