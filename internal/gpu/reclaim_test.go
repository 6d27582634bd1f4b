package gpu

import (
	"testing"
)

type countingDestroyer struct {
	destroyed int
}

func (c *countingDestroyer) Destroy() { c.destroyed++ }

func TestReclaimQueueDefersByFramesInFlight(t *testing.T) {
	for _, fif := range []int{1, 2, 3} {
		q := NewReclaimQueue(fif)
		for push := 0; push < 5; push++ {
			for q.Frame() < uint64(push) {
				q.Advance()
			}
			obj := &countingDestroyer{}
			q.Push(obj)
			pushed := q.Frame()
			for q.Frame() < pushed+uint64(fif) {
				q.Advance()
				if obj.destroyed != 0 {
					t.Fatalf("fif %d: object pushed at frame %d destroyed at frame %d", fif, pushed, q.Frame())
				}
			}
			q.Advance()
			if obj.destroyed != 1 {
				t.Fatalf("fif %d: object pushed at frame %d should be destroyed at frame %d, destroyed %d times",
					fif, pushed, q.Frame(), obj.destroyed)
			}
		}
		if q.Pending() != 0 {
			t.Errorf("fif %d: expected an empty queue, got %d entries", fif, q.Pending())
		}
	}
}

func TestReclaimQueueFlush(t *testing.T) {
	q := NewReclaimQueue(2)
	a, b := &countingDestroyer{}, &countingDestroyer{}
	q.Push(a)
	q.Advance()
	q.Push(b)
	q.Push(nil)
	if q.Pending() != 2 {
		t.Fatalf("expected 2 pending objects, got %d", q.Pending())
	}
	q.Flush()
	if a.destroyed != 1 || b.destroyed != 1 {
		t.Errorf("Flush should destroy everything once, got %d and %d", a.destroyed, b.destroyed)
	}
	q.Advance()
	q.Advance()
	q.Advance()
	if a.destroyed != 1 || b.destroyed != 1 {
		t.Error("flushed objects should not be destroyed again")
	}
}

func TestSharedReleasesOnLastReference(t *testing.T) {
	q := NewReclaimQueue(1)
	obj := &countingDestroyer{}
	s := NewShared(obj, q.Push)
	s.Retain()
	if s.Refs() != 2 {
		t.Fatalf("expected 2 references, got %d", s.Refs())
	}
	if s.Release() {
		t.Error("first release should not be the last")
	}
	if !s.Release() {
		t.Error("second release should be the last")
	}
	if obj.destroyed != 0 {
		t.Error("release should hand the object to the queue, not destroy it inline")
	}
	if q.Pending() != 1 {
		t.Fatalf("expected the object on the reclaim queue, got %d entries", q.Pending())
	}
	q.Flush()
	if obj.destroyed != 1 {
		t.Errorf("expected one destroy, got %d", obj.destroyed)
	}
}

func TestSharedRetainAfterReleasePanics(t *testing.T) {
	s := NewShared(&countingDestroyer{}, nil)
	s.Release()
	defer func() {
		if recover() == nil {
			t.Error("Retain of a released object should panic")
		}
	}()
	s.Retain()
}
