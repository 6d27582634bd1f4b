package gpu

import (
	"sync"

	"GopherPBR/internal/logger"

	"go.uber.org/zap"
)

type reclaimEntry struct {
	obj      Destroyer
	eligible uint64
}

// ReclaimQueue defers destruction of objects that in-flight frames may still
// reference. An object pushed during frame F is destroyed by the Advance that
// reaches frame F+framesInFlight+1.
type ReclaimQueue struct {
	mu             sync.Mutex
	frame          uint64
	framesInFlight int
	entries        []reclaimEntry
}

func NewReclaimQueue(framesInFlight int) *ReclaimQueue {
	return &ReclaimQueue{framesInFlight: framesInFlight}
}

// Frame returns the current frame counter.
func (q *ReclaimQueue) Frame() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frame
}

// Pending returns the number of objects waiting for destruction.
func (q *ReclaimQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Push schedules obj for destruction. Nil objects are ignored.
func (q *ReclaimQueue) Push(obj Destroyer) {
	if obj == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, reclaimEntry{
		obj:      obj,
		eligible: q.frame + uint64(q.framesInFlight) + 1,
	})
}

// Advance moves to the next frame and destroys every entry that became
// eligible.
func (q *ReclaimQueue) Advance() {
	q.mu.Lock()
	q.frame++
	var ready []Destroyer
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.eligible <= q.frame {
			ready = append(ready, e.obj)
		} else {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = reclaimEntry{}
	}
	q.entries = kept
	frame := q.frame
	q.mu.Unlock()

	for _, obj := range ready {
		obj.Destroy()
	}
	if len(ready) > 0 {
		logger.Log.Debug("Reclaimed GPU objects",
			zap.Uint64("frame", frame),
			zap.Int("count", len(ready)))
	}
}

// Flush destroys everything immediately. The device must be idle.
func (q *ReclaimQueue) Flush() {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, e := range entries {
		e.obj.Destroy()
	}
}
