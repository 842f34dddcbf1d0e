package capture

import "sync"

// queueDepth matches an image reader created with maxImages=2.
const queueDepth = 2

// latestQueue holds at most queueDepth frames. Pushing into a full queue
// evicts the oldest frame; taking returns the newest and drops the rest.
type latestQueue struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (q *latestQueue) push(f Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if len(q.frames) == queueDepth {
		copy(q.frames, q.frames[1:])
		q.frames = q.frames[:queueDepth-1]
	}
	q.frames = append(q.frames, f)
	return true
}

func (q *latestQueue) takeLatest() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[len(q.frames)-1]
	for i := range q.frames {
		q.frames[i] = Frame{}
	}
	q.frames = q.frames[:0]
	return f, true
}

func (q *latestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

func (q *latestQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.frames = nil
}
