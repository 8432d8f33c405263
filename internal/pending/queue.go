// Package pending queues packets waiting for next-hop address resolution.
package pending

import (
	"container/list"

	"firestige.xyz/router/internal/core"
)

// Queue is an unbounded FIFO of frames. Nothing is ever dropped or timed out:
// a frame whose resolution never completes stays queued. Not safe for
// concurrent use.
type Queue struct {
	frames *list.List
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{frames: list.New()}
}

// Enqueue appends a private copy of frame.
func (q *Queue) Enqueue(frame core.Frame) {
	q.frames.PushBack(frame.Clone())
}

// Dequeue removes and returns the oldest frame.
func (q *Queue) Dequeue() (core.Frame, bool) {
	front := q.frames.Front()
	if front == nil {
		return core.Frame{}, false
	}
	q.frames.Remove(front)
	return front.Value.(core.Frame), true
}

// IsEmpty reports whether the queue holds no frames.
func (q *Queue) IsEmpty() bool {
	return q.frames.Len() == 0
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return q.frames.Len()
}
