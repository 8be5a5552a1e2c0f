package irc

import (
	"sync"
	"time"

	"github.com/matt0x6f/irc-engine/internal/logger"
)

// sendFunc delivers one raw IRC line to the wire.
type sendFunc func(line string) error

// OutboundQueue paces raw lines to the server to stay under flood limits.
// Lines are sent strictly in FIFO order, at most one per interval; the
// first line after an idle period goes out immediately.
type OutboundQueue struct {
	mu       sync.Mutex
	lines    []string
	interval time.Duration
	send     sendFunc

	wake    chan struct{}
	done    chan struct{}
	stopped bool

	linesSent int
	bytesSent int
}

// NewOutboundQueue creates a queue draining through send at the given
// pacing interval. Call Start to begin draining.
func NewOutboundQueue(interval time.Duration, send sendFunc) *OutboundQueue {
	return &OutboundQueue{
		interval: interval,
		send:     send,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the drain loop.
func (q *OutboundQueue) Start() {
	go q.loop()
}

// Enqueue appends a line for paced delivery.
func (q *OutboundQueue) Enqueue(line string) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.lines = append(q.lines, line)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// EnqueueFront inserts a line at the head of the queue, ahead of anything
// already waiting. Used for urgent protocol replies.
func (q *OutboundQueue) EnqueueFront(line string) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.lines = append([]string{line}, q.lines...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of lines still waiting.
func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}

// Stats returns lines and bytes sent since creation.
func (q *OutboundQueue) Stats() (lines, bytes int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.linesSent, q.bytesSent
}

// Flush synchronously sends everything still queued, bypassing pacing.
// Used on the quit path so a QUIT message is not left behind.
func (q *OutboundQueue) Flush() {
	for {
		line, ok := q.pop()
		if !ok {
			return
		}
		q.deliver(line)
	}
}

// Clear drops all pending lines without sending them.
func (q *OutboundQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lines = nil
}

// Stop halts the drain loop. Pending lines are dropped.
func (q *OutboundQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.lines = nil
	q.mu.Unlock()
	close(q.done)
}

func (q *OutboundQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines = q.lines[1:]
	return line, true
}

func (q *OutboundQueue) deliver(line string) {
	if err := q.send(line); err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to send queued line")
		return
	}
	q.mu.Lock()
	q.linesSent++
	q.bytesSent += len(line)
	q.mu.Unlock()
}

func (q *OutboundQueue) loop() {
	for {
		line, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}

		q.deliver(line)

		select {
		case <-time.After(q.interval):
		case <-q.done:
			return
		}
	}
}
