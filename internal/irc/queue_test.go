package irc_test

import (
	"sync"
	"testing"
	"time"

	"github.com/matt0x6f/irc-engine/internal/irc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineRecorder collects delivered lines for assertions.
type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) send(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *lineRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

func TestQueueDeliversInOrder(t *testing.T) {
	rec := &lineRecorder{}
	q := irc.NewOutboundQueue(time.Millisecond, rec.send)
	q.Start()
	defer q.Stop()

	q.Enqueue("one")
	q.Enqueue("two")
	q.Enqueue("three")

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"one", "two", "three"}, rec.snapshot())
	lines, bytes := q.Stats()
	assert.Equal(t, 3, lines)
	assert.Equal(t, len("one")+len("two")+len("three"), bytes)
}

func TestQueueFirstLineImmediate(t *testing.T) {
	rec := &lineRecorder{}
	// Long interval: only the immediate first line should go out
	q := irc.NewOutboundQueue(time.Minute, rec.send)
	q.Start()
	defer q.Stop()

	q.Enqueue("first")
	q.Enqueue("second")

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"first"}, rec.snapshot())
	assert.Equal(t, 1, q.Len())
}

func TestQueueEnqueueFront(t *testing.T) {
	rec := &lineRecorder{}
	q := irc.NewOutboundQueue(time.Minute, rec.send)

	q.Enqueue("normal")
	q.EnqueueFront("urgent")

	q.Flush()
	assert.Equal(t, []string{"urgent", "normal"}, rec.snapshot())
}

func TestQueueFlushBypassesPacing(t *testing.T) {
	rec := &lineRecorder{}
	q := irc.NewOutboundQueue(time.Hour, rec.send)

	q.Enqueue("QUIT :bye")
	q.Enqueue("trailing")
	q.Flush()

	assert.Equal(t, []string{"QUIT :bye", "trailing"}, rec.snapshot())
	assert.Equal(t, 0, q.Len())
}

func TestQueueClearDropsPending(t *testing.T) {
	rec := &lineRecorder{}
	q := irc.NewOutboundQueue(time.Hour, rec.send)

	q.Enqueue("doomed")
	q.Clear()
	q.Flush()

	assert.Empty(t, rec.snapshot())
}

func TestQueueStopRejectsNewLines(t *testing.T) {
	rec := &lineRecorder{}
	q := irc.NewOutboundQueue(time.Millisecond, rec.send)
	q.Start()

	q.Stop()
	q.Enqueue("late")
	assert.Equal(t, 0, q.Len())
}
