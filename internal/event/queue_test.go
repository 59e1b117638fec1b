package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corium/internal/ids"
)

func mkEvent(id ids.EventID, priority uint32) Event {
	return Base{EventID: id, EventPriority: priority, TypeTag: TypeQuit}
}

func TestQueueDrainsLowestPriorityNumberFirst(t *testing.T) {
	q := newQueue()
	q.push(mkEvent(1, 100), nil)
	q.push(mkEvent(2, 10), nil)
	q.push(mkEvent(3, 50), nil)

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, ids.EventID(2), first.ID())

	second, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, ids.EventID(3), second.ID())

	third, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, ids.EventID(1), third.ID())
}

func TestQueueTiesBreakFIFO(t *testing.T) {
	q := newQueue()
	q.push(mkEvent(1, 10), nil)
	q.push(mkEvent(2, 10), nil)
	q.push(mkEvent(3, 10), nil)

	for _, want := range []ids.EventID{1, 2, 3} {
		got, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, want, got.ID())
	}
}

func TestQueuePriorityOverride(t *testing.T) {
	q := newQueue()
	override := uint32(1)
	q.push(mkEvent(1, 100), nil)
	q.push(mkEvent(2, 100), &override)

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, ids.EventID(2), first.ID())
}

func TestQueueEmptyPopReportsFalse(t *testing.T) {
	q := newQueue()
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestQueueLen(t *testing.T) {
	q := newQueue()
	assert.Equal(t, 0, q.len())
	q.push(mkEvent(1, 1), nil)
	assert.Equal(t, 1, q.len())
	q.pop()
	assert.Equal(t, 0, q.len())
}
