package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_Every(t *testing.T) {
	m := NewManual()
	var ticks int
	h := m.Every(500*time.Millisecond, func() { ticks++ })

	m.Advance(499 * time.Millisecond)
	assert.Equal(t, 0, ticks)
	m.Advance(time.Millisecond)
	assert.Equal(t, 1, ticks)
	m.Advance(time.Second)
	assert.Equal(t, 3, ticks)

	h.Cancel()
	h.Cancel()
	m.Advance(time.Second)
	assert.Equal(t, 3, ticks)
	assert.Zero(t, m.Pending())
}

func TestManual_AfterFiresOnce(t *testing.T) {
	m := NewManual()
	var order []string
	m.After(2*time.Second, func() { order = append(order, "late") })
	m.After(time.Second, func() { order = append(order, "early") })
	assert.Equal(t, 2, m.Pending())

	m.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Zero(t, m.Pending())
}

func TestManual_TaskScheduledDuringAdvance(t *testing.T) {
	m := NewManual()
	var fired bool
	m.After(time.Second, func() {
		m.After(time.Second, func() { fired = true })
	})

	m.Advance(time.Second)
	assert.False(t, fired)
	m.Advance(time.Second)
	assert.True(t, fired)
}

func TestManual_CancelBeforeDue(t *testing.T) {
	m := NewManual()
	var fired bool
	h := m.After(time.Second, func() { fired = true })
	h.Cancel()
	m.Advance(time.Minute)
	assert.False(t, fired)
}

func TestLoop_PostAndDo(t *testing.T) {
	l := NewLoop(4)
	defer l.Close()

	var n atomic.Int32
	require.True(t, l.Post(func() { n.Add(1) }))
	require.True(t, l.Do(func() { n.Add(1) }))
	assert.Equal(t, int32(2), n.Load())
}

func TestLoop_EveryAndCancel(t *testing.T) {
	l := NewLoop(4)
	defer l.Close()

	var n atomic.Int32
	h := l.Every(5*time.Millisecond, func() { n.Add(1) })
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, time.Millisecond)

	h.Cancel()
	l.Do(func() {})
	stopped := n.Load()
	time.Sleep(30 * time.Millisecond)
	l.Do(func() {})
	assert.Equal(t, stopped, n.Load())
}

func TestLoop_After(t *testing.T) {
	l := NewLoop(4)
	defer l.Close()

	fired := make(chan struct{})
	l.After(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("After callback did not run")
	}
}

func TestLoop_Closed(t *testing.T) {
	l := NewLoop(1)
	l.Close()
	l.Close()
	assert.False(t, l.Post(func() {}))
	assert.False(t, l.Do(func() {}))
}
