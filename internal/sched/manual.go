package sched

import (
	"sort"
	"time"
)

// Manual 手动推进的调度器，仅用于测试；非并发安全
type Manual struct {
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	due       time.Duration
	period    time.Duration
	seq       int
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() { t.cancelled = true }

// NewManual 创建手动调度器
func NewManual() *Manual { return &Manual{} }

// Every 周期任务
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	return m.add(d, d, fn)
}

// After 一次性任务
func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.add(d, 0, fn)
}

func (m *Manual) add(delay, period time.Duration, fn func()) *manualTask {
	m.seq++
	t := &manualTask{due: m.now + delay, period: period, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance 推进时间，按到期顺序执行期间内的所有任务
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		t := m.next(target)
		if t == nil {
			break
		}
		m.now = t.due
		if t.period > 0 {
			t.due += t.period
		} else {
			t.cancelled = true
		}
		t.fn()
	}
	m.now = target
	m.compact()
}

// Tick 推进一个周期 d，便于按轮询节拍驱动
func (m *Manual) Tick(d time.Duration, n int) {
	for i := 0; i < n; i++ {
		m.Advance(d)
	}
}

// Pending 返回未取消的任务数
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (m *Manual) next(limit time.Duration) *manualTask {
	var live []*manualTask
	for _, t := range m.tasks {
		if !t.cancelled && t.due <= limit {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due != live[j].due {
			return live[i].due < live[j].due
		}
		return live[i].seq < live[j].seq
	})
	return live[0]
}

func (m *Manual) compact() {
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.cancelled {
			kept = append(kept, t)
		}
	}
	m.tasks = kept
}
