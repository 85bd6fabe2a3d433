// Package sched 提供可取消的定时任务抽象。
//
// Loop 在单个 goroutine 上串行执行所有回调，对应一个浏览上下文的单线程模型；
// Manual 由测试手动推进时间，使轮询可确定地模拟。
package sched

import (
	"sync"
	"time"
)

// Handle 已调度任务的取消句柄，Cancel 可重复调用
type Handle interface {
	Cancel()
}

// Scheduler 定时任务调度器
type Scheduler interface {
	// Every 按固定周期执行 fn
	Every(d time.Duration, fn func()) Handle
	// After 延迟 d 后执行一次 fn
	After(d time.Duration, fn func()) Handle
}

// Loop 串行事件循环
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// NewLoop 创建并启动事件循环；backlog 为待执行任务缓冲
func NewLoop(backlog int) *Loop {
	if backlog <= 0 {
		backlog = 64
	}
	l := &Loop{
		tasks:  make(chan func(), backlog),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.closed)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			return
		}
	}
}

// Post 将 fn 投递到循环执行；循环关闭后返回 false
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do 投递 fn 并等待执行完成；循环关闭后返回 false
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.closed:
		return false
	}
}

// Close 停止循环，不再执行新任务
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	<-l.closed
}

type loopTask struct {
	stop chan struct{}
	once sync.Once
}

func (t *loopTask) Cancel() { t.once.Do(func() { close(t.stop) }) }

// Every 周期任务；回调在循环 goroutine 上执行
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	t := &loopTask{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(func() {
					if !t.cancelled() {
						fn()
					}
				})
			case <-t.stop:
				return
			case <-l.done:
				return
			}
		}
	}()
	return t
}

// After 一次性延迟任务；回调在循环 goroutine 上执行
func (l *Loop) After(d time.Duration, fn func()) Handle {
	t := &loopTask{stop: make(chan struct{})}
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			l.Post(func() {
				if !t.cancelled() {
					fn()
				}
			})
		case <-t.stop:
		case <-l.done:
		}
	}()
	return t
}

func (t *loopTask) cancelled() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
