package detector

import (
	"context"
	"time"

	"cdpaction/internal/dom"
	"cdpaction/internal/sched"
)

// Poller 计数轮询：按固定周期采样，在高到零的边沿回调 OnClear
type Poller struct {
	Interval time.Duration
	// Sample 采样函数，找不到元素时返回 dom.Indeterminate
	Sample func(ctx context.Context) dom.Sample
	// Guard 每次采样前的前置条件；返回 false 时停止轮询并回调 OnLeave
	Guard   func(ctx context.Context) bool
	OnClear func()
	OnLeave func()

	base   *Base
	handle sched.Handle
	edge   dom.EdgeTrigger
}

// NewPoller 创建挂在 Base 上的轮询器
func NewPoller(base *Base) *Poller {
	return &Poller{Interval: base.Env.PollInterval, base: base}
}

// Start 以 baseline 为初始基线开始轮询；已在运行时先停止
func (p *Poller) Start(baseline dom.Sample) {
	p.Stop()
	p.edge.Reset()
	p.edge.Observe(baseline)
	p.handle = p.base.Every(p.Interval, p.tick)
}

// Stop 停止轮询
func (p *Poller) Stop() {
	if p.handle != nil {
		p.handle.Cancel()
		p.handle = nil
	}
}

// Running 是否正在轮询
func (p *Poller) Running() bool { return p.handle != nil }

// Baseline 当前基线
func (p *Poller) Baseline() dom.Sample { return p.edge.Baseline() }

func (p *Poller) tick() {
	ctx, cancel := p.base.Query()
	defer cancel()

	if p.Guard != nil && !p.Guard(ctx) {
		p.Stop()
		if p.OnLeave != nil {
			p.OnLeave()
		}
		return
	}
	if p.edge.Observe(p.Sample(ctx)) && p.OnClear != nil {
		p.OnClear()
	}
}
