// Package detector 定义 Web 应用 DOM 检测器的能力接口与共用的生命周期工具。
//
// 检测器在没有可用请求信号的站点上，通过点击拦截与定时轮询推断动作。
// 所有回调都在所属浏览上下文的调度器上串行执行。
package detector

import (
	"context"
	"time"

	"cdpaction/internal/dom"
	"cdpaction/internal/logger"
	"cdpaction/internal/sched"
	"cdpaction/pkg/action"
)

// PollInterval 计数轮询周期
const PollInterval = 500 * time.Millisecond

// DefaultQueryTimeout 单次 DOM 查询超时
const DefaultQueryTimeout = 2 * time.Second

// Detector Web 应用检测器
type Detector interface {
	Name() string
	DisplayName() string
	MatchesHost(hostname string) bool
	// Initialize 每次激活调用一次；实例可在 Cleanup 之后重新从零布防
	Initialize()
	// Cleanup 移除创建的全部监听并取消全部定时任务
	Cleanup()
	LabelFor(a action.Action) string
}

// Env 检测器运行环境
type Env struct {
	Doc          dom.Document
	Sched        sched.Scheduler
	Emit         func(*action.Result)
	Log          logger.Logger
	QueryTimeout time.Duration
	// PollInterval 计数轮询周期，为 0 时使用 PollInterval 常量
	PollInterval time.Duration
}

// Base 检测器公共部分：跟踪定时任务与点击监听，统一释放
type Base struct {
	Env     Env
	Profile Profile

	tasks       map[int]sched.Handle
	nextID      int
	removeClick func()
}

// NewBase 创建公共部分
func NewBase(env Env, profile Profile) Base {
	if env.Log == nil {
		env.Log = logger.NewNop()
	}
	if env.QueryTimeout <= 0 {
		env.QueryTimeout = DefaultQueryTimeout
	}
	if env.PollInterval <= 0 {
		env.PollInterval = PollInterval
	}
	return Base{Env: env, Profile: profile, tasks: make(map[int]sched.Handle)}
}

// MatchesHost 判断主机名
func (b *Base) MatchesHost(hostname string) bool { return b.Profile.MatchesHost(hostname) }

// DisplayName 展示名称
func (b *Base) DisplayName() string { return b.Profile.DisplayName }

// LabelFor 动作文案
func (b *Base) LabelFor(a action.Action) string { return b.Profile.LabelFor(a) }

// Emit 上报动作
func (b *Base) Emit(a action.Action) {
	if b.Env.Emit == nil {
		return
	}
	b.Env.Emit(b.Profile.Result(a))
}

// Query 创建单次查询上下文
func (b *Base) Query() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.Env.QueryTimeout)
}

// After 延迟执行一次，执行后自动从跟踪列表移除
func (b *Base) After(d time.Duration, fn func()) {
	id := b.track()
	b.tasks[id] = b.Env.Sched.After(d, func() {
		delete(b.tasks, id)
		fn()
	})
}

// Every 周期执行，返回的句柄同样会在 Release 时取消
func (b *Base) Every(d time.Duration, fn func()) sched.Handle {
	id := b.track()
	h := b.Env.Sched.Every(d, fn)
	b.tasks[id] = h
	return untrack{h: h, drop: func() { delete(b.tasks, id) }}
}

func (b *Base) track() int {
	if b.tasks == nil {
		b.tasks = make(map[int]sched.Handle)
	}
	b.nextID++
	return b.nextID
}

type untrack struct {
	h    sched.Handle
	drop func()
}

func (u untrack) Cancel() {
	u.h.Cancel()
	u.drop()
}

// ListenClicks 注册文档点击监听；重复注册会先移除旧监听
func (b *Base) ListenClicks(fn func(dom.Click)) error {
	b.stopClicks()
	remove, err := b.Env.Doc.OnClick(fn)
	if err != nil {
		return err
	}
	b.removeClick = remove
	return nil
}

func (b *Base) stopClicks() {
	if b.removeClick != nil {
		b.removeClick()
		b.removeClick = nil
	}
}

// Release 取消全部定时任务并移除点击监听
func (b *Base) Release() {
	for id, h := range b.tasks {
		h.Cancel()
		delete(b.tasks, id)
	}
	b.stopClicks()
}

// Active 是否仍有未释放的任务或监听
func (b *Base) Active() bool {
	return len(b.tasks) > 0 || b.removeClick != nil
}
