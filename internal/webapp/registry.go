// Package webapp 管理一个浏览上下文内的 Web 应用检测器，保证同一时刻至多一个处于激活状态。
package webapp

import (
	"cdpaction/internal/logger"
	"cdpaction/internal/webapp/clickup"
	"cdpaction/internal/webapp/detector"
	"cdpaction/internal/webapp/gmail"
	"cdpaction/pkg/action"
)

// Factory 以运行环境构造检测器
type Factory func(env detector.Env) detector.Detector

// DefaultFactories 默认注册的检测器，顺序即优先级
var DefaultFactories = []Factory{
	func(env detector.Env) detector.Detector { return gmail.New(env) },
	func(env detector.Env) detector.Detector { return clickup.New(env) },
}

// Registry Web 应用检测器注册表；非并发安全，需在所属上下文的调度循环中调用
type Registry struct {
	detectors []detector.Detector
	active    detector.Detector
	log       logger.Logger
}

// NewRegistry 创建注册表；factories 为空时使用默认检测器
func NewRegistry(env detector.Env, factories ...Factory) *Registry {
	if env.Log == nil {
		env.Log = logger.NewNop()
	}
	if len(factories) == 0 {
		factories = DefaultFactories
	}
	r := &Registry{log: env.Log}
	for _, f := range factories {
		r.detectors = append(r.detectors, f(env))
	}
	return r
}

// Resolve 返回第一个匹配主机名的检测器
func (r *Registry) Resolve(hostname string) detector.Detector {
	for _, d := range r.detectors {
		if d.MatchesHost(hostname) {
			return d
		}
	}
	return nil
}

// ActivateForHost 切换到主机名对应的检测器
//
// 与当前激活者相同时不做任何事；不同则先清理旧检测器再初始化新检测器。
// 没有匹配的检测器时清理当前激活者。返回当前激活的检测器。
func (r *Registry) ActivateForHost(hostname string) detector.Detector {
	next := r.Resolve(hostname)
	if next == r.active {
		return r.active
	}
	r.Cleanup()
	if next == nil {
		return nil
	}
	r.active = next
	r.log.Debug("激活 Web 应用检测器", "webapp", next.Name(), "host", hostname)
	next.Initialize()
	return next
}

// Active 当前激活的检测器
func (r *Registry) Active() detector.Detector { return r.active }

// Cleanup 清理当前激活的检测器
func (r *Registry) Cleanup() {
	if r.active == nil {
		return
	}
	r.log.Debug("清理 Web 应用检测器", "webapp", r.active.Name())
	r.active.Cleanup()
	r.active = nil
}

// LabelFor 返回主机名对应应用下的动作文案
func (r *Registry) LabelFor(hostname string, a action.Action) (string, bool) {
	d := r.Resolve(hostname)
	if d == nil {
		return "", false
	}
	return d.LabelFor(a), true
}
