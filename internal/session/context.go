package session

import (
	"sync"
	"time"

	"cdpaction/internal/dom"
	"cdpaction/internal/logger"
	"cdpaction/internal/platform"
	"cdpaction/internal/sched"
	"cdpaction/internal/webapp"
	"cdpaction/internal/webapp/detector"
	"cdpaction/pkg/action"
	"cdpaction/pkg/model"
	"cdpaction/pkg/traffic"

	"github.com/google/uuid"
)

// EmitFunc 检测器结果回调，附带结果产生时页面的主机名
type EmitFunc func(target model.TargetID, hostname string, res *action.Result)

// Context 一个浏览上下文（标签页）
//
// 平台分类经 Detect 在分类锁内串行执行，不经过 Loop，
// 检测器的 DOM 查询不会拖慢请求放行。WebApps 与 host 只能在 Loop 上访问。
type Context struct {
	ID     string
	Target model.TargetID

	Platforms *platform.Registry
	WebApps   *webapp.Registry
	Loop      *sched.Loop

	classifyMu sync.Mutex
	host       string
}

// Options 创建上下文所需的依赖
type Options struct {
	Platforms *platform.Registry // 根注册表，上下文使用其 Fork
	Doc       dom.Document
	Emit      EmitFunc
	Log       logger.Logger
	Factories []webapp.Factory
	Backlog   int
	// PollInterval Web 应用计数轮询周期
	PollInterval time.Duration
}

func newContext(target model.TargetID, opts Options) *Context {
	l := opts.Log
	if l == nil {
		l = logger.NewNop()
	}
	c := &Context{
		ID:        uuid.NewString(),
		Target:    target,
		Platforms: opts.Platforms.Fork(),
		Loop:      sched.NewLoop(opts.Backlog),
	}
	c.WebApps = webapp.NewRegistry(detector.Env{
		Doc:          opts.Doc,
		Sched:        c.Loop,
		Log:          l.With("target", string(target)),
		PollInterval: opts.PollInterval,
		Emit: func(res *action.Result) {
			if opts.Emit != nil {
				opts.Emit(target, c.host, res)
			}
		},
	}, opts.Factories...)
	return c
}

// Navigate 主框架导航后调用：记录主机名并切换检测器；newDocument 表示文档已重建
func (c *Context) Navigate(hostname string, newDocument bool) {
	c.host = hostname
	if newDocument {
		// 旧文档中的监听已随页面销毁
		c.WebApps.Cleanup()
	}
	c.WebApps.ActivateForHost(hostname)
}

// Detect 串行分类一次请求
func (c *Context) Detect(req *traffic.Request, stage action.Stage) *action.Result {
	c.classifyMu.Lock()
	defer c.classifyMu.Unlock()
	return c.Platforms.Detect(req, stage)
}

// Host 当前主框架主机名
func (c *Context) Host() string { return c.host }

// Post 投递到上下文循环
func (c *Context) Post(fn func()) bool { return c.Loop.Post(fn) }

func (c *Context) close() {
	c.Loop.Do(c.WebApps.Cleanup)
	c.Loop.Close()
}
