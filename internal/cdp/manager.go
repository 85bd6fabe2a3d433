// Package cdp 通过 Chrome DevTools Protocol 附加到浏览器标签页，
// 拦截请求、跟踪导航并把检测结果投递回页面。
package cdp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cdpaction/internal/logger"
	"cdpaction/internal/platform"
	"cdpaction/internal/relay"
	"cdpaction/internal/session"
	"cdpaction/internal/webapp"
	"cdpaction/pkg/action"
	"cdpaction/pkg/model"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
)

const (
	defaultProcessTimeout = 3 * time.Second
	defaultEvalTimeout    = 2 * time.Second
)

// ErrNotAttached 目标未附加
var ErrNotAttached = errors.New("target not attached")

// Options 管理器配置
type Options struct {
	DevToolsURL    string
	URLPatterns    []string
	ProcessTimeout time.Duration
	PollInterval   time.Duration
	// WebApps 为空时使用默认检测器
	WebApps []webapp.Factory
}

// Manager 多目标 CDP 管理器
type Manager struct {
	opts      Options
	log       logger.Logger
	platforms *platform.Registry
	sessions  *session.Manager
	relay     *relay.Relay

	targetsMu sync.Mutex
	targets   map[model.TargetID]*targetSession
	enabled   atomic.Bool
}

// targetSession 单个目标的连接与浏览上下文
type targetSession struct {
	id     model.TargetID
	ctx    context.Context
	cancel context.CancelFunc
	conn   *rpcc.Conn
	client *cdp.Client
	doc    *Document
	bc     *session.Context

	mainFrame page.FrameID // 仅在 bc.Loop 上访问
}

// New 创建管理器；platforms 为根注册表，每个目标使用其 Fork
func New(opts Options, platforms *platform.Registry, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = defaultProcessTimeout
	}
	if len(opts.URLPatterns) == 0 {
		opts.URLPatterns = []string{"*"}
	}
	m := &Manager{
		opts:      opts,
		log:       l,
		platforms: platforms,
		sessions:  session.NewManager(l),
		targets:   make(map[model.TargetID]*targetSession),
	}
	m.relay = relay.New(m, l, relay.Options{})
	m.enabled.Store(true)
	return m
}

// Relay 消息中继
func (m *Manager) Relay() *relay.Relay { return m.relay }

// Sessions 浏览上下文管理器
func (m *Manager) Sessions() *session.Manager { return m.sessions }

func (m *Manager) isEnabled() bool { return m.enabled.Load() }

// ListTargets 列出浏览器中的页面目标
func (m *Manager) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	targets, err := devtool.New(m.opts.DevToolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取目标列表失败: %w", err)
	}
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()

	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		id := model.TargetID(t.ID)
		_, attached := m.targets[id]
		out = append(out, model.TargetInfo{ID: id, Type: string(t.Type), URL: t.URL, Title: t.Title, Attached: attached})
	}
	return out, nil
}

// AttachAll 附加所有尚未附加的页面目标，返回新附加数量
func (m *Manager) AttachAll(ctx context.Context) (int, error) {
	targets, err := m.ListTargets(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range targets {
		if t.Attached {
			continue
		}
		if err := m.AttachTarget(ctx, t.ID); err != nil {
			m.log.Err(err, "附加目标失败", "target", string(t.ID), "url", t.URL)
			continue
		}
		n++
	}
	return n, nil
}

// AttachTarget 附加到指定目标；id 为空时选择第一个页面
func (m *Manager) AttachTarget(ctx context.Context, id model.TargetID) error {
	targets, err := devtool.New(m.opts.DevToolsURL).List(ctx)
	if err != nil {
		return fmt.Errorf("获取目标列表失败: %w", err)
	}
	var sel *devtool.Target
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if id == "" || model.TargetID(t.ID) == id {
			sel = t
			break
		}
	}
	if sel == nil {
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("连接目标失败: %w", err)
	}
	tctx, cancel := context.WithCancel(context.Background())
	ts := &targetSession{
		id:     model.TargetID(sel.ID),
		ctx:    tctx,
		cancel: cancel,
		conn:   conn,
		client: cdp.NewClient(conn),
	}
	ts.doc = NewDocument(ts.client.Runtime)
	ts.bc = m.sessions.Create(ts.id, session.Options{
		Platforms:    m.platforms,
		Doc:          ts.doc,
		Emit:         m.emitWebApp,
		Log:          m.log,
		Factories:    m.opts.WebApps,
		PollInterval: m.opts.PollInterval,
	})

	if err := m.enable(ctx, ts); err != nil {
		m.closeTargetSession(ts)
		return err
	}

	m.targetsMu.Lock()
	if old, ok := m.targets[ts.id]; ok {
		m.closeTargetSession(old)
	}
	m.targets[ts.id] = ts
	m.targetsMu.Unlock()

	m.log.Info("已附加目标", "target", string(ts.id), "url", sel.URL)
	host := hostOf(sel.URL)
	ts.bc.Post(func() { ts.bc.Navigate(host, true) })
	return nil
}

// enable 开启所需的 CDP 域并启动事件消费
func (m *Manager) enable(ctx context.Context, ts *targetSession) error {
	c := ts.client
	if err := c.Page.Enable(ctx); err != nil {
		return fmt.Errorf("启用 Page 失败: %w", err)
	}
	if err := c.Runtime.Enable(ctx); err != nil {
		return fmt.Errorf("启用 Runtime 失败: %w", err)
	}
	if err := c.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(BindingName)); err != nil {
		return fmt.Errorf("注册点击绑定失败: %w", err)
	}
	if err := InstallClickHook(ctx, c.Page); err != nil {
		return err
	}
	if tree, err := c.Page.GetFrameTree(ctx); err == nil {
		frame := tree.FrameTree.Frame.ID
		ts.bc.Post(func() { ts.mainFrame = frame })
	}

	patterns := make([]fetch.RequestPattern, 0, len(m.opts.URLPatterns)*2)
	for _, p := range m.opts.URLPatterns {
		patterns = append(patterns,
			fetch.RequestPattern{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
			fetch.RequestPattern{URLPattern: &p, RequestStage: fetch.RequestStageResponse},
		)
	}
	if err := c.Fetch.Enable(ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return fmt.Errorf("启用 Fetch 失败: %w", err)
	}

	paused, err := c.Fetch.RequestPaused(ts.ctx)
	if err != nil {
		return fmt.Errorf("订阅拦截事件流失败: %w", err)
	}
	navigated, err := c.Page.FrameNavigated(ts.ctx)
	if err != nil {
		paused.Close()
		return fmt.Errorf("订阅导航事件失败: %w", err)
	}
	within, err := c.Page.NavigatedWithinDocument(ts.ctx)
	if err != nil {
		paused.Close()
		navigated.Close()
		return fmt.Errorf("订阅文档内导航事件失败: %w", err)
	}
	bindings, err := c.Runtime.BindingCalled(ts.ctx)
	if err != nil {
		paused.Close()
		navigated.Close()
		within.Close()
		return fmt.Errorf("订阅绑定事件失败: %w", err)
	}

	go m.consume(ts, paused)
	go m.consumeNavigations(ts, navigated, within)
	go m.consumeBindings(ts, bindings)
	return nil
}

// DetachTarget 分离目标
func (m *Manager) DetachTarget(id model.TargetID) error {
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	ts, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAttached, id)
	}
	m.closeTargetSession(ts)
	delete(m.targets, id)
	return nil
}

// Targets 已附加的目标
func (m *Manager) Targets() []model.TargetID {
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	out := make([]model.TargetID, 0, len(m.targets))
	for id := range m.targets {
		out = append(out, id)
	}
	return out
}

// Close 分离全部目标
func (m *Manager) Close() {
	m.enabled.Store(false)
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	for id, ts := range m.targets {
		m.closeTargetSession(ts)
		delete(m.targets, id)
	}
	m.sessions.Close()
}

// closeTargetSession 关闭单个目标的连接与上下文
func (m *Manager) closeTargetSession(ts *targetSession) {
	ts.cancel()
	if cur, ok := m.sessions.Get(ts.id); ok && cur == ts.bc {
		m.sessions.Delete(ts.id)
	}
	if err := ts.conn.Close(); err != nil {
		m.log.Debug("关闭目标连接", "target", string(ts.id), "error", err)
	}
}

// handleTargetStreamClosed 拦截流终止时移除目标
func (m *Manager) handleTargetStreamClosed(ts *targetSession, err error) {
	if !m.isEnabled() || ts.ctx.Err() != nil {
		return
	}
	m.log.Warn("拦截流被中断，自动移除目标", "target", string(ts.id), "error", err)

	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	if cur, ok := m.targets[ts.id]; ok && cur == ts {
		m.closeTargetSession(cur)
		delete(m.targets, ts.id)
	}
}

// emitWebApp 检测器回调：经共享通道投递
func (m *Manager) emitWebApp(target model.TargetID, hostname string, res *action.Result) {
	bc, ok := m.sessions.Get(target)
	if !ok {
		return
	}
	m.relay.FromWebApp(target, hostname, bc.WebApps, res)
}

// Watch 周期性附加新出现的页面，直到 ctx 结束
func (m *Manager) Watch(ctx context.Context, every time.Duration) {
	go m.relay.Run(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if n, err := m.AttachAll(ctx); err != nil {
			m.log.Err(err, "扫描目标失败")
		} else if n > 0 {
			m.log.Info("附加新目标", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// hostOf 提取主机名，解析失败时为空
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
