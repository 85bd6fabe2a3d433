// Package clickup 识别 ClickUp 中的任务完成与清空收件箱。
package clickup

import (
	"context"
	"strings"
	"time"

	"cdpaction/internal/dom"
	"cdpaction/internal/webapp/detector"
	"cdpaction/pkg/action"
)

// Name 检测器标识
const Name = "clickup"

const (
	// viewRetry 不在收件箱视图时的等待间隔
	viewRetry = 2 * time.Second
	// countRetry 初始计数无法确定时的重试间隔
	countRetry = time.Second
)

// Detector ClickUp 检测器
type Detector struct {
	detector.Base
	poller *detector.Poller
}

// New 创建检测器
func New(env detector.Env) *Detector {
	d := &Detector{Base: detector.NewBase(env, detector.Builtin(Name))}
	d.poller = detector.NewPoller(&d.Base)
	d.poller.Sample = d.inboxCount
	d.poller.Guard = d.inInboxView
	d.poller.OnClear = func() { d.Emit(action.InboxCleared) }
	d.poller.OnLeave = func() {
		d.Env.Log.Debug("离开收件箱视图，停止计数", "webapp", Name)
		d.After(viewRetry, d.setupInboxMonitor)
	}
	return d
}

// Name 检测器标识
func (d *Detector) Name() string { return Name }

// Initialize 注册任务状态点击监听并启动收件箱监控
func (d *Detector) Initialize() {
	if err := d.ListenClicks(d.onClick); err != nil {
		d.Env.Log.Err(err, "注册点击监听失败", "webapp", Name)
	}
	d.setupInboxMonitor()
}

// Cleanup 释放全部监听与定时任务
func (d *Detector) Cleanup() {
	d.poller.Stop()
	d.Release()
}

func (d *Detector) onClick(c dom.Click) {
	if dom.MatchPath(c.Path, d.Profile.Markers(action.TaskDone)) {
		d.Emit(action.TaskDone)
	}
}

func (d *Detector) setupInboxMonitor() {
	ctx, cancel := d.Query()
	defer cancel()

	if !d.inInboxView(ctx) {
		d.After(viewRetry, d.setupInboxMonitor)
		return
	}
	baseline := d.inboxCount(ctx)
	if !baseline.Known {
		d.After(countRetry, d.setupInboxMonitor)
		return
	}
	d.poller.Start(baseline)
}

// inInboxView 视图容器存在或地址包含 /inbox
func (d *Detector) inInboxView(ctx context.Context) bool {
	if _, ok := dom.FirstExisting(ctx, d.Env.Doc, d.Profile.Select("inbox_view")); ok {
		return true
	}
	loc, err := d.Env.Doc.Location(ctx)
	return err == nil && strings.Contains(loc, "/inbox")
}

// inboxCount 依次尝试条目计数、空状态与列表子元素数
func (d *Detector) inboxCount(ctx context.Context) dom.Sample {
	doc := d.Env.Doc
	for _, sel := range d.Profile.Select("inbox_item") {
		if n, err := doc.Count(ctx, sel); err == nil && n > 0 {
			return dom.Counted(n)
		}
	}
	if _, ok := dom.FirstExisting(ctx, doc, d.Profile.Select("empty_state")); ok {
		return dom.Counted(0)
	}
	for _, sel := range d.Profile.Select("inbox_items_list") {
		n, found, err := doc.ChildCount(ctx, sel)
		if err == nil && found {
			return dom.Counted(n)
		}
	}
	return dom.Indeterminate
}
