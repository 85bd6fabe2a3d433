// Package gmail 识别 Gmail 中的发信与清空收件箱。
package gmail

import (
	"context"
	"time"

	"cdpaction/internal/dom"
	"cdpaction/internal/webapp/detector"
	"cdpaction/pkg/action"
)

// Name 检测器标识
const Name = "gmail"

// setupRetry 找不到收件箱链接时的重试间隔
const setupRetry = time.Second

// Detector Gmail 检测器
type Detector struct {
	detector.Base
	poller *detector.Poller
}

// New 创建检测器
func New(env detector.Env) *Detector {
	d := &Detector{Base: detector.NewBase(env, detector.Builtin(Name))}
	d.poller = detector.NewPoller(&d.Base)
	d.poller.Sample = d.inboxCount
	d.poller.OnClear = func() { d.Emit(action.InboxCleared) }
	return d
}

// Name 检测器标识
func (d *Detector) Name() string { return Name }

// Initialize 注册发信点击监听并启动收件箱计数监控
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
	if !c.Dialog {
		return
	}
	if dom.MatchPath(c.Path, d.Profile.Markers(action.EmailSent)) {
		d.Emit(action.EmailSent)
	}
}

func (d *Detector) setupInboxMonitor() {
	ctx, cancel := d.Query()
	defer cancel()

	if _, ok := dom.FirstExisting(ctx, d.Env.Doc, d.Profile.Select("inbox_link")); !ok {
		d.After(setupRetry, d.setupInboxMonitor)
		return
	}
	d.poller.Start(d.inboxCount(ctx))
}

// inboxCount 从收件箱链接的 aria-label 中读取未读数
func (d *Detector) inboxCount(ctx context.Context) dom.Sample {
	sel, ok := dom.FirstExisting(ctx, d.Env.Doc, d.Profile.Select("inbox_link"))
	if !ok {
		return dom.Indeterminate
	}
	label, found, err := d.Env.Doc.Attribute(ctx, sel, "aria-label")
	if err != nil || !found || label == "" {
		return dom.Indeterminate
	}
	return dom.Counted(dom.CountFromLabel(label))
}
