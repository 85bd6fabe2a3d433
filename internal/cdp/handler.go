package cdp

import (
	"context"
	"fmt"
	"time"

	"cdpaction/internal/session"
	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
)

// consume 持续接收拦截事件；同一目标内按到达顺序处理，保证挂起状态的先后关系
func (m *Manager) consume(ts *targetSession, rp fetch.RequestPausedClient) {
	defer rp.Close()
	m.log.Info("开始消费拦截事件流", "target", string(ts.id))
	for {
		ev, err := rp.Recv()
		if err != nil {
			m.handleTargetStreamClosed(ts, err)
			return
		}
		m.handle(ts, ev)
	}
}

// handle 处理一次拦截事件：分类、放行、投递
//
// 请求总会被放行；分类失败只影响检测结果，不影响页面网络。
func (m *Manager) handle(ts *targetSession, ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(ts.ctx, m.opts.ProcessTimeout)
	defer cancel()
	start := time.Now()

	req, stage := ToRequest(ev)
	res, err := Classify(ts.bc, req, stage)
	if err != nil {
		m.log.Err(err, "分类请求失败", "target", string(ts.id), "url", req.URL)
		m.degradeAndContinue(ts, ev, stage, "分类失败")
		return
	}

	m.continuePaused(ctx, ts, ev, stage)

	if res != nil {
		m.log.Info("识别到动作", "target", string(ts.id), "action", string(res.Action), "stage", string(stage), "url", req.URL)
		go m.relay.FromRequest(ts.ctx, ts.id, req.Hostname(), ts.bc.Platforms, res)
	}
	m.log.Debug("拦截事件处理完成", "stage", string(stage), "url", req.URL, "duration", time.Since(start))
}

// Classify 在浏览上下文的分类锁内分类请求；分类器 panic 转为错误
func Classify(bc *session.Context, req *traffic.Request, stage action.Stage) (res *action.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("分类器异常: %v", r)
		}
	}()
	return bc.Detect(req, stage), nil
}

// continuePaused 按阶段放行
func (m *Manager) continuePaused(ctx context.Context, ts *targetSession, ev *fetch.RequestPausedReply, stage action.Stage) {
	var err error
	if stage == action.StageCompleted {
		err = ts.client.Fetch.ContinueResponse(ctx, &fetch.ContinueResponseArgs{RequestID: ev.RequestID})
	} else {
		err = ts.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID})
	}
	if err != nil && ts.ctx.Err() == nil {
		m.log.Err(err, "放行请求失败", "target", string(ts.id), "requestID", string(ev.RequestID))
	}
}

// degradeAndContinue 统一的降级处理：直接放行
func (m *Manager) degradeAndContinue(ts *targetSession, ev *fetch.RequestPausedReply, stage action.Stage, reason string) {
	m.log.Warn("执行降级策略：直接放行", "target", string(ts.id), "reason", reason, "requestID", string(ev.RequestID))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.continuePaused(ctx, ts, ev, stage)
}

// consumeNavigations 跟踪主框架导航并切换 Web 应用检测器
func (m *Manager) consumeNavigations(ts *targetSession, navigated page.FrameNavigatedClient, within page.NavigatedWithinDocumentClient) {
	defer navigated.Close()
	defer within.Close()

	go func() {
		for {
			ev, err := within.Recv()
			if err != nil {
				return
			}
			ts.bc.Post(func() {
				if ev.FrameID != ts.mainFrame {
					return
				}
				ts.bc.Navigate(hostOf(ev.URL), false)
			})
		}
	}()

	for {
		ev, err := navigated.Recv()
		if err != nil {
			return
		}
		if ev.Frame.ParentID != nil {
			continue
		}
		frame, host := ev.Frame.ID, hostOf(ev.Frame.URL)
		ts.bc.Post(func() {
			ts.mainFrame = frame
			ts.bc.Navigate(host, true)
		})
		m.log.Debug("主框架导航", "target", string(ts.id), "host", host)
	}
}

// consumeBindings 把页面上报的点击交给检测器
func (m *Manager) consumeBindings(ts *targetSession, bindings runtime.BindingCalledClient) {
	defer bindings.Close()
	for {
		ev, err := bindings.Recv()
		if err != nil {
			return
		}
		if ev.Name != BindingName {
			continue
		}
		payload := ev.Payload
		ts.bc.Post(func() { ts.doc.Dispatch(payload) })
	}
}
