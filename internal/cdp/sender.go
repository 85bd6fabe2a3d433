package cdp

import (
	"context"
	"fmt"

	"cdpaction/internal/relay"
	"cdpaction/pkg/model"

	"github.com/mafredri/cdp/protocol/runtime"
)

// EventName 页面内通知事件名，detail 为消息 JSON
const EventName = "cdpaction:action"

// Send 在目标页面派发通知事件，实现 relay.Sender
func (m *Manager) Send(ctx context.Context, target model.TargetID, msg relay.Message) error {
	m.targetsMu.Lock()
	ts, ok := m.targets[target]
	m.targetsMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAttached, target)
	}
	expr, err := DispatchExpr(msg)
	if err != nil {
		return err
	}
	reply, err := ts.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(expr))
	if err != nil {
		return fmt.Errorf("派发通知失败: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return fmt.Errorf("派发通知失败: %s", reply.ExceptionDetails.Text)
	}
	return nil
}

// DispatchExpr 生成派发通知事件的页面脚本
func DispatchExpr(msg relay.Message) (string, error) {
	payload, err := relay.Encode(msg)
	if err != nil {
		return "", fmt.Errorf("编码消息失败: %w", err)
	}
	return fmt.Sprintf(`window.dispatchEvent(new CustomEvent(%s, { detail: %s }))`, jsString(EventName), payload), nil
}

var _ relay.Sender = (*Manager)(nil)
