// Package relay 把检测结果转换为带地址的通知消息并投递到对应页面。
//
// 投递是即发即弃的：不确认、不重试，也不保证消息之间的顺序。
package relay

import (
	"context"
	"time"

	"cdpaction/internal/logger"
	"cdpaction/pkg/action"
	"cdpaction/pkg/model"

	"github.com/tidwall/sjson"
)

// TypeWebApp Web 应用检测器产生的消息类型
const TypeWebApp = "webapp_action"

// DefaultBacklog 共享通道缓冲
const DefaultBacklog = 64

// DefaultSendTimeout 单条消息投递超时
const DefaultSendTimeout = 3 * time.Second

// Message 投递给展示层的通知
type Message struct {
	Action   action.Action
	DelayMS  *int
	Hostname string
	Label    string
	Type     string
}

// Encode 生成消息 JSON；delay、label、type 缺省时省略
func Encode(m Message) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			out, err = sjson.SetBytes(out, path, v)
		}
	}
	set("action", string(m.Action))
	if m.DelayMS != nil {
		set("delay", *m.DelayMS)
	}
	set("hostname", m.Hostname)
	if m.Label != "" {
		set("label", m.Label)
	}
	if m.Type != "" {
		set("type", m.Type)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sender 把消息投递到指定目标
type Sender interface {
	Send(ctx context.Context, target model.TargetID, msg Message) error
}

// Labeler 按主机名解析动作文案
type Labeler interface {
	LabelFor(hostname string, a action.Action) (string, bool)
}

// Options 中继配置
type Options struct {
	Backlog     int
	SendTimeout time.Duration
}

type envelope struct {
	target model.TargetID
	msg    Message
}

// Relay 消息中继
//
// 站点分类器的结果直接投递到发起请求的目标；Web 应用检测器的结果经共享通道
// 由 Run 统一投递，使展示层只有一个入口。
type Relay struct {
	sender  Sender
	queue   chan envelope
	timeout time.Duration
	log     logger.Logger
}

// New 创建中继
func New(sender Sender, l logger.Logger, opts Options) *Relay {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.Backlog <= 0 {
		opts.Backlog = DefaultBacklog
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	return &Relay{
		sender:  sender,
		queue:   make(chan envelope, opts.Backlog),
		timeout: opts.SendTimeout,
		log:     l,
	}
}

// Compose 组装消息，文案通过 labels 解析
func Compose(hostname string, labels Labeler, res *action.Result) Message {
	msg := Message{Action: res.Action, DelayMS: res.DelayMS, Hostname: hostname}
	if labels != nil {
		if label, ok := labels.LabelFor(hostname, res.Action); ok {
			msg.Label = label
		}
	}
	return msg
}

// FromRequest 投递站点分类器的结果到发起请求的目标
func (r *Relay) FromRequest(ctx context.Context, target model.TargetID, hostname string, labels Labeler, res *action.Result) {
	if res == nil || target == "" {
		return
	}
	r.deliver(ctx, envelope{target: target, msg: Compose(hostname, labels, res)})
}

// FromWebApp 将 Web 应用检测器的结果放入共享通道；通道满时丢弃并返回 false
func (r *Relay) FromWebApp(target model.TargetID, hostname string, labels Labeler, res *action.Result) bool {
	if res == nil || target == "" {
		return false
	}
	msg := Compose(hostname, labels, res)
	msg.Type = TypeWebApp
	select {
	case r.queue <- envelope{target: target, msg: msg}:
		return true
	default:
		r.log.Warn("共享消息通道已满，丢弃消息", "target", string(target), "action", string(res.Action))
		return false
	}
}

// Run 持续投递共享通道中的消息，直到 ctx 结束
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case env := <-r.queue:
			r.deliver(ctx, env)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) deliver(ctx context.Context, env envelope) {
	if r.sender == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.sender.Send(sctx, env.target, env.msg); err != nil {
		r.log.Err(err, "投递消息失败", "target", string(env.target), "action", string(env.msg.Action))
		return
	}
	r.log.Info("已投递动作消息", "target", string(env.target), "action", string(env.msg.Action), "host", env.msg.Hostname)
}
