package platform

import (
	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"
)

// Classifier 单个站点的请求分类器
type Classifier interface {
	// Name 内部标识
	Name() string
	// DisplayName 展示名称
	DisplayName() string
	// MatchesHost 判断主机名是否归属该站点
	MatchesHost(hostname string) bool
	// Detect 在指定阶段对一次请求分类，未命中返回 nil
	Detect(req *traffic.Request, stage action.Stage) *action.Result
	// LabelFor 返回该站点下动作的展示文案
	LabelFor(a action.Action) string
}

// Factory 构造分类器实例；每个浏览上下文持有独立实例
type Factory func(domains *Domains) Classifier
