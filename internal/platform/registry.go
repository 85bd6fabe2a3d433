package platform

import (
	"context"

	"cdpaction/internal/logger"
	"cdpaction/internal/platform/github"
	"cdpaction/internal/platform/gitlab"
	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"
)

// Settings 别名域名的外部设置来源
type Settings interface {
	CustomDomains(ctx context.Context) ([]string, error)
}

// DefaultFactories 默认注册的分类器，顺序即优先级
var DefaultFactories = []Factory{
	func(*Domains) Classifier { return github.New() },
	func(d *Domains) Classifier { return gitlab.New(d) },
}

// Registry 站点分类器注册表
//
// 注册顺序即匹配优先级，先命中者胜出。Detect 不做任何 I/O，
// 别名列表只在 RefreshAliases 中刷新。
type Registry struct {
	factories   []Factory
	classifiers []Classifier
	domains     *Domains
	settings    Settings
	log         logger.Logger
}

// NewRegistry 创建注册表；factories 为空时使用默认分类器
func NewRegistry(settings Settings, l logger.Logger, factories ...Factory) *Registry {
	if l == nil {
		l = logger.NewNop()
	}
	if len(factories) == 0 {
		factories = DefaultFactories
	}
	return newRegistry(factories, NewDomains(), settings, l)
}

func newRegistry(factories []Factory, domains *Domains, settings Settings, l logger.Logger) *Registry {
	r := &Registry{
		factories: factories,
		domains:   domains,
		settings:  settings,
		log:       l,
	}
	for _, f := range factories {
		r.classifiers = append(r.classifiers, f(domains))
	}
	return r
}

// Fork 创建一份共享别名列表、但分类器实例独立的注册表
//
// 每个浏览上下文持有自己的分类器实例，挂起状态互不污染。
func (r *Registry) Fork() *Registry {
	return newRegistry(r.factories, r.domains, r.settings, r.log)
}

// Domains 返回别名列表
func (r *Registry) Domains() *Domains { return r.domains }

// Classifiers 返回已注册的分类器（按优先级）
func (r *Registry) Classifiers() []Classifier {
	out := make([]Classifier, len(r.classifiers))
	copy(out, r.classifiers)
	return out
}

// Resolve 返回第一个匹配主机名的分类器
func (r *Registry) Resolve(hostname string) Classifier {
	for _, c := range r.classifiers {
		if c.MatchesHost(hostname) {
			return c
		}
	}
	return nil
}

// Detect 按请求主机名路由到分类器
func (r *Registry) Detect(req *traffic.Request, stage action.Stage) *action.Result {
	if req == nil {
		return nil
	}
	c := r.Resolve(req.Hostname())
	if c == nil {
		return nil
	}
	res := c.Detect(req, stage)
	if res != nil && !res.Action.Valid() {
		r.log.Warn("分类器返回了词表外的动作", "platform", c.Name(), "action", string(res.Action))
		return nil
	}
	return res
}

// LabelFor 返回主机名对应站点下的动作文案
func (r *Registry) LabelFor(hostname string, a action.Action) (string, bool) {
	c := r.Resolve(hostname)
	if c == nil {
		return "", false
	}
	return c.LabelFor(a), true
}

// RefreshAliases 从设置重新读取别名列表；读取失败时退化为空列表
func (r *Registry) RefreshAliases(ctx context.Context) {
	if r.settings == nil {
		r.domains.Set(nil)
		return
	}
	hosts, err := r.settings.CustomDomains(ctx)
	if err != nil {
		r.log.Err(err, "读取自建域名失败，使用空列表")
		hosts = nil
	}
	r.domains.Set(hosts)
	r.log.Info("自建域名已刷新", "count", len(r.domains.List()))
}
