package github

import (
	"net/http"
	"regexp"

	"cdpaction/internal/decode"
	"cdpaction/internal/shape"
	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"
)

// Platform GitHub 请求分类器
type Platform struct {
	state State
}

// New 创建分类器
func New() *Platform { return &Platform{} }

func (p *Platform) Name() string { return "github" }
func (p *Platform) DisplayName() string { return "GitHub" }

// MatchesHost 仅匹配主域名
func (p *Platform) MatchesHost(hostname string) bool {
	return hostname == Hostname
}

// LabelFor 返回动作文案
func (p *Platform) LabelFor(a action.Action) string {
	return Labels.For(a)
}

// State 返回当前挂起状态
func (p *Platform) State() State { return p.state }

// Detect 按阶段分派
func (p *Platform) Detect(req *traffic.Request, stage action.Stage) *action.Result {
	if req == nil {
		return nil
	}
	switch stage {
	case action.StageBefore:
		return p.detectBefore(req)
	case action.StageCompleted:
		return p.detectCompleted(req)
	default:
		return nil
	}
}

// detectBefore 请求发出前：GraphQL、评论表单、合并，以及两个流程的发起请求
func (p *Platform) detectBefore(req *traffic.Request) *action.Result {
	switch {
	case matchExact(req, graphQLEndpoint, http.MethodPost):
		return p.detectGraphQL(req)
	case matchPattern(req, reModifyPull, http.MethodPost):
		return p.detectModifyPull(req)
	case matchPattern(req, reMergePull, http.MethodPost):
		return p.detectMergePull(req)
	case matchPattern(req, reNewPull, http.MethodPost):
		p.state.arm(AwaitCreate)
		return nil
	case matchPattern(req, reDeleteRepo, http.MethodPost):
		p.state.arm(AwaitDelete)
		return nil
	}
	return nil
}

// detectCompleted 响应完成后：新建仓库，以及消费挂起的确认请求
func (p *Platform) detectCompleted(req *traffic.Request) *action.Result {
	if matchExact(req, repositoriesEndpoint, http.MethodPost) {
		return Delays.Result(action.RepoCreated)
	}

	if p.state.Awaiting(AwaitCreate) && matchPattern(req, reSuggestedRev, http.MethodGet) {
		p.state.consume(AwaitCreate)
		return Delays.Result(action.PRMade)
	}

	if p.state.Awaiting(AwaitDelete) && matchPattern(req, reParticipate, http.MethodGet) {
		p.state.consume(AwaitDelete)
		return Delays.Result(action.RepoDeleted)
	}

	return nil
}

func (p *Platform) detectGraphQL(req *traffic.Request) *action.Result {
	body, ok := decode.Object(decode.Body(req))
	if !ok {
		return nil
	}
	for _, c := range graphQLCandidates {
		if shape.Match(map[string]any{"variables": c.variables}, body) {
			return action.Detected(c.action)
		}
	}
	return nil
}

func (p *Platform) detectModifyPull(req *traffic.Request) *action.Result {
	form := decode.Form(req.Form)
	if form == nil {
		return nil
	}
	for _, c := range pullFormCandidates {
		if shape.Match(c.form, form) {
			return action.Detected(c.action)
		}
	}
	return nil
}

func (p *Platform) detectMergePull(req *traffic.Request) *action.Result {
	body, ok := decode.Object(decode.Body(req))
	if !ok {
		return nil
	}
	if shape.Match(map[string]any{"mergeMethod": "MERGE"}, body) {
		return Delays.Result(action.PRMerged)
	}
	return nil
}

func matchExact(req *traffic.Request, url, method string) bool {
	return req.Method == method && req.URL == url
}

func matchPattern(req *traffic.Request, re *regexp.Regexp, method string) bool {
	return req.Method == method && re.MatchString(req.URL)
}
