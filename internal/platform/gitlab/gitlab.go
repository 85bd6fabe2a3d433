package gitlab

import (
	"net/http"
	"regexp"

	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"

	"github.com/tidwall/gjson"
)

// Hostname GitLab 主域名
const Hostname = "gitlab.com"

const graphQLPath = "/api/graphql"

var (
	reCreateMR = regexp.MustCompile(`/-/merge_requests$`)
	reMergeMR  = regexp.MustCompile(`/-/merge_requests/\d+/merge$`)
	reUpdateMR = regexp.MustCompile(`/-/merge_requests/\d+`)
)

// Labels 动作文案
var Labels = action.Labels{
	action.AssignmentUpdated: "Assignment updated",
	action.CodeReviewed:      "Code reviewed",
	action.CommentEdited:     "Comment edited",
	action.IssueClosed:       "Issue closed",
	action.IssueCommented:    "Issue commented",
	action.IssueCreated:      "Issue created",
	action.IssueDuplicated:   "Issue duplicated",
	action.IssueNotPlanned:   "Issue not planned",
	action.IssueReopened:     "Issue reopened",
	action.PRCommented:       "Merge request commented",
	action.PRClosed:          "Merge request closed",
	action.PRMade:            "Merge request made",
	action.PRMerged:          "Merge request merged",
	action.PRReopened:        "Merge request reopened",
	action.RepoCreated:       "Project created",
	action.RepoDeleted:       "Project deleted",
	action.RepoStarred:       "Project starred",
	action.RepoUnstarred:     "Project unstarred",
	action.RequestedChange:   "Changes requested",
}

// Delays 延迟提示（毫秒）
var Delays = action.Delays{
	action.PRMerged:    3000,
	action.RepoCreated: 3000,
	action.PRMade:      0,
	action.RepoDeleted: 0,
}

// stateEventParam 合并请求状态变更参数
const stateEventParam = "merge_request[state_event]"

// Aliases 别名域名查询
type Aliases interface {
	Contains(hostname string) bool
}

// Platform GitLab 请求分类器，无跨请求状态
type Platform struct {
	aliases Aliases
}

// New 创建分类器；aliases 可为 nil
func New(aliases Aliases) *Platform {
	return &Platform{aliases: aliases}
}

func (p *Platform) Name() string { return "gitlab" }
func (p *Platform) DisplayName() string { return "GitLab" }

// MatchesHost 匹配主域名或已登记的自建域名
func (p *Platform) MatchesHost(hostname string) bool {
	if hostname == Hostname {
		return true
	}
	return p.aliases != nil && p.aliases.Contains(hostname)
}

// LabelFor 返回动作文案
func (p *Platform) LabelFor(a action.Action) string {
	return Labels.For(a)
}

// Detect 仅在请求发出前分类
//
// 完成阶段不做检测：通过重定向到合并请求页面来识别创建会把普通浏览误判为创建，
// 因此有意不实现。
func (p *Platform) Detect(req *traffic.Request, stage action.Stage) *action.Result {
	if req == nil || stage != action.StageBefore {
		return nil
	}
	path := req.Path()

	switch req.Method {
	case http.MethodPost:
		switch {
		case path == graphQLPath:
			return p.detectGraphQL(req)
		case reCreateMR.MatchString(path):
			return Delays.Result(action.PRMade)
		case reMergeMR.MatchString(path):
			return Delays.Result(action.PRMerged)
		}
	case http.MethodPut:
		if reUpdateMR.MatchString(path) {
			switch req.Query().Get(stateEventParam) {
			case "close":
				return action.Detected(action.PRClosed)
			case "reopen":
				return action.Detected(action.PRReopened)
			}
		}
	}
	return nil
}

// detectGraphQL 只识别白名单内的三个操作
func (p *Platform) detectGraphQL(req *traffic.Request) *action.Result {
	if len(req.Body) == 0 || !gjson.ValidBytes(req.Body) {
		return nil
	}
	body := gjson.ParseBytes(req.Body)
	if !body.IsObject() {
		return nil
	}

	switch body.Get("operationName").String() {
	case "createWorkItem":
		return action.Detected(action.IssueCreated)
	case "createWorkItemNote":
		return action.Detected(action.IssueCommented)
	case "workItemUpdate":
		switch body.Get("variables.input.stateEvent").String() {
		case "CLOSE":
			return action.Detected(action.IssueClosed)
		case "REOPEN":
			return action.Detected(action.IssueReopened)
		}
	}
	return nil
}
