package github

import (
	"regexp"

	"cdpaction/pkg/action"
)

// Hostname GitHub 主域名
const Hostname = "github.com"

const (
	graphQLEndpoint      = "https://github.com/_graphql"
	repositoriesEndpoint = "https://github.com/repositories"
)

var (
	reModifyPull   = regexp.MustCompile(`https://github\.com/.*?/.*?/pull/\d+/comment\?sticky=true`)
	reMergePull    = regexp.MustCompile(`https://github\.com/.*?/.*?/pull/\d+/page_data/merge`)
	reNewPull      = regexp.MustCompile(`https://github\.com/.*?/.*?/pull/(create|new)`)
	reDeleteRepo   = regexp.MustCompile(`https://github\.com/.*?/.*?/settings/delete`)
	reSuggestedRev = regexp.MustCompile(`https://github\.com/.*?/.*?/pull/\d+/suggested-reviewers`)
	reParticipate  = regexp.MustCompile(`https://github\.com/.*?/.*?/graphs/participation`)
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
	action.PRCommented:       "Pull request commented",
	action.PRClosed:          "Pull request closed",
	action.PRMade:            "Pull request made",
	action.PRMerged:          "Pull request merged",
	action.PRReopened:        "Pull request reopened",
	action.RepoCreated:       "Repository created",
	action.RepoDeleted:       "Repository deleted",
	action.RepoStarred:       "Repository starred",
	action.RepoUnstarred:     "Repository unstarred",
	action.RequestedChange:   "Changes requested",
}

// Delays 延迟提示（毫秒）
var Delays = action.Delays{
	action.PRMerged:    3000,
	action.RepoCreated: 3000,
	action.PRMade:      0,
	action.RepoDeleted: 0,
}

// graphQLCandidate GraphQL 变量形状候选
type graphQLCandidate struct {
	action    action.Action
	variables map[string]any
}

// graphQLCandidates 按优先级排列：形状存在嵌套，宽泛形状也能满足更窄的测试，先命中者胜出
var graphQLCandidates = []graphQLCandidate{
	{action.IssueCreated, map[string]any{"input": map[string]any{"title": "", "body": "", "repositoryId": ""}}},
	{action.IssueCommented, map[string]any{"input": map[string]any{"body": "", "subjectId": ""}}},
	{action.IssueClosed, map[string]any{"newStateReason": "COMPLETED"}},
	{action.IssueNotPlanned, map[string]any{"newStateReason": "NOT_PLANNED"}},
	{action.IssueDuplicated, map[string]any{"newStateReason": "DUPLICATE"}},
	{action.CommentEdited, map[string]any{"input": map[string]any{"body": "", "bodyVersion": "", "id": ""}}},
	{action.AssignmentUpdated, map[string]any{"input": map[string]any{"assignableId": ""}}},
	{action.IssueReopened, map[string]any{"id": ""}},
}

// pullFormCandidates 合并请求评论表单候选，同样按优先级
var pullFormCandidates = []struct {
	action action.Action
	form   map[string]any
}{
	{action.PRClosed, map[string]any{"comment_and_close": "1"}},
	{action.PRReopened, map[string]any{"comment_and_open": "1"}},
	{action.PRCommented, map[string]any{"comment[body]": ""}},
}
