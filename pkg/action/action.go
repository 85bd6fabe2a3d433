package action

import (
	"errors"
	"fmt"
)

// Action 语义动作，取值封闭
type Action string

const (
	AssignmentUpdated Action = "assignmentUpdated"
	CodeReviewed      Action = "codeReviewed"
	CommentEdited     Action = "commentEdited"
	IssueClosed       Action = "issueClosed"
	IssueCommented    Action = "issueCommented"
	IssueCreated      Action = "issueCreated"
	IssueDuplicated   Action = "issueDuplicated"
	IssueNotPlanned   Action = "issueNotPlanned"
	IssueReopened     Action = "issueReopened"
	PRCommented       Action = "prCommented"
	PRClosed          Action = "prClosed"
	PRMade            Action = "prMade"
	PRMerged          Action = "prMerged"
	PRReopened        Action = "prReopened"
	RepoCreated       Action = "repoCreated"
	RepoDeleted       Action = "repoDeleted"
	RepoStarred       Action = "repoStarred"
	RepoUnstarred     Action = "repoUnstarred"
	RequestedChange   Action = "requestedChange"
	EmailSent         Action = "emailSent"
	InboxCleared      Action = "inboxCleared"
	TaskDone          Action = "taskDone"
)

// ErrUnknownAction 不在词表中的动作
var ErrUnknownAction = errors.New("unknown action")

var all = []Action{
	AssignmentUpdated, CodeReviewed, CommentEdited,
	IssueClosed, IssueCommented, IssueCreated, IssueDuplicated, IssueNotPlanned, IssueReopened,
	PRCommented, PRClosed, PRMade, PRMerged, PRReopened,
	RepoCreated, RepoDeleted, RepoStarred, RepoUnstarred,
	RequestedChange, EmailSent, InboxCleared, TaskDone,
}

// All 返回完整词表（顺序固定）
func All() []Action {
	out := make([]Action, len(all))
	copy(out, all)
	return out
}

// Valid 判断动作是否属于词表
func (a Action) Valid() bool {
	for _, v := range all {
		if v == a {
			return true
		}
	}
	return false
}

func (a Action) String() string { return string(a) }

// Parse 解析动作标识
func Parse(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Stage 请求生命周期阶段
type Stage string

const (
	StageBefore    Stage = "before"
	StageCompleted Stage = "completed"
)

// Result 检测结果；DelayMS 为空表示由展示层使用默认延迟
type Result struct {
	Action  Action
	DelayMS *int
}

// Detected 创建无延迟提示的结果
func Detected(a Action) *Result {
	return &Result{Action: a}
}

// DetectedAfter 创建带延迟提示的结果
func DetectedAfter(a Action, delayMS int) *Result {
	d := delayMS
	return &Result{Action: a, DelayMS: &d}
}

// Labels 动作到展示文案的映射
type Labels map[Action]string

// For 返回动作文案，缺失时回退为动作标识本身
func (l Labels) For(a Action) string {
	if s, ok := l[a]; ok && s != "" {
		return s
	}
	return string(a)
}

// Delays 动作到延迟提示（毫秒）的映射
type Delays map[Action]int

// Result 按延迟表构造结果，表中缺失则不带延迟
func (d Delays) Result(a Action) *Result {
	if ms, ok := d[a]; ok {
		return DetectedAfter(a, ms)
	}
	return Detected(a)
}
