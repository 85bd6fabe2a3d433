package gitlab

import (
	"testing"

	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aliasSet map[string]bool

func (a aliasSet) Contains(h string) bool { return a[h] }

func request(method, url, body string) *traffic.Request {
	req := traffic.NewRequest(method, url)
	if body != "" {
		req.Body = []byte(body)
	}
	return req
}

func TestDetect(t *testing.T) {
	tests := map[string]struct {
		req       *traffic.Request
		want      action.Action
		wantDelay *int
	}{
		"create work item": {
			req:  request("POST", "https://gitlab.com/api/graphql", `{"operationName":"createWorkItem","variables":{"input":{"title":"x"}}}`),
			want: action.IssueCreated,
		},
		"comment on work item": {
			req:  request("POST", "https://gitlab.com/api/graphql", `{"operationName":"createWorkItemNote","variables":{"input":{"body":"hi"}}}`),
			want: action.IssueCommented,
		},
		"close work item": {
			req:  request("POST", "https://gitlab.com/api/graphql", `{"operationName":"workItemUpdate","variables":{"input":{"id":"gid://1","stateEvent":"CLOSE"}}}`),
			want: action.IssueClosed,
		},
		"reopen work item": {
			req:  request("POST", "https://gitlab.com/api/graphql", `{"operationName":"workItemUpdate","variables":{"input":{"id":"gid://1","stateEvent":"REOPEN"}}}`),
			want: action.IssueReopened,
		},
		"create merge request": {
			req:       request("POST", "https://gitlab.com/group/project/-/merge_requests", ""),
			want:      action.PRMade,
			wantDelay: intPtr(0),
		},
		"merge merge request": {
			req:       request("POST", "https://gitlab.com/group/project/-/merge_requests/40/merge", ""),
			want:      action.PRMerged,
			wantDelay: intPtr(3000),
		},
		"close merge request": {
			req:  request("PUT", "https://gitlab.com/group/project/-/merge_requests/40?merge_request%5Bstate_event%5D=close", ""),
			want: action.PRClosed,
		},
		"close merge request json endpoint": {
			req:  request("PUT", "https://gitlab.com/group/project/-/merge_requests/12.json?merge_request%5Bstate_event%5D=close", ""),
			want: action.PRClosed,
		},
		"reopen merge request": {
			req:  request("PUT", "https://gitlab.com/group/project/-/merge_requests/40?merge_request%5Bstate_event%5D=reopen", ""),
			want: action.PRReopened,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := New(nil).Detect(tt.req, action.StageBefore)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Action)
			assert.Equal(t, tt.wantDelay, got.DelayMS)
		})
	}
}

func TestDetect_Misses(t *testing.T) {
	p := New(nil)
	misses := map[string]*traffic.Request{
		"unknown operation":      request("POST", "https://gitlab.com/api/graphql", `{"operationName":"getProject"}`),
		"update without state":   request("POST", "https://gitlab.com/api/graphql", `{"operationName":"workItemUpdate","variables":{"input":{"title":"t"}}}`),
		"update unknown state":   request("POST", "https://gitlab.com/api/graphql", `{"operationName":"workItemUpdate","variables":{"input":{"stateEvent":"LOCK"}}}`),
		"lowercase state event":  request("POST", "https://gitlab.com/api/graphql", `{"operationName":"workItemUpdate","variables":{"input":{"stateEvent":"close"}}}`),
		"invalid json":           request("POST", "https://gitlab.com/api/graphql", `{`),
		"empty graphql":          request("POST", "https://gitlab.com/api/graphql", ""),
		"view merge request":     request("GET", "https://gitlab.com/group/project/-/merge_requests/40", ""),
		"put without state":      request("PUT", "https://gitlab.com/group/project/-/merge_requests/40?merge_request%5Btitle%5D=x", ""),
		"new merge request form": request("POST", "https://gitlab.com/group/project/-/merge_requests/new", ""),
		"merge sub resource":     request("POST", "https://gitlab.com/group/project/-/merge_requests/40/merge/extra", ""),
	}
	for name, req := range misses {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, p.Detect(req, action.StageBefore))
		})
	}
}

func TestCompletedStageIsSilent(t *testing.T) {
	// 重定向到合并请求页面的创建识别有意不实现
	p := New(nil)
	assert.Nil(t, p.Detect(request("GET", "https://gitlab.com/group/project/-/merge_requests/41", ""), action.StageCompleted))
	assert.Nil(t, p.Detect(request("POST", "https://gitlab.com/group/project/-/merge_requests", ""), action.StageCompleted))
}

func TestMatchesHost(t *testing.T) {
	p := New(aliasSet{"git.example.com": true})
	assert.True(t, p.MatchesHost("gitlab.com"))
	assert.True(t, p.MatchesHost("git.example.com"))
	assert.False(t, p.MatchesHost("github.com"))
	assert.False(t, New(nil).MatchesHost("git.example.com"))
}

func TestLabels(t *testing.T) {
	p := New(nil)
	assert.Equal(t, "Merge request merged", p.LabelFor(action.PRMerged))
	assert.Equal(t, "Project created", p.LabelFor(action.RepoCreated))
	assert.Equal(t, "taskDone", p.LabelFor(action.TaskDone))
}

func intPtr(v int) *int { return &v }
