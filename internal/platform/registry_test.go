package platform

import (
	"context"
	"errors"
	"testing"

	"cdpaction/pkg/action"
	"cdpaction/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	hosts []string
	err   error
	calls int
}

func (f *fakeSettings) CustomDomains(context.Context) ([]string, error) {
	f.calls++
	return f.hosts, f.err
}

type stubClassifier struct {
	name   string
	host   string
	result *action.Result
}

func (s *stubClassifier) Name() string { return s.name }
func (s *stubClassifier) DisplayName() string { return s.name }
func (s *stubClassifier) MatchesHost(h string) bool { return h == s.host }
func (s *stubClassifier) LabelFor(a action.Action) string { return s.name + ":" + string(a) }
func (s *stubClassifier) Detect(*traffic.Request, action.Stage) *action.Result {
	return s.result
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(nil, nil)

	require.NotNil(t, r.Resolve("github.com"))
	assert.Equal(t, "github", r.Resolve("github.com").Name())
	assert.Equal(t, "gitlab", r.Resolve("gitlab.com").Name())
	assert.Nil(t, r.Resolve("git.example.com"))
	assert.Nil(t, r.Resolve("example.org"))
}

func TestRegistry_RegistrationOrderIsPrecedence(t *testing.T) {
	first := &stubClassifier{name: "first", host: "h"}
	second := &stubClassifier{name: "second", host: "h"}
	r := NewRegistry(nil, nil,
		func(*Domains) Classifier { return first },
		func(*Domains) Classifier { return second },
	)
	assert.Equal(t, "first", r.Resolve("h").Name())
}

func TestRegistry_Detect(t *testing.T) {
	r := NewRegistry(nil, nil)

	req := traffic.NewRequest("POST", "https://github.com/octo/repo/pull/3/page_data/merge")
	req.Body = []byte(`{"mergeMethod":"MERGE"}`)
	got := r.Detect(req, action.StageBefore)
	require.NotNil(t, got)
	assert.Equal(t, action.PRMerged, got.Action)

	assert.Nil(t, r.Detect(traffic.NewRequest("POST", "https://example.org/x"), action.StageBefore))
	assert.Nil(t, r.Detect(traffic.NewRequest("POST", "::bad url"), action.StageBefore))
	assert.Nil(t, r.Detect(nil, action.StageBefore))
}

func TestRegistry_DropsOutOfVocabulary(t *testing.T) {
	bad := &stubClassifier{name: "bad", host: "h", result: &action.Result{Action: "somethingElse"}}
	r := NewRegistry(nil, nil, func(*Domains) Classifier { return bad })
	assert.Nil(t, r.Detect(traffic.NewRequest("GET", "https://h/"), action.StageBefore))
}

func TestRegistry_LabelFor(t *testing.T) {
	r := NewRegistry(nil, nil)

	label, ok := r.LabelFor("github.com", action.PRMerged)
	assert.True(t, ok)
	assert.Equal(t, "Pull request merged", label)

	label, ok = r.LabelFor("gitlab.com", action.PRMerged)
	assert.True(t, ok)
	assert.Equal(t, "Merge request merged", label)

	_, ok = r.LabelFor("example.org", action.PRMerged)
	assert.False(t, ok)
}

func TestRegistry_RefreshAliases(t *testing.T) {
	settings := &fakeSettings{hosts: []string{"Git.Example.com", "git.example.com", "code.corp"}}
	r := NewRegistry(settings, nil)

	assert.Nil(t, r.Resolve("git.example.com"))

	r.RefreshAliases(context.Background())
	assert.Equal(t, 1, settings.calls)
	assert.Equal(t, []string{"git.example.com", "code.corp"}, r.Domains().List())

	c := r.Resolve("git.example.com")
	require.NotNil(t, c)
	assert.Equal(t, "gitlab", c.Name())

	req := traffic.NewRequest("POST", "https://code.corp/team/app/-/merge_requests/9/merge")
	got := r.Detect(req, action.StageBefore)
	require.NotNil(t, got)
	assert.Equal(t, action.PRMerged, got.Action)

	// Detect 不触发设置读取
	assert.Equal(t, 1, settings.calls)
}

func TestRegistry_RefreshFailsOpen(t *testing.T) {
	settings := &fakeSettings{hosts: []string{"git.example.com"}}
	r := NewRegistry(settings, nil)
	r.RefreshAliases(context.Background())
	require.NotNil(t, r.Resolve("git.example.com"))

	settings.err = errors.New("storage unavailable")
	r.RefreshAliases(context.Background())
	assert.Empty(t, r.Domains().List())
	assert.Nil(t, r.Resolve("git.example.com"))
}

func TestRegistry_Fork(t *testing.T) {
	settings := &fakeSettings{hosts: []string{"git.example.com"}}
	r := NewRegistry(settings, nil)
	forked := r.Fork()

	// 别名共享
	r.RefreshAliases(context.Background())
	assert.NotNil(t, forked.Resolve("git.example.com"))

	// 挂起状态隔离
	r.Detect(traffic.NewRequest("POST", "https://github.com/o/r/settings/delete"), action.StageBefore)
	confirm := traffic.NewRequest("GET", "https://github.com/o/r/graphs/participation")
	assert.Nil(t, forked.Detect(confirm, action.StageCompleted))

	got := r.Detect(confirm, action.StageCompleted)
	require.NotNil(t, got)
	assert.Equal(t, action.RepoDeleted, got.Action)
}

func TestDomains(t *testing.T) {
	d := NewDomains("A.example", "", " b.example ", "a.example")
	assert.Equal(t, []string{"a.example", "b.example"}, d.List())
	assert.True(t, d.Contains("A.EXAMPLE"))
	assert.False(t, d.Contains("c.example"))

	var nilDomains *Domains
	assert.False(t, nilDomains.Contains("a.example"))
}
