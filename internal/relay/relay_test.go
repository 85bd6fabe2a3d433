package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cdpaction/pkg/action"
	"cdpaction/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type sent struct {
	target model.TargetID
	msg    Message
}

type fakeSender struct {
	mu   sync.Mutex
	got  []sent
	err  error
	seen chan struct{}
}

func newFakeSender() *fakeSender { return &fakeSender{seen: make(chan struct{}, 16)} }

func (f *fakeSender) Send(_ context.Context, target model.TargetID, msg Message) error {
	f.mu.Lock()
	f.got = append(f.got, sent{target: target, msg: msg})
	f.mu.Unlock()
	f.seen <- struct{}{}
	return f.err
}

func (f *fakeSender) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.got...)
}

type labelTable map[string]string

func (l labelTable) LabelFor(host string, a action.Action) (string, bool) {
	prefix, ok := l[host]
	if !ok {
		return "", false
	}
	return prefix + " " + string(a), true
}

func TestEncode(t *testing.T) {
	data, err := Encode(Message{
		Action:   action.PRMerged,
		DelayMS:  intPtr(3000),
		Hostname: "github.com",
		Label:    "Pull request merged",
	})
	require.NoError(t, err)

	r := gjson.ParseBytes(data)
	assert.Equal(t, "prMerged", r.Get("action").String())
	assert.Equal(t, int64(3000), r.Get("delay").Int())
	assert.Equal(t, "github.com", r.Get("hostname").String())
	assert.Equal(t, "Pull request merged", r.Get("label").String())
	assert.False(t, r.Get("type").Exists())

	data, err = Encode(Message{Action: action.EmailSent, Hostname: "mail.google.com", Type: TypeWebApp})
	require.NoError(t, err)
	r = gjson.ParseBytes(data)
	assert.False(t, r.Get("delay").Exists())
	assert.False(t, r.Get("label").Exists())
	assert.Equal(t, TypeWebApp, r.Get("type").String())
}

func TestEncode_ZeroDelayKept(t *testing.T) {
	data, err := Encode(Message{Action: action.PRMade, DelayMS: intPtr(0), Hostname: "github.com"})
	require.NoError(t, err)
	d := gjson.GetBytes(data, "delay")
	assert.True(t, d.Exists())
	assert.Equal(t, int64(0), d.Int())
}

func TestFromRequest(t *testing.T) {
	s := newFakeSender()
	r := New(s, nil, Options{})

	r.FromRequest(context.Background(), "tab-1", "github.com", labelTable{"github.com": "GH"}, action.DetectedAfter(action.PRMerged, 3000))
	got := s.messages()
	require.Len(t, got, 1)
	assert.Equal(t, model.TargetID("tab-1"), got[0].target)
	assert.Equal(t, "GH prMerged", got[0].msg.Label)
	assert.Empty(t, got[0].msg.Type)
	require.NotNil(t, got[0].msg.DelayMS)
	assert.Equal(t, 3000, *got[0].msg.DelayMS)

	// 无结果或无目标时不投递
	r.FromRequest(context.Background(), "tab-1", "github.com", nil, nil)
	r.FromRequest(context.Background(), "", "github.com", nil, action.Detected(action.IssueCreated))
	assert.Len(t, s.messages(), 1)
}

func TestFromRequest_UnknownHostHasNoLabel(t *testing.T) {
	s := newFakeSender()
	r := New(s, nil, Options{})
	r.FromRequest(context.Background(), "tab-1", "example.org", labelTable{}, action.Detected(action.IssueCreated))
	got := s.messages()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].msg.Label)
}

func TestFromRequest_SendErrorIsSwallowed(t *testing.T) {
	s := newFakeSender()
	s.err = errors.New("target gone")
	r := New(s, nil, Options{})
	assert.NotPanics(t, func() {
		r.FromRequest(context.Background(), "tab-1", "github.com", nil, action.Detected(action.IssueCreated))
	})
	assert.Len(t, s.messages(), 1)
}

func TestFromWebApp_SharedChannel(t *testing.T) {
	s := newFakeSender()
	r := New(s, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ok := r.FromWebApp("tab-2", "mail.google.com", labelTable{"mail.google.com": "Mail"}, action.DetectedAfter(action.EmailSent, 1000))
	require.True(t, ok)

	select {
	case <-s.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	got := s.messages()
	require.Len(t, got, 1)
	assert.Equal(t, model.TargetID("tab-2"), got[0].target)
	assert.Equal(t, TypeWebApp, got[0].msg.Type)
	assert.Equal(t, "Mail emailSent", got[0].msg.Label)
}

func TestFromWebApp_DropsWhenFull(t *testing.T) {
	r := New(newFakeSender(), nil, Options{Backlog: 1})
	res := action.Detected(action.TaskDone)
	assert.True(t, r.FromWebApp("tab", "app.clickup.com", nil, res))
	assert.False(t, r.FromWebApp("tab", "app.clickup.com", nil, res))
	assert.False(t, r.FromWebApp("tab", "app.clickup.com", nil, nil))
}

func intPtr(v int) *int { return &v }
