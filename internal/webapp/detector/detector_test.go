package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"cdpaction/internal/dom"
	"cdpaction/internal/dom/domtest"
	"cdpaction/internal/sched"
	"cdpaction/pkg/action"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProfiles(t *testing.T) {
	gmail := Builtin("gmail")
	assert.True(t, gmail.MatchesHost("mail.google.com"))
	assert.Equal(t, "Email sent", gmail.LabelFor(action.EmailSent))
	assert.Equal(t, "taskDone", gmail.LabelFor(action.TaskDone))
	assert.NotEmpty(t, gmail.Select("inbox_link"))
	assert.Len(t, gmail.Markers(action.EmailSent), 3)

	res := gmail.Result(action.InboxCleared)
	require.NotNil(t, res.DelayMS)
	assert.Equal(t, 1000, *res.DelayMS)

	clickup := Builtin("clickup")
	assert.True(t, clickup.MatchesHost("app.clickup.com"))
	assert.Len(t, clickup.Markers(action.TaskDone), 8)
	assert.Nil(t, clickup.Result(action.TaskDone).DelayMS)

	assert.Panics(t, func() { Builtin("outlook") })
}

func TestLoadProfiles_RejectsUnknownAction(t *testing.T) {
	_, err := LoadProfiles([]byte("app:\n  labels:\n    partyTime: Party\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, action.ErrUnknownAction)

	_, err = LoadProfiles([]byte("app: [unterminated"))
	assert.Error(t, err)
}

func TestBase_ReleaseCancelsEverything(t *testing.T) {
	doc := domtest.New()
	m := sched.NewManual()
	b := NewBase(Env{Doc: doc, Sched: m}, Builtin("gmail"))

	var fired int
	b.After(time.Second, func() { fired++ })
	b.Every(time.Second, func() { fired++ })
	require.NoError(t, b.ListenClicks(func(dom.Click) {}))
	assert.True(t, b.Active())

	b.Release()
	assert.False(t, b.Active())
	assert.Equal(t, 1, doc.Removed)
	assert.Zero(t, doc.Listeners())

	m.Advance(time.Minute)
	assert.Zero(t, fired)
	assert.Zero(t, m.Pending())
}

func TestBase_AfterUntracksWhenFired(t *testing.T) {
	m := sched.NewManual()
	b := NewBase(Env{Doc: domtest.New(), Sched: m}, Profile{})

	b.After(time.Second, func() {})
	assert.True(t, b.Active())
	m.Advance(time.Second)
	assert.False(t, b.Active())
}

func TestBase_ListenClicksError(t *testing.T) {
	doc := domtest.New()
	errNoDoc := errors.New("no document")
	doc.ClickErr = errNoDoc
	b := NewBase(Env{Doc: doc, Sched: sched.NewManual()}, Profile{})
	assert.ErrorIs(t, b.ListenClicks(func(dom.Click) {}), errNoDoc)
	assert.False(t, b.Active())
}

func TestPoller(t *testing.T) {
	m := sched.NewManual()
	b := NewBase(Env{Doc: domtest.New(), Sched: m}, Profile{})

	samples := []dom.Sample{dom.Counted(3), dom.Counted(0), dom.Counted(0)}
	var cleared int
	p := NewPoller(&b)
	p.Sample = func(context.Context) dom.Sample {
		s := samples[0]
		if len(samples) > 1 {
			samples = samples[1:]
		}
		return s
	}
	p.OnClear = func() { cleared++ }

	p.Start(dom.Counted(3))
	assert.True(t, p.Running())
	m.Tick(PollInterval, 3)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, dom.Counted(0), p.Baseline())

	p.Stop()
	assert.False(t, p.Running())
	assert.Zero(t, m.Pending())
}

func TestPoller_GuardStops(t *testing.T) {
	m := sched.NewManual()
	b := NewBase(Env{Doc: domtest.New(), Sched: m}, Profile{})

	inView := true
	var left int
	p := NewPoller(&b)
	p.Sample = func(context.Context) dom.Sample { return dom.Counted(1) }
	p.Guard = func(context.Context) bool { return inView }
	p.OnLeave = func() { left++ }

	p.Start(dom.Counted(1))
	m.Advance(PollInterval)
	assert.True(t, p.Running())

	inView = false
	m.Advance(PollInterval)
	assert.False(t, p.Running())
	assert.Equal(t, 1, left)
	assert.False(t, b.Active())
}
