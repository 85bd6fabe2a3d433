package clickup

import (
	"testing"

	"cdpaction/internal/dom"
	"cdpaction/internal/dom/domtest"
	"cdpaction/internal/sched"
	"cdpaction/internal/webapp/detector"
	"cdpaction/pkg/action"

	"github.com/stretchr/testify/assert"
)

const (
	viewSel  = "cu3-notifications-top-header"
	itemSel  = "cu3-notification-row-layout"
	emptySel = "cu3-empty-state"
	listSel  = "cu3-notifications-list-layout"
)

type harness struct {
	doc     *domtest.Document
	clock   *sched.Manual
	det     *Detector
	actions []action.Action
}

func newHarness() *harness {
	h := &harness{doc: domtest.New(), clock: sched.NewManual()}
	h.det = New(detector.Env{
		Doc:   h.doc,
		Sched: h.clock,
		Emit:  func(r *action.Result) { h.actions = append(h.actions, r.Action) },
	})
	return h
}

func (h *harness) enterInbox(items int) {
	h.doc.Counts[viewSel] = 1
	h.setItems(items)
}

func (h *harness) setItems(n int) {
	if n == 0 {
		delete(h.doc.Counts, itemSel)
		h.doc.Counts[emptySel] = 1
		return
	}
	delete(h.doc.Counts, emptySel)
	h.doc.Counts[itemSel] = n
}

func TestInboxCleared(t *testing.T) {
	h := newHarness()
	h.enterInbox(4)
	h.det.Initialize()
	assert.True(t, h.det.poller.Running())

	h.setItems(2)
	h.clock.Tick(detector.PollInterval, 1)
	assert.Empty(t, h.actions)

	h.setItems(0)
	h.clock.Tick(detector.PollInterval, 3)
	assert.Equal(t, []action.Action{action.InboxCleared}, h.actions)
}

func TestInboxCount_ListChildren(t *testing.T) {
	h := newHarness()
	h.doc.URL = "https://app.clickup.com/9001/inbox"
	h.doc.Children[listSel] = 2
	h.det.Initialize()
	assert.Equal(t, dom.Counted(2), h.det.poller.Baseline())

	h.doc.Children[listSel] = 0
	h.clock.Advance(detector.PollInterval)
	assert.Equal(t, []action.Action{action.InboxCleared}, h.actions)
}

func TestWaitsForInboxView(t *testing.T) {
	h := newHarness()
	h.doc.URL = "https://app.clickup.com/9001/home"
	h.det.Initialize()
	assert.False(t, h.det.poller.Running())

	h.clock.Advance(viewRetry)
	assert.False(t, h.det.poller.Running())

	h.enterInbox(1)
	h.clock.Advance(viewRetry)
	assert.True(t, h.det.poller.Running())
}

func TestRetriesWhenCountIndeterminate(t *testing.T) {
	h := newHarness()
	h.doc.Counts[viewSel] = 1
	h.det.Initialize()
	assert.False(t, h.det.poller.Running())

	h.setItems(3)
	h.clock.Advance(countRetry)
	assert.True(t, h.det.poller.Running())
	assert.Equal(t, dom.Counted(3), h.det.poller.Baseline())
}

func TestIndeterminateTickKeepsBaseline(t *testing.T) {
	h := newHarness()
	h.enterInbox(2)
	h.det.Initialize()

	delete(h.doc.Counts, itemSel)
	h.clock.Tick(detector.PollInterval, 2)
	assert.Equal(t, dom.Counted(2), h.det.poller.Baseline())

	h.setItems(0)
	h.clock.Advance(detector.PollInterval)
	assert.Equal(t, []action.Action{action.InboxCleared}, h.actions)
}

func TestLeavingInboxRearms(t *testing.T) {
	h := newHarness()
	h.enterInbox(2)
	h.det.Initialize()

	delete(h.doc.Counts, viewSel)
	h.clock.Advance(detector.PollInterval)
	assert.False(t, h.det.poller.Running())

	// 离开期间清空不触发
	h.setItems(0)
	h.clock.Advance(detector.PollInterval)
	assert.Empty(t, h.actions)

	h.enterInbox(1)
	h.clock.Advance(viewRetry)
	assert.True(t, h.det.poller.Running())
	h.setItems(0)
	h.clock.Advance(detector.PollInterval)
	assert.Equal(t, []action.Action{action.InboxCleared}, h.actions)
}

func TestTaskDoneClick(t *testing.T) {
	cases := []struct {
		name string
		path []dom.Node
		want bool
	}{
		{"status attribute", []dom.Node{{Tag: "div", Attrs: map[string]string{"data-status": "Complete"}}}, true},
		{"incomplete status", []dom.Node{{Tag: "div", Attrs: map[string]string{"data-status": "incomplete"}}}, false},
		{"undone status", []dom.Node{{Tag: "div", Attrs: map[string]string{"data-status": "undone"}}}, false},
		{"status class on ancestor", []dom.Node{{Tag: "span"}, {Tag: "div"}, {Tag: "li", Class: "cu-status status-closed"}}, true},
		{"exact text", []dom.Node{{Tag: "span", Text: "  DONE "}}, true},
		{"too deep", []dom.Node{{}, {}, {}, {}, {Tag: "li", Class: "status-done"}}, false},
		{"unrelated", []dom.Node{{Tag: "button", Text: "Done editing this long description text"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.det.Initialize()
			h.doc.Click(dom.Click{Path: tc.path})
			if tc.want {
				assert.Equal(t, []action.Action{action.TaskDone}, h.actions)
			} else {
				assert.Empty(t, h.actions)
			}
		})
	}
}

func TestCleanup(t *testing.T) {
	h := newHarness()
	h.enterInbox(2)
	h.det.Initialize()

	h.det.Cleanup()
	assert.Zero(t, h.clock.Pending())
	assert.Zero(t, h.doc.Listeners())

	h.setItems(0)
	h.clock.Tick(detector.PollInterval, 4)
	h.doc.Click(dom.Click{Path: []dom.Node{{Text: "done"}}})
	assert.Empty(t, h.actions)
}
