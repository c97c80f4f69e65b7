package threadview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/thread"
	"github.com/fragmede/threadline/internal/ui/messages"
)

type fakeSource struct {
	records []api.Comment
	err     error
	calls   []string
}

func (f *fakeSource) ByPost(_ context.Context, id string) ([]api.Comment, error) {
	f.calls = append(f.calls, "post:"+id)
	return f.records, f.err
}

func (f *fakeSource) RepliesOf(_ context.Context, id string) ([]api.Comment, error) {
	f.calls = append(f.calls, "replies:"+id)
	return f.records, f.err
}

func (f *fakeSource) DeepRepliesOf(_ context.Context, id string) ([]api.Comment, error) {
	f.calls = append(f.calls, "deep:"+id)
	return f.records, f.err
}

func comment(id, parent string) api.Comment {
	return api.Comment{
		ID:          id,
		PostID:      "p1",
		ReplyTo:     api.StringPtr(parent),
		Content:     "text of " + id,
		CreatedAt:   1,
		UserDetails: api.UserDetails{DisplayName: "user " + id},
	}
}

// sample is a five-deep chain c0..c4 followed by root r with five replies.
func sample() []api.Comment {
	var out []api.Comment
	for i := 0; i < 5; i++ {
		parent := ""
		if i > 0 {
			parent = fmt.Sprintf("c%d", i-1)
		}
		out = append(out, comment(fmt.Sprintf("c%d", i), parent))
	}
	out = append(out, comment("r", ""))
	for i := 0; i < 5; i++ {
		out = append(out, comment(fmt.Sprintf("r%d", i), "r"))
	}
	return out
}

// collect runs cmd and flattens batches into their messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newLoaded(t *testing.T, src *fakeSource) Model {
	t.Helper()
	m := New(1, thread.PostScope("p1"), "p1", thread.DefaultPolicy(), src, nil, zerolog.Nop())
	m.SetSize(100, 40)

	msgs := collect(m.Init())
	require.Len(t, msgs, 1)
	m, _ = m.Update(msgs[0])
	return m
}

func indexOf(m Model, kind thread.LineKind) int {
	for i, l := range m.Lines() {
		if l.Kind == kind {
			return i
		}
	}
	return -1
}

func TestModel_InitialLoad(t *testing.T) {
	m := New(1, thread.PostScope("p1"), "p1", thread.DefaultPolicy(), &fakeSource{}, nil, zerolog.Nop())
	require.Len(t, m.Lines(), 1)
	assert.Equal(t, thread.LineLoading, m.Lines()[0].Kind)

	src := &fakeSource{records: sample()}
	m = newLoaded(t, src)
	assert.Equal(t, []string{"post:p1"}, src.calls)
	assert.Equal(t, thread.StatusReady, m.Controller().Status())

	var ids []string
	for _, l := range m.Lines() {
		if l.Kind == thread.LineComment {
			ids = append(ids, l.Node.ID)
		}
	}
	assert.Equal(t, []string{"c0", "c1", "c2", "c3", "r", "r0", "r1", "r2"}, ids)
	assert.Contains(t, m.View(), "user c0")
}

func TestModel_IgnoresOtherScreens(t *testing.T) {
	m := newLoaded(t, &fakeSource{records: sample()})
	before := len(m.Lines())

	m, _ = m.Update(messages.ThreadLoadedMsg{ScreenID: 99, Ticket: 1, Err: errors.New("boom")})
	assert.Len(t, m.Lines(), before)
	assert.Equal(t, thread.StatusReady, m.Controller().Status())
}

func TestModel_LoadMoreOpensReplies(t *testing.T) {
	m := newLoaded(t, &fakeSource{records: sample()})

	idx := indexOf(m, thread.LineLoadMore)
	require.GreaterOrEqual(t, idx, 0)
	m.selected = idx

	before := len(m.Lines())
	m, cmd := m.Update(keyMsg("enter"))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)

	open, ok := msgs[0].(messages.OpenThreadMsg)
	require.True(t, ok)
	assert.Equal(t, thread.Scope{Kind: thread.KindReplies, ID: "c3", BaseDepth: 4}, open.Scope)
	assert.Equal(t, "p1", open.PostID)
	assert.Len(t, m.Lines(), before, "escalation does not touch this screen")
}

func TestModel_ShowMoreExpandsInPlace(t *testing.T) {
	m := newLoaded(t, &fakeSource{records: sample()})

	idx := indexOf(m, thread.LineShowMore)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, 2, m.Lines()[idx].Hidden)
	m.selected = idx

	before := len(m.Lines())
	m, cmd := m.Update(keyMsg("enter"))
	assert.Nil(t, cmd)
	assert.Equal(t, -1, indexOf(m, thread.LineShowMore))
	assert.Len(t, m.Lines(), before+1) // two replies replace one fold line
}

func TestModel_SpaceTogglesFold(t *testing.T) {
	m := newLoaded(t, &fakeSource{records: sample()})

	for i, l := range m.Lines() {
		if l.Kind == thread.LineComment && l.Node.ID == "r" {
			m.selected = i
		}
	}
	m, _ = m.Update(keyMsg(" "))
	assert.True(t, m.Controller().Expanded("r"))
	assert.Equal(t, -1, indexOf(m, thread.LineShowMore))

	m, _ = m.Update(keyMsg(" "))
	assert.False(t, m.Controller().Expanded("r"))
	assert.GreaterOrEqual(t, indexOf(m, thread.LineShowMore), 0)
}

func TestModel_ReplyKeys(t *testing.T) {
	m := newLoaded(t, &fakeSource{records: sample()})
	m.selected = 1 // c1

	_, cmd := m.Update(keyMsg("r"))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.OpenReplyMsg{ScreenID: 1, PostID: "p1", ParentID: "c1", Quote: "text of c1"}, msgs[0])

	_, cmd = m.Update(keyMsg("c"))
	msgs = collect(cmd)
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.OpenReplyMsg{ScreenID: 1, PostID: "p1"}, msgs[0])
}

func TestModel_CommentOnReplyScreenAnswersRoot(t *testing.T) {
	src := &fakeSource{records: []api.Comment{comment("x", "c3")}}
	scope := thread.Scope{Kind: thread.KindReplies, ID: "c3", BaseDepth: 4}
	m := New(2, scope, "p1", thread.ExtendedPolicy(), src, nil, zerolog.Nop())
	m, _ = m.Update(collect(m.Init())[0])
	assert.Equal(t, []string{"replies:c3"}, src.calls)

	_, cmd := m.Update(keyMsg("c"))
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.OpenReplyMsg{ScreenID: 2, PostID: "p1", ParentID: "c3"}, msgs[0])
}

func TestModel_RefetchSupersedesEarlierFetch(t *testing.T) {
	src := &fakeSource{records: sample()}
	m := New(1, thread.PostScope("p1"), "p1", thread.DefaultPolicy(), src, nil, zerolog.Nop())

	first := collect(m.Init())
	m, cmd := m.Update(messages.RefetchMsg{ScreenID: 1})
	second := collect(cmd)
	require.Len(t, second, 1)

	// The first result lands late and is ignored.
	m, _ = m.Update(first[0])
	assert.Equal(t, thread.StatusLoading, m.Controller().Status())

	m, _ = m.Update(second[0])
	assert.Equal(t, thread.StatusReady, m.Controller().Status())
}

func TestModel_ErrorAndEmptyLines(t *testing.T) {
	m := newLoaded(t, &fakeSource{err: errors.New("offline")})
	require.Len(t, m.Lines(), 1)
	assert.Equal(t, thread.LineError, m.Lines()[0].Kind)
	assert.Contains(t, m.View(), "Error loading comments: offline")

	m = newLoaded(t, &fakeSource{records: []api.Comment{}})
	require.Len(t, m.Lines(), 1)
	assert.Equal(t, thread.LineEmpty, m.Lines()[0].Kind)
	assert.Contains(t, m.View(), "No comments yet.")
}

func TestModel_ClosedScreenDropsResults(t *testing.T) {
	src := &fakeSource{records: sample()}
	m := New(1, thread.PostScope("p1"), "p1", thread.DefaultPolicy(), src, nil, zerolog.Nop())
	pending := collect(m.Init())

	m.Close()
	m, _ = m.Update(pending[0])
	assert.NotEqual(t, thread.StatusReady, m.Controller().Status())

	_, cmd := m.Update(messages.RefetchMsg{ScreenID: 1})
	assert.Nil(t, cmd)
}

func TestNavigation(t *testing.T) {
	m := newLoaded(t, &fakeSource{records: sample()})
	lines := m.Lines()

	// c2 -> c1
	assert.Equal(t, 1, FindParentIndex(lines, 2))
	// c0 has no parent
	assert.Equal(t, -1, FindParentIndex(lines, 0))
	// the load-more line under c3 belongs to c3
	assert.Equal(t, 3, FindParentIndex(lines, indexOf(m, thread.LineLoadMore)))

	// c0 -> r
	r := FindNextSiblingIndex(lines, 0)
	require.GreaterOrEqual(t, r, 0)
	assert.Equal(t, "r", lines[r].Node.ID)
	// r0 -> r1
	assert.Equal(t, "r1", lines[FindNextSiblingIndex(lines, r+1)].Node.ID)
	// last root has no next sibling
	assert.Equal(t, -1, FindNextSiblingIndex(lines, r))
}
