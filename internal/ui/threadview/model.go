package threadview

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/render"
	"github.com/fragmede/threadline/internal/thread"
	"github.com/fragmede/threadline/internal/ui/messages"
)

var (
	depthColors = []lipgloss.Color{
		"#1DA1F2", "#828282", "#00BFFF", "#32CD32", "#FFD700", "#FF69B4", "#9370DB", "#20B2AA",
	}

	commentAuthorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DA1F2")).Bold(true)
	commentMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	commentSelStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#333333"))
	actionStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DA1F2"))
	statusLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282")).Italic(true)
	errorLineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1)
	headerMetaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282")).Padding(0, 1)
	separatorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

const (
	scrollStep = 3
	maxIndent  = 30
)

type lineOffset struct {
	startLine int
	endLine   int
}

// Model is one thread screen: a post's comments, or the replies under a
// comment.
type Model struct {
	id       int
	postID   string
	ctrl     *thread.Controller
	src      api.CommentSource
	posts    api.PostSource
	post     *api.Post
	ctx      context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
	viewport viewport.Model
	lines    []thread.Line
	offsets  []lineOffset
	selected int
	width    int
	height   int
}

// New creates a thread screen. posts may be nil, in which case the post
// header is not loaded.
func New(id int, scope thread.Scope, postID string, policy thread.Policy, src api.CommentSource, posts api.PostSource, log zerolog.Logger) Model {
	ctx, cancel := context.WithCancel(context.Background())
	log = log.With().Int("screen", id).Logger()
	m := Model{
		id:       id,
		postID:   postID,
		ctrl:     thread.NewController(scope, policy, log),
		src:      src,
		posts:    posts,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		viewport: viewport.New(0, 0),
	}
	m.rebuild()
	return m
}

// ID returns the screen id used to route fetch results.
func (m Model) ID() int { return m.id }

// Controller returns the screen's thread controller.
func (m Model) Controller() *thread.Controller { return m.ctrl }

// Lines returns the rendered thread lines.
func (m Model) Lines() []thread.Line { return m.lines }

// Selected returns the cursor index into Lines.
func (m Model) Selected() int { return m.selected }

// Title is a short label for breadcrumbs.
func (m Model) Title() string {
	scope := m.ctrl.Scope()
	if scope.Kind == thread.KindPost {
		if m.post != nil && m.post.Title != "" {
			return render.Preview(m.post.Title, 40)
		}
		return "Comments"
	}
	return "Replies"
}

// Init issues the initial fetch.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetch()}
	if m.posts != nil && m.ctrl.Scope().Kind == thread.KindPost {
		cmds = append(cmds, m.fetchPost())
	}
	return tea.Batch(cmds...)
}

// Close cancels in-flight fetches and marks the controller closed so late
// results are discarded.
func (m Model) Close() {
	m.cancel()
	m.ctrl.Close()
}

func (m Model) fetch() tea.Cmd {
	ticket := m.ctrl.Begin()
	ctx, src, scope, id := m.ctx, m.src, m.ctrl.Scope(), m.id
	m.log.Debug().Uint64("ticket", uint64(ticket)).Msg("fetching thread")
	return func() tea.Msg {
		records, err := thread.FetchScope(ctx, src, scope)
		return messages.ThreadLoadedMsg{ScreenID: id, Ticket: ticket, Records: records, Err: err}
	}
}

func (m Model) fetchPost() tea.Cmd {
	ctx, posts, postID, id := m.ctx, m.posts, m.ctrl.Scope().ID, m.id
	return func() tea.Msg {
		p, err := posts.Post(ctx, postID)
		return messages.PostLoadedMsg{ScreenID: id, Post: p, Err: err}
	}
}

// SetSize updates viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.resizeViewport()
	m.rebuildContent()
}

func (m *Model) resizeViewport() {
	header := m.renderHeader()
	headerLines := strings.Count(header, "\n") + 1
	m.viewport.Height = m.height - headerLines
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.ThreadLoadedMsg:
		if msg.ScreenID != m.id {
			return m, nil
		}
		if m.ctrl.Resolve(msg.Ticket, msg.Records, msg.Err) {
			m.rebuild()
		}
		return m, nil

	case messages.PostLoadedMsg:
		if msg.ScreenID != m.id {
			return m, nil
		}
		if msg.Err != nil {
			m.log.Warn().Err(msg.Err).Msg("loading post header")
			return m, nil
		}
		m.post = msg.Post
		m.resizeViewport()
		m.rebuildContent()
		return m, nil

	case messages.RefetchMsg:
		if msg.ScreenID != m.id {
			return m, nil
		}
		cmd := m.refetch()
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.selected >= 0 && m.selected < len(m.offsets) {
				off := m.offsets[m.selected]
				viewBottom := m.viewport.YOffset + m.viewport.Height
				if off.endLine >= viewBottom {
					// Line block extends below viewport, scroll within it.
					m.viewport.SetYOffset(m.viewport.YOffset + scrollStep)
					return m, nil
				}
			}
			if m.selected < len(m.lines)-1 {
				m.selected++
				m.rebuildContent()
				m.scrollToCursor()
			}
			return m, nil
		case "k", "up":
			if m.selected >= 0 && m.selected < len(m.offsets) {
				off := m.offsets[m.selected]
				if off.startLine < m.viewport.YOffset {
					newOff := m.viewport.YOffset - scrollStep
					if newOff < off.startLine {
						newOff = off.startLine
					}
					m.viewport.SetYOffset(newOff)
					return m, nil
				}
			}
			if m.selected > 0 {
				m.selected--
				m.rebuildContent()
				m.scrollToCursor()
			}
			return m, nil
		case " ":
			if l, ok := m.current(); ok && l.Node != nil && l.Kind != thread.LineLoadMore {
				m.ctrl.Toggle(l.Node.ID)
				m.rebuild()
			}
			return m, nil
		case "enter":
			return m.activate()
		case "[", "p":
			if idx := FindParentIndex(m.lines, m.selected); idx >= 0 {
				m.selected = idx
				m.rebuildContent()
				m.scrollToCursor()
			}
			return m, nil
		case "]":
			if idx := FindNextSiblingIndex(m.lines, m.selected); idx >= 0 {
				m.selected = idx
				m.rebuildContent()
				m.scrollToCursor()
			}
			return m, nil
		case "g", "home":
			m.selected = 0
			m.rebuildContent()
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			if len(m.lines) > 0 {
				m.selected = len(m.lines) - 1
				m.rebuildContent()
				m.viewport.GotoBottom()
			}
			return m, nil
		case "r":
			l, ok := m.current()
			if !ok || l.Kind != thread.LineComment {
				return m, nil
			}
			req := messages.OpenReplyMsg{
				ScreenID: m.id,
				PostID:   m.postIDFor(l.Node),
				ParentID: l.Node.ID,
				Quote:    render.Preview(l.Node.Content, 60),
			}
			return m, func() tea.Msg { return req }
		case "c":
			req := messages.OpenReplyMsg{ScreenID: m.id, PostID: m.postID}
			if scope := m.ctrl.Scope(); scope.Kind != thread.KindPost {
				// On a reply screen a new comment answers the screen's root.
				req.ParentID = scope.ID
			}
			if req.PostID == "" {
				return m, nil
			}
			return m, func() tea.Msg { return req }
		case "ctrl+r":
			cmd := m.refetch()
			return m, cmd
		case "ctrl+d", "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "ctrl+u", "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// activate handles enter: fold lines expand in place, load-more lines open
// a new screen, comment lines toggle their fold.
func (m Model) activate() (Model, tea.Cmd) {
	l, ok := m.current()
	if !ok {
		return m, nil
	}
	switch l.Kind {
	case thread.LineShowMore:
		m.ctrl.Expand(l.Node.ID)
		m.rebuild()
		return m, nil
	case thread.LineLoadMore:
		open := messages.OpenThreadMsg{Scope: l.Request.Scope(), PostID: m.postIDFor(l.Node)}
		m.log.Debug().Str("tier", l.Request.Tier.String()).Str("comment", l.Request.CommentID).
			Int("depth", l.Request.AbsDepth).Msg("opening replies")
		return m, func() tea.Msg { return open }
	case thread.LineComment:
		m.ctrl.Toggle(l.Node.ID)
		m.rebuild()
		return m, nil
	}
	return m, nil
}

func (m *Model) refetch() tea.Cmd {
	if m.ctrl.Closed() {
		return nil
	}
	cmd := m.fetch()
	m.rebuild()
	return cmd
}

func (m Model) current() (thread.Line, bool) {
	if m.selected < 0 || m.selected >= len(m.lines) {
		return thread.Line{}, false
	}
	return m.lines[m.selected], true
}

func (m Model) postIDFor(n *thread.Node) string {
	if n != nil && n.PostID != "" {
		return n.PostID
	}
	return m.postID
}

// View renders the thread screen.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.viewport.View())
}

// rebuild re-renders the controller's lines and keeps the cursor in range.
func (m *Model) rebuild() {
	m.lines = m.ctrl.Render()
	if m.selected >= len(m.lines) {
		m.selected = len(m.lines) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.rebuildContent()
}

func (m *Model) rebuildContent() {
	var sb strings.Builder
	m.offsets = make([]lineOffset, len(m.lines))
	availWidth := m.width - 4
	if availWidth < 20 {
		availWidth = 20
	}

	lineCount := 0
	for i, l := range m.lines {
		startLine := lineCount
		rows := m.renderLine(l, i == m.selected, availWidth)
		for _, row := range rows {
			sb.WriteString(row)
			sb.WriteString("\n")
		}
		lineCount += len(rows)
		m.offsets[i] = lineOffset{startLine: startLine, endLine: lineCount - 1}
	}

	m.viewport.SetContent(sb.String())
}

func (m Model) renderLine(l thread.Line, selected bool, availWidth int) []string {
	indent := min(l.Depth*2, maxIndent)
	indentStr := strings.Repeat(" ", indent)

	barColor := depthColors[l.Depth%len(depthColors)]
	if selected {
		barColor = depthColors[0]
	}
	bar := lipgloss.NewStyle().Foreground(barColor).Render("│")

	sel := func(s string) string {
		if selected {
			return commentSelStyle.Render(s)
		}
		return s
	}

	switch l.Kind {
	case thread.LineLoading, thread.LineEmpty:
		return []string{sel("  " + statusLineStyle.Render(l.Text))}
	case thread.LineError:
		return []string{sel("  " + errorLineStyle.Render(l.Text)), ""}
	case thread.LineShowMore:
		text := fmt.Sprintf("show %d more %s", l.Hidden, plural(l.Hidden, "reply", "replies"))
		return []string{sel(indentStr + bar + " " + actionStyle.Render("▸ "+text)), ""}
	case thread.LineLoadMore:
		text := "view more replies"
		if n, ok := l.Node.Children(); ok && n > 0 {
			text = fmt.Sprintf("view %d more %s", n, plural(n, "reply", "replies"))
		}
		return []string{sel(indentStr + bar + " " + actionStyle.Render("→ "+text)), ""}
	}

	n := l.Node
	header := commentAuthorStyle.Render(authorName(n.UserDetails))
	header += " " + commentMetaStyle.Render(render.TimeAgo(n.CreatedAt))
	// Votes are not tracked.
	header += " " + commentMetaStyle.Render("▲ 0")
	if count, ok := n.Children(); ok && count > 0 {
		header += " " + commentMetaStyle.Render(fmt.Sprintf("[%d %s]", count, plural(count, "reply", "replies")))
	}
	if m.ctrl.Expanded(n.ID) {
		header += " " + commentMetaStyle.Render("[all]")
	}
	if abs := m.ctrl.Scope().BaseDepth + l.Depth; abs > 15 {
		header += " " + commentMetaStyle.Render(fmt.Sprintf("[d:%d]", abs))
	}

	bodyWidth := availWidth - indent - 4
	if bodyWidth < 20 {
		bodyWidth = 20
	}
	body := render.PlainText(n.Content, bodyWidth)

	rows := []string{sel(indentStr + bar + " " + header)}
	for _, line := range strings.Split(body, "\n") {
		rows = append(rows, sel(indentStr+bar+" "+line))
	}
	return append(rows, "")
}

func (m *Model) scrollToCursor() {
	if m.selected < 0 || m.selected >= len(m.offsets) {
		return
	}
	off := m.offsets[m.selected]
	if off.startLine < m.viewport.YOffset || off.startLine >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(off.startLine)
	}
}

func (m Model) renderHeader() string {
	var parts []string
	scope := m.ctrl.Scope()

	switch {
	case scope.Kind == thread.KindPost && m.post != nil:
		parts = append(parts, headerStyle.Render(m.post.Title))
		meta := fmt.Sprintf("by %s | %s | %d comments",
			authorName(m.post.UserDetails), render.TimeAgo(m.post.CreatedAt), m.post.CommentsCount)
		if name := m.post.CommunityDetails.Name; name != "" {
			meta = name + " | " + meta
		}
		parts = append(parts, headerMetaStyle.Render(meta))
	case scope.Kind == thread.KindPost:
		parts = append(parts, headerStyle.Render("Comments"))
	default:
		parts = append(parts, headerStyle.Render("Replies"))
		parts = append(parts, headerMetaStyle.Render(fmt.Sprintf("%s of %s | depth %d", scope.Kind, scope.ID, scope.BaseDepth)))
	}

	parts = append(parts, separatorStyle.Render(strings.Repeat("─", max(m.width, 0))))
	hint := commentMetaStyle.Render("j/k:move  p:parent  ]:sibling  space:fold  enter:open  r:reply  c:comment  ctrl+r:refresh  esc:back")
	parts = append(parts, hint)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func authorName(u api.UserDetails) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.UserHandle != "" {
		return "@" + u.UserHandle
	}
	return "anonymous"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
