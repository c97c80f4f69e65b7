package reply

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/ui/messages"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DA1F2")).Bold(true)
	quoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282")).Italic(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

// ErrEmptyContent is returned by Submit for blank input.
var ErrEmptyContent = errors.New("reply cannot be empty")

// Submit creates a comment on postID, or a reply to parentID when it is set.
// Blank content is rejected without calling w.
func Submit(ctx context.Context, w api.CommentWriter, postID, parentID, content string) (*api.Comment, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, ErrEmptyContent
	}
	return w.CreateComment(ctx, api.CreateCommentPayload{PostID: postID, Content: text, ReplyTo: parentID})
}

// Model is the reply composer view.
type Model struct {
	textarea   textarea.Model
	id         int
	screenID   int
	postID     string
	parentID   string
	quote      string
	writer     api.CommentWriter
	log        zerolog.Logger
	err        string
	submitting bool
	width      int
	height     int
}

// New creates composer id for a reply to parentID, or a top-level comment on
// postID when parentID is empty. screenID is refetched once the reply lands.
func New(id, screenID int, postID, parentID, quote string, w api.CommentWriter, log zerolog.Logger) Model {
	ta := textarea.New()
	ta.Placeholder = "Write your reply..."
	if parentID == "" {
		ta.Placeholder = "Write a comment..."
	}
	ta.Focus()
	ta.SetWidth(80)
	ta.SetHeight(10)

	return Model{
		textarea: ta,
		id:       id,
		screenID: screenID,
		postID:   postID,
		parentID: parentID,
		quote:    quote,
		writer:   w,
		log:      log,
	}
}

// ID identifies this composer in its ReplyResultMsg.
func (m Model) ID() int { return m.id }

// ScreenID returns the screen this composer reports back to.
func (m Model) ScreenID() int { return m.screenID }

// Value returns the current draft.
func (m Model) Value() string { return m.textarea.Value() }

// SetValue replaces the draft.
func (m *Model) SetValue(s string) { m.textarea.SetValue(s) }

// Err returns the last error shown to the user.
func (m Model) Err() string { return m.err }

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	tw := w - 4
	if tw > 100 {
		tw = 100
	}
	m.textarea.SetWidth(tw)
	th := h - 10
	if th < 5 {
		th = 5
	}
	m.textarea.SetHeight(th)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+s":
			if strings.TrimSpace(m.textarea.Value()) == "" {
				m.err = ErrEmptyContent.Error()
				return m, nil
			}
			if m.submitting {
				return m, nil
			}
			m.submitting = true
			m.err = ""
			w, id, screenID, postID, parentID, text := m.writer, m.id, m.screenID, m.postID, m.parentID, m.textarea.Value()
			return m, func() tea.Msg {
				c, err := Submit(context.Background(), w, postID, parentID, text)
				return messages.ReplyResultMsg{ComposerID: id, ScreenID: screenID, Comment: c, Err: err}
			}
		}

	case messages.ReplyResultMsg:
		if msg.ComposerID != m.id {
			return m, nil
		}
		m.submitting = false
		if msg.Err != nil {
			m.log.Warn().Err(msg.Err).Str("parent", m.parentID).Msg("reply failed")
			m.err = msg.Err.Error()
			return m, nil
		}
		// The owning screen refetches; nothing is spliced in locally. The
		// app closes the composer.
		m.textarea.Reset()
		screenID := m.screenID
		return m, tea.Batch(
			func() tea.Msg { return messages.RefetchMsg{ScreenID: screenID} },
			func() tea.Msg { return messages.StatusMsg{Text: "Reply posted"} },
		)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// View renders the reply form.
func (m Model) View() string {
	var sb strings.Builder

	if m.parentID == "" {
		sb.WriteString(titleStyle.Render("Comment"))
	} else {
		sb.WriteString(titleStyle.Render("Reply"))
	}
	sb.WriteString("\n")
	if m.quote != "" {
		sb.WriteString(quoteStyle.Render("> " + m.quote))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.textarea.View())
	sb.WriteString("\n\n")

	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n")
	}

	if m.submitting {
		sb.WriteString("Submitting...")
	} else {
		sb.WriteString(hintStyle.Render("Ctrl+S to submit | Esc to cancel"))
	}

	content := sb.String()
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
