package statusbar

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	barStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#FFFFFF"))

	crumbStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#555555")).
			Foreground(lipgloss.Color("#CCCCCC")).
			Padding(0, 1)

	activeCrumbStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#1DA1F2")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Bold(true).
				Padding(0, 1)

	backendStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#00FF00")).
			Padding(0, 1)

	statusTextStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#AAAAAA")).
			Padding(0, 1)

	errorTextStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B0000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)
)

// maxCrumbs is how many screens the breadcrumb shows before eliding.
const maxCrumbs = 4

// Model is the status bar at the bottom of the screen.
type Model struct {
	width      int
	crumbs     []string
	backend    string
	statusText string
	isError    bool
}

// New creates a new status bar.
func New() Model {
	return Model{}
}

// SetSize sets the width.
func (m *Model) SetSize(w int) {
	m.width = w
}

// SetCrumbs sets the screen stack labels, outermost first.
func (m *Model) SetCrumbs(crumbs []string) {
	m.crumbs = crumbs
}

// SetBackend sets the label of the comment backend in use.
func (m *Model) SetBackend(name string) {
	m.backend = name
}

// SetStatus sets a temporary status message.
func (m *Model) SetStatus(text string, isError bool) {
	m.statusText = text
	m.isError = isError
}

// Status returns the current status text.
func (m Model) Status() string {
	return m.statusText
}

// Update is a no-op for the status bar.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	crumbs := m.crumbs
	var left strings.Builder
	if len(crumbs) > maxCrumbs {
		left.WriteString(crumbStyle.Render("…"))
		crumbs = crumbs[len(crumbs)-maxCrumbs:]
	}
	for i, c := range crumbs {
		if i == len(crumbs)-1 {
			left.WriteString(activeCrumbStyle.Render(c))
		} else {
			left.WriteString(crumbStyle.Render(c))
		}
	}

	var right string
	if m.statusText != "" {
		if m.isError {
			right += errorTextStyle.Render(m.statusText)
		} else {
			right += statusTextStyle.Render(m.statusText)
		}
	}
	if m.backend != "" {
		right += backendStyle.Render(m.backend)
	}

	leftStr := left.String()
	gap := m.width - lipgloss.Width(leftStr) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	mid := barStyle.Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftStr, mid, right)
}
