package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/config"
	"github.com/fragmede/threadline/internal/thread"
	"github.com/fragmede/threadline/internal/ui/messages"
	"github.com/fragmede/threadline/internal/ui/reply"
	"github.com/fragmede/threadline/internal/ui/statusbar"
	"github.com/fragmede/threadline/internal/ui/threadview"
)

// Backend bundles the comment operations the app uses. Writer and Posts
// may be nil: without a writer the app is read-only, without Posts the
// post header is not shown.
type Backend struct {
	Name   string
	Source api.CommentSource
	Writer api.CommentWriter
	Posts  api.PostSource
}

// App is the root Bubble Tea model. It owns a stack of thread screens;
// each screen has an id and fetch results are routed by it.
type App struct {
	screens  []threadview.Model
	composer *reply.Model
	showHelp bool

	help      help.Model
	statusBar statusbar.Model

	cfg     config.Config
	backend Backend
	postID  string
	nextID  int
	draftID int
	log     zerolog.Logger

	width  int
	height int
}

// NewApp creates the root application model for the comments of postID.
func NewApp(cfg config.Config, backend Backend, postID string, log zerolog.Logger) *App {
	sb := statusbar.New()
	sb.SetBackend(backend.Name)

	h := help.New()
	h.ShowAll = true

	return &App{
		help:      h,
		statusBar: sb,
		cfg:       cfg,
		backend:   backend,
		postID:    postID,
		nextID:    1,
		draftID:   1,
		log:       log,
	}
}

// Screens returns the screen stack, outermost first.
func (a *App) Screens() []threadview.Model { return a.screens }

// Composer returns the open reply composer, or nil.
func (a *App) Composer() *reply.Model { return a.composer }

// Init opens the post's comment screen.
func (a *App) Init() tea.Cmd {
	return a.pushScreen(thread.PostScope(a.postID), a.postID)
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentHeight := msg.Height - 1 // Reserve 1 line for status bar.
		for i := range a.screens {
			a.screens[i].SetSize(msg.Width, contentHeight)
		}
		if a.composer != nil {
			a.composer.SetSize(msg.Width, contentHeight)
		}
		a.help.Width = msg.Width
		a.statusBar.SetSize(msg.Width)
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case messages.OpenThreadMsg:
		return a, a.pushScreen(msg.Scope, msg.PostID)

	case messages.OpenReplyMsg:
		if a.backend.Writer == nil {
			a.statusBar.SetStatus("Read-only backend: replies are disabled", true)
			return a, nil
		}
		c := reply.New(a.draftID, msg.ScreenID, msg.PostID, msg.ParentID, msg.Quote, a.backend.Writer, a.log)
		c.SetSize(a.width, a.height-1)
		a.draftID++
		a.composer = &c
		return a, nil

	case messages.ReplyResultMsg:
		if a.composer != nil && a.composer.ID() == msg.ComposerID {
			c, cmd := a.composer.Update(msg)
			a.composer = &c
			if msg.Err == nil {
				a.composer = nil
			}
			return a, cmd
		}
		// The sending composer was dismissed while the reply was in flight.
		if msg.Err != nil {
			a.statusBar.SetStatus("Reply failed: "+msg.Err.Error(), true)
			return a, nil
		}
		a.statusBar.SetStatus("Reply posted", false)
		return a, a.routeToScreen(msg.ScreenID, messages.RefetchMsg{ScreenID: msg.ScreenID})

	case messages.ThreadLoadedMsg:
		return a, a.routeToScreen(msg.ScreenID, msg)

	case messages.PostLoadedMsg:
		cmd := a.routeToScreen(msg.ScreenID, msg)
		a.updateCrumbs()
		return a, cmd

	case messages.RefetchMsg:
		return a, a.routeToScreen(msg.ScreenID, msg)

	case messages.StatusMsg:
		a.statusBar.SetStatus(msg.Text, msg.IsError)
		return a, nil
	}

	// Anything else (mouse, viewport scroll) goes to the active view.
	if a.composer != nil {
		c, cmd := a.composer.Update(msg)
		a.composer = &c
		return a, cmd
	}
	return a, a.updateTop(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return a.quit()
	}

	// Text input view: only esc is global.
	if a.composer != nil {
		if key.Matches(msg, Keys.Back) {
			a.composer = nil
			return nil
		}
		c, cmd := a.composer.Update(msg)
		a.composer = &c
		return cmd
	}

	if a.showHelp {
		a.showHelp = false
		return nil
	}

	switch {
	case key.Matches(msg, Keys.Help):
		a.showHelp = true
		return nil
	case key.Matches(msg, Keys.Quit):
		if len(a.screens) <= 1 {
			return a.quit()
		}
		return a.goBack()
	case key.Matches(msg, Keys.Back):
		return a.goBack()
	}
	a.statusBar.SetStatus("", false)
	return a.updateTop(msg)
}

// View renders the application.
func (a *App) View() string {
	var content string
	switch {
	case a.composer != nil:
		content = a.composer.View()
	case a.showHelp:
		box := HelpBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			TitleStyle.Render("Keys"), "", a.help.View(Keys), "", DimStyle.Render("press any key to close")))
		content = lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, box)
	case len(a.screens) > 0:
		content = a.screens[len(a.screens)-1].View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, a.statusBar.View())
}

func (a *App) pushScreen(scope thread.Scope, postID string) tea.Cmd {
	id := a.nextID
	a.nextID++

	policy := thread.PolicyFor(scope.Kind, a.cfg.Thread.Limits())
	v := threadview.New(id, scope, postID, policy, a.backend.Source, a.backend.Posts, a.log)
	v.SetSize(a.width, a.height-1)
	a.screens = append(a.screens, v)
	a.updateCrumbs()

	a.log.Debug().Int("screen", id).Str("kind", scope.Kind.String()).Str("id", scope.ID).
		Int("base_depth", scope.BaseDepth).Msg("push screen")
	return v.Init()
}

func (a *App) goBack() tea.Cmd {
	if a.composer != nil {
		a.composer = nil
		return nil
	}
	if len(a.screens) <= 1 {
		return nil
	}
	top := a.screens[len(a.screens)-1]
	top.Close()
	a.screens = a.screens[:len(a.screens)-1]
	a.updateCrumbs()
	a.log.Debug().Int("screen", top.ID()).Msg("pop screen")
	return nil
}

func (a *App) quit() tea.Cmd {
	for _, s := range a.screens {
		s.Close()
	}
	return tea.Quit
}

// routeToScreen delivers msg to the screen with id. Messages for screens
// that were popped are dropped.
func (a *App) routeToScreen(id int, msg tea.Msg) tea.Cmd {
	for i := range a.screens {
		if a.screens[i].ID() == id {
			var cmd tea.Cmd
			a.screens[i], cmd = a.screens[i].Update(msg)
			return cmd
		}
	}
	a.log.Debug().Int("screen", id).Msgf("dropping %T for closed screen", msg)
	return nil
}

func (a *App) updateTop(msg tea.Msg) tea.Cmd {
	if len(a.screens) == 0 {
		return nil
	}
	i := len(a.screens) - 1
	var cmd tea.Cmd
	a.screens[i], cmd = a.screens[i].Update(msg)
	return cmd
}

func (a *App) updateCrumbs() {
	crumbs := make([]string, len(a.screens))
	for i, s := range a.screens {
		crumbs[i] = s.Title()
	}
	a.statusBar.SetCrumbs(crumbs)
}
