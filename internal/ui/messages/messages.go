package messages

import (
	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/thread"
)

// View transition messages.
type (
	// OpenThreadMsg pushes a new thread screen for Scope. PostID is the
	// post the comments belong to, used when composing replies.
	OpenThreadMsg struct {
		Scope  thread.Scope
		PostID string
	}

	// OpenReplyMsg opens the composer. ParentID is empty for a top-level
	// comment on the post. ScreenID is the screen refetched on success.
	OpenReplyMsg struct {
		ScreenID int
		PostID   string
		ParentID string
		Quote    string
	}
)

// Data messages. Every fetch result carries the id of the screen that
// issued it; the app drops results for screens that are gone.
type (
	ThreadLoadedMsg struct {
		ScreenID int
		Ticket   thread.Ticket
		Records  []api.Comment
		Err      error
	}

	PostLoadedMsg struct {
		ScreenID int
		Post     *api.Post
		Err      error
	}

	// ReplyResultMsg is the outcome of one composer's submission.
	// ComposerID names the composer that sent it.
	ReplyResultMsg struct {
		ComposerID int
		ScreenID   int
		Comment    *api.Comment
		Err        error
	}

	RefetchMsg struct {
		ScreenID int
	}

	StatusMsg struct {
		Text    string
		IsError bool
	}
)
