package thread

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fragmede/threadline/internal/api"
)

// Kind is what a thread screen is rooted at.
type Kind int

const (
	KindPost Kind = iota
	KindReplies
	KindDeepReplies
)

func (k Kind) String() string {
	switch k {
	case KindReplies:
		return "replies"
	case KindDeepReplies:
		return "deep-replies"
	default:
		return "post"
	}
}

// Scope identifies the fetch backing a screen. BaseDepth is the absolute
// thread depth of the screen's root nodes.
type Scope struct {
	Kind      Kind
	ID        string
	BaseDepth int
}

// PostScope returns the scope for a post's comment screen.
func PostScope(postID string) Scope {
	return Scope{Kind: KindPost, ID: postID}
}

// Status is the fetch state of a screen.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusEmpty
	StatusFailed
)

// Ticket identifies one issued fetch. Only the latest ticket is applied.
type Ticket uint64

// LoadMoreRequest is the navigation a "view more replies" line resolves to.
type LoadMoreRequest struct {
	Tier      Tier
	CommentID string
	AbsDepth  int
}

// Scope returns the scope of the screen the request opens. Depth resets to
// 0 on the new screen; its roots sit one level below the comment.
func (r LoadMoreRequest) Scope() Scope {
	kind := KindDeepReplies
	if r.Tier == TierReplies {
		kind = KindReplies
	}
	return Scope{Kind: kind, ID: r.CommentID, BaseDepth: r.AbsDepth + 1}
}

// LineKind is the type of a rendered line.
type LineKind int

const (
	LineComment LineKind = iota
	LineShowMore
	LineLoadMore
	LineLoading
	LineEmpty
	LineError
)

// Line is one row of a rendered thread.
type Line struct {
	Kind  LineKind
	Node  *Node
	Depth int
	// Hidden is set on LineShowMore.
	Hidden int
	// Request is set on LineLoadMore.
	Request LoadMoreRequest
	// Text is set on status lines.
	Text string
}

// Controller owns one screen's fetch state, forest and fold state.
type Controller struct {
	scope    Scope
	policy   Policy
	store    *Store
	forest   []*Node
	expanded map[string]bool
	status   Status
	err      error
	seq      Ticket
	closed   bool
	log      zerolog.Logger
}

// NewController creates a controller for scope rendered under policy.
func NewController(scope Scope, policy Policy, log zerolog.Logger) *Controller {
	return &Controller{
		scope:    scope,
		policy:   policy,
		expanded: make(map[string]bool),
		log:      log.With().Str("scope", scope.Kind.String()).Str("id", scope.ID).Logger(),
	}
}

func (c *Controller) Scope() Scope            { return c.scope }
func (c *Controller) Policy() Policy          { return c.policy }
func (c *Controller) Status() Status          { return c.status }
func (c *Controller) Err() error              { return c.err }
func (c *Controller) Forest() []*Node         { return c.forest }
func (c *Controller) Closed() bool            { return c.closed }
func (c *Controller) Expanded(id string) bool { return c.expanded[id] }

// Begin starts a new primary fetch and supersedes any in flight. The
// current forest stays visible until the new result lands.
func (c *Controller) Begin() Ticket {
	c.seq++
	c.status = StatusLoading
	c.err = nil
	return c.seq
}

// Fetch runs the read operation for this screen's scope. It touches no
// controller state and is safe to call off the UI loop.
func (c *Controller) Fetch(ctx context.Context, src api.CommentSource) ([]api.Comment, error) {
	return FetchScope(ctx, src, c.scope)
}

// FetchScope dispatches the read operation matching scope.
func FetchScope(ctx context.Context, src api.CommentSource, scope Scope) ([]api.Comment, error) {
	switch scope.Kind {
	case KindPost:
		return src.ByPost(ctx, scope.ID)
	case KindReplies:
		return src.RepliesOf(ctx, scope.ID)
	case KindDeepReplies:
		return src.DeepRepliesOf(ctx, scope.ID)
	default:
		return nil, fmt.Errorf("unknown scope kind %d", scope.Kind)
	}
}

// Resolve applies the result of ticket t. Results for superseded tickets,
// or arriving after Close, are dropped and Resolve returns false.
func (c *Controller) Resolve(t Ticket, records []api.Comment, err error) bool {
	if c.closed {
		c.log.Debug().Uint64("ticket", uint64(t)).Msg("dropping result for closed screen")
		return false
	}
	if t != c.seq {
		c.log.Debug().Uint64("ticket", uint64(t)).Uint64("current", uint64(c.seq)).Msg("dropping stale result")
		return false
	}

	if err != nil {
		c.log.Warn().Err(err).Msg("fetch failed")
		c.status = StatusFailed
		c.err = err
		return true
	}

	c.store = NewStore(records)
	c.forest = c.store.Forest()
	c.expanded = make(map[string]bool)
	c.err = nil
	if len(c.forest) == 0 {
		c.status = StatusEmpty
	} else {
		c.status = StatusReady
	}
	return true
}

// Close marks the screen as gone. Later results are discarded.
func (c *Controller) Close() {
	c.closed = true
}

// Expand reveals every fetched reply of id. It never fetches.
func (c *Controller) Expand(id string) {
	c.expanded[id] = true
}

// Toggle flips the fold state of id.
func (c *Controller) Toggle(id string) {
	c.expanded[id] = !c.expanded[id]
}

// LoadMore resolves a "view more replies" activation on nodeID at depth to
// the navigation it triggers. The current forest is left untouched.
func (c *Controller) LoadMore(nodeID string, depth int) (LoadMoreRequest, bool) {
	if _, ok := c.store.Lookup(nodeID); !ok {
		return LoadMoreRequest{}, false
	}
	abs := c.scope.BaseDepth + depth
	return LoadMoreRequest{
		Tier:      c.policy.TierAt(abs),
		CommentID: nodeID,
		AbsDepth:  abs,
	}, true
}

// Render walks the forest applying the depth policy.
func (c *Controller) Render() []Line {
	var out []Line
	switch c.status {
	case StatusIdle, StatusLoading:
		if len(c.forest) == 0 {
			return []Line{{Kind: LineLoading, Text: c.loadingText()}}
		}
		out = append(out, Line{Kind: LineLoading, Text: "Refreshing..."})
	case StatusFailed:
		out = append(out, Line{Kind: LineError, Text: c.errorText()})
	case StatusEmpty:
		return []Line{{Kind: LineEmpty, Text: c.emptyText()}}
	}

	for _, n := range c.forest {
		out = c.render(out, n, 0)
	}
	return out
}

func (c *Controller) render(out []Line, n *Node, depth int) []Line {
	out = append(out, Line{Kind: LineComment, Node: n, Depth: depth})

	d := c.policy.Decide(n, depth, c.scope.BaseDepth+depth, c.expanded[n.ID])
	if d.Inline {
		for _, r := range d.Visible {
			out = c.render(out, r, depth+1)
		}
		if d.Hidden > 0 {
			out = append(out, Line{Kind: LineShowMore, Node: n, Depth: depth + 1, Hidden: d.Hidden})
		}
	}
	if d.Escalate != TierNone {
		req, _ := c.LoadMore(n.ID, depth)
		out = append(out, Line{Kind: LineLoadMore, Node: n, Depth: depth + 1, Request: req})
	}
	return out
}

func (c *Controller) loadingText() string {
	if c.scope.Kind == KindPost {
		return "Loading comments..."
	}
	return "Loading replies..."
}

func (c *Controller) emptyText() string {
	if c.scope.Kind == KindPost {
		return "No comments yet."
	}
	return "No replies found."
}

func (c *Controller) errorText() string {
	what := "comments"
	if c.scope.Kind != KindPost {
		what = "replies"
	}
	return fmt.Sprintf("Error loading %s: %v", what, c.err)
}
