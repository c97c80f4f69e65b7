// Package dump renders a thread as a text tree, following "view more
// replies" escalations the way the thread screens would.
package dump

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xlab/treeprint"
	"golang.org/x/sync/errgroup"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/render"
	"github.com/fragmede/threadline/internal/thread"
)

// Options controls a dump.
type Options struct {
	Limits thread.Limits
	// Follow is how many escalation levels are fetched below the root scope.
	Follow int
	// Parallel caps concurrent fetches per level.
	Parallel int
	// ExpandAll shows every fetched reply instead of folding.
	ExpandAll bool
	// Preview is the rune limit for comment text.
	Preview int
}

// DefaultOptions follows two levels with four fetches in flight.
func DefaultOptions() Options {
	return Options{Limits: thread.DefaultLimits(), Follow: 2, Parallel: 4, Preview: 60}
}

// Section is one screen's worth of rendered lines plus the sections its
// escalations opened, keyed by comment id.
type Section struct {
	Scope thread.Scope
	Lines []thread.Line
	More  map[string]*Section
}

// Load fetches scope and, up to opts.Follow levels deep, every escalation
// it offers. A failed root fetch is returned as an error; failures below
// the root show up as error lines in their section.
func Load(ctx context.Context, src api.CommentSource, scope thread.Scope, opts Options, log zerolog.Logger) (*Section, error) {
	records, err := thread.FetchScope(ctx, src, scope)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", scope.Kind, scope.ID, err)
	}
	l := loader{src: src, opts: opts, log: log}
	return l.section(ctx, scope, records, nil, 0)
}

type loader struct {
	src  api.CommentSource
	opts Options
	log  zerolog.Logger
}

func (l loader) section(ctx context.Context, scope thread.Scope, records []api.Comment, fetchErr error, level int) (*Section, error) {
	ctrl := thread.NewController(scope, thread.PolicyFor(scope.Kind, l.opts.Limits), l.log)
	ctrl.Resolve(ctrl.Begin(), records, fetchErr)
	if l.opts.ExpandAll {
		thread.Walk(ctrl.Forest(), func(n *thread.Node, _ int) bool {
			ctrl.Expand(n.ID)
			return true
		})
	}

	sec := &Section{Scope: scope, Lines: ctrl.Render(), More: make(map[string]*Section)}
	if level >= l.opts.Follow {
		return sec, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if l.opts.Parallel > 0 {
		g.SetLimit(l.opts.Parallel)
	}
	for _, line := range sec.Lines {
		if line.Kind != thread.LineLoadMore {
			continue
		}
		req := line.Request
		g.Go(func() error {
			sub := req.Scope()
			l.log.Debug().Str("kind", sub.Kind.String()).Str("id", sub.ID).Int("level", level+1).Msg("following escalation")
			records, err := thread.FetchScope(gctx, l.src, sub)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			child, err := l.section(gctx, sub, records, err, level+1)
			if err != nil {
				return err
			}
			mu.Lock()
			sec.More[req.CommentID] = child
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sec, nil
}

// Tree converts sec into a printable tree rooted at title.
func Tree(title string, sec *Section, preview int) treeprint.Tree {
	root := treeprint.NewWithRoot(title)
	addLines(root, sec, preview)
	return root
}

// Print writes the tree for sec to w.
func Print(w io.Writer, title string, sec *Section, preview int) error {
	_, err := io.WriteString(w, Tree(title, sec, preview).String())
	return err
}

func addLines(root treeprint.Tree, sec *Section, preview int) {
	stack := []treeprint.Tree{root}
	for _, l := range sec.Lines {
		parent := stack[min(l.Depth, len(stack)-1)]
		switch l.Kind {
		case thread.LineComment:
			b := parent.AddBranch(label(l.Node, preview))
			stack = append(stack[:l.Depth+1], b)
		case thread.LineShowMore:
			parent.AddNode(fmt.Sprintf("… %d more", l.Hidden))
		case thread.LineLoadMore:
			sub, ok := sec.More[l.Request.CommentID]
			if !ok {
				parent.AddNode("→ view more replies")
				continue
			}
			b := parent.AddMetaBranch(l.Request.Tier.String(), fmt.Sprintf("depth %d", sub.Scope.BaseDepth))
			addLines(b, sub, preview)
		default:
			root.AddNode(l.Text)
		}
	}
}

func label(n *thread.Node, preview int) string {
	who := n.UserDetails.DisplayName
	if who == "" {
		who = "@" + n.UserDetails.UserHandle
	}
	return fmt.Sprintf("%s: %s (%s)", who, render.Preview(n.Content, preview), render.TimeAgo(n.CreatedAt))
}
