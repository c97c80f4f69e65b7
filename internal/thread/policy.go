package thread

// Tier identifies which fetch a "view more replies" escalation triggers.
type Tier int

const (
	TierNone Tier = iota
	TierReplies
	TierDeepReplies
)

func (t Tier) String() string {
	switch t {
	case TierReplies:
		return "replies"
	case TierDeepReplies:
		return "deep-replies"
	default:
		return "none"
	}
}

const (
	DefaultInlineDepth   = 3
	DefaultExtendedDepth = 7
	DefaultFoldLimit     = 3
)

// Policy decides how much of a subtree is rendered inline. Ceiling is the
// first view depth that is no longer rendered inline and FoldLimit is how
// many replies show before a "show N more" affordance. DeepDepth is the
// absolute thread depth from which escalations fetch deep replies instead
// of direct replies.
type Policy struct {
	Ceiling   int
	FoldLimit int
	DeepDepth int
}

// DefaultPolicy is used for a post's comment screen.
func DefaultPolicy() Policy {
	return Policy{Ceiling: DefaultInlineDepth, FoldLimit: DefaultFoldLimit, DeepDepth: DefaultExtendedDepth}
}

// ExtendedPolicy is used for reply and deep-reply screens.
func ExtendedPolicy() Policy {
	return Policy{Ceiling: DefaultExtendedDepth, FoldLimit: DefaultFoldLimit, DeepDepth: DefaultExtendedDepth}
}

// TierAt returns the fetch an escalation on a node at absolute depth abs
// triggers.
func (p Policy) TierAt(abs int) Tier {
	if abs >= p.DeepDepth {
		return TierDeepReplies
	}
	return TierReplies
}

// Decision is the rendering action for one node.
type Decision struct {
	// Inline reports whether Visible replies render under the node.
	Inline  bool
	Visible []*Node
	// Hidden is the count of already-fetched replies behind "show N more".
	Hidden int
	// Escalate is the fetch offered as "view more replies", or TierNone.
	Escalate Tier
}

// Decide returns the action for node n at depth (view root = 0) and
// absolute thread depth abs. expanded is the node's local "show all" state.
func (p Policy) Decide(n *Node, depth, abs int, expanded bool) Decision {
	fetched := len(n.Replies)
	count, known := n.Children()

	if depth < p.Ceiling {
		d := Decision{Inline: true, Visible: n.Replies}
		if !expanded && p.FoldLimit > 0 && fetched > p.FoldLimit {
			d.Visible = n.Replies[:p.FoldLimit]
			d.Hidden = fetched - p.FoldLimit
		}
		// Replies the server reports but this fetch did not include.
		if fetched == 0 && known && count > 0 {
			d.Escalate = p.TierAt(abs)
		}
		return d
	}

	// child_count is advisory: fetched replies count even when it says 0.
	if count > 0 || fetched > 0 {
		return Decision{Escalate: p.TierAt(abs)}
	}
	return Decision{}
}

// Limits are the configurable depth and fold values.
type Limits struct {
	InlineDepth   int
	ExtendedDepth int
	FoldLimit     int
}

// DefaultLimits returns the stock ceilings: 3 inline, 7 extended, fold 3.
func DefaultLimits() Limits {
	return Limits{InlineDepth: DefaultInlineDepth, ExtendedDepth: DefaultExtendedDepth, FoldLimit: DefaultFoldLimit}
}

// PolicyFor returns the policy for a screen of kind. Post screens use the
// inline ceiling and reply screens the extended one. On both, nodes at or
// past the extended depth in the whole thread escalate to deep replies.
func PolicyFor(kind Kind, l Limits) Policy {
	ceiling := l.ExtendedDepth
	if kind == KindPost {
		ceiling = l.InlineDepth
	}
	return Policy{Ceiling: ceiling, FoldLimit: l.FoldLimit, DeepDepth: l.ExtendedDepth}
}
