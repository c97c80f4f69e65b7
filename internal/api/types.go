package api

import "context"

// UserDetails is the display metadata attached to comments and posts.
type UserDetails struct {
	DisplayName string  `json:"display_name"`
	Avatar      *string `json:"avatar"`
	UserHandle  string  `json:"user_handle"`
}

// Comment is one flat comment record as delivered by a fetch.
type Comment struct {
	ID          string      `json:"id"`
	PostID      string      `json:"post_id"`
	UserDetails UserDetails `json:"user_details"`
	Content     string      `json:"content"`
	CreatedAt   int64       `json:"created_at"` // epoch millis
	ReplyTo     *string     `json:"reply_to,omitempty"`

	// ChildCount is the server-reported number of direct replies. It is
	// advisory: replies are paginated separately, so it may exceed what a
	// given fetch actually contains.
	ChildCount *int `json:"child_count,omitempty"`
}

// Parent returns the id this comment replies to, or "" for a top-level comment.
func (c Comment) Parent() string {
	if c.ReplyTo == nil {
		return ""
	}
	return *c.ReplyTo
}

// Children returns the advisory child count and whether the server sent one.
func (c Comment) Children() (int, bool) {
	if c.ChildCount == nil {
		return 0, false
	}
	return *c.ChildCount, true
}

// Post is a feed post. Only the header fields the thread screen shows are kept.
type Post struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Content          string           `json:"content"`
	CreatedAt        int64            `json:"created_at"`
	CommunityDetails CommunityDetails `json:"community_details"`
	UserDetails      UserDetails      `json:"user_details"`
	CommentsCount    int              `json:"comments_count"`
}

// CommunityDetails names the community a post belongs to.
type CommunityDetails struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateCommentPayload is the body for creating a comment or a reply.
type CreateCommentPayload struct {
	PostID  string `json:"post_id"`
	Content string `json:"content"`
	ReplyTo string `json:"reply_to"`
}

// CommentSource fetches flat comment lists. All three operations return a
// list scoped to their argument and are treated identically by the tree
// builder.
type CommentSource interface {
	ByPost(ctx context.Context, postID string) ([]Comment, error)
	RepliesOf(ctx context.Context, commentID string) ([]Comment, error)
	DeepRepliesOf(ctx context.Context, commentID string) ([]Comment, error)
}

// CommentWriter submits new comments and replies.
type CommentWriter interface {
	CreateComment(ctx context.Context, p CreateCommentPayload) (*Comment, error)
}

// PostSource is implemented by backends that can describe a post for the
// thread screen header.
type PostSource interface {
	Post(ctx context.Context, id string) (*Post, error)
}

// Backend is a source that can also write.
type Backend interface {
	CommentSource
	CommentWriter
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
