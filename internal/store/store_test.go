package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/thread"
)

func openTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// chain stores post p1 and comments c0 <- c1 <- ... <- c(n-1), plus a
// sibling top-level comment "s".
func chain(t *testing.T, db *DB, n int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.PutPost(ctx, api.Post{ID: "p1", Title: "hello", CreatedAt: 1}))
	for i := 0; i < n; i++ {
		parent := ""
		if i > 0 {
			parent = fmt.Sprintf("c%d", i-1)
		}
		require.NoError(t, db.putComment(ctx, api.Comment{
			ID: fmt.Sprintf("c%d", i), PostID: "p1", ReplyTo: api.StringPtr(parent),
			Content: "body", CreatedAt: int64(10 + i),
		}))
	}
	require.NoError(t, db.putComment(ctx, api.Comment{ID: "s", PostID: "p1", Content: "sibling", CreatedAt: 1000}))
}

func commentIDs(cs []api.Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestByPost(t *testing.T) {
	db := openTestDB(t)
	chain(t, db, 3)

	got, err := db.ByPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1", "c2", "s"}, commentIDs(got))

	assert.Nil(t, got[0].ReplyTo)
	assert.Equal(t, "c0", got[1].Parent())
	n, ok := got[0].Children()
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	n, _ = got[2].Children()
	assert.Equal(t, 0, n)
}

func TestByPost_UnknownPostIsEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.ByPost(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepliesOf_LimitedDepth(t *testing.T) {
	db := openTestDB(t, WithReplyDepth(2))
	chain(t, db, 6)

	got, err := db.RepliesOf(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, commentIDs(got))

	// The direct reply's parent is not in the list, so it is promoted to root.
	forest := thread.Build(got)
	require.Len(t, forest, 1)
	assert.Equal(t, "c2", forest[0].ID)
	require.Len(t, forest[0].Replies, 1)
	assert.Equal(t, "c3", forest[0].Replies[0].ID)

	// c3 still reports its unfetched child.
	n, _ := forest[0].Replies[0].Children()
	assert.Equal(t, 1, n)
}

func TestDeepRepliesOf(t *testing.T) {
	db := openTestDB(t, WithReplyDepth(1))
	chain(t, db, 6)

	got, err := db.DeepRepliesOf(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3", "c4", "c5"}, commentIDs(got))

	got, err = db.DeepRepliesOf(context.Background(), "c5")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateComment(t *testing.T) {
	author := api.UserDetails{DisplayName: "Tester", UserHandle: "tester"}
	db := openTestDB(t, WithAuthor(author))
	chain(t, db, 2)
	ctx := context.Background()

	c, err := db.CreateComment(ctx, api.CreateCommentPayload{PostID: "p1", Content: "new reply", ReplyTo: "c1"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "c1", c.Parent())
	assert.Equal(t, author, c.UserDetails)
	assert.Positive(t, c.CreatedAt)

	got, err := db.ByPost(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, commentIDs(got), c.ID)

	top, err := db.CreateComment(ctx, api.CreateCommentPayload{PostID: "p1", Content: "top level"})
	require.NoError(t, err)
	assert.Nil(t, top.ReplyTo)
}

func TestCreateComment_Errors(t *testing.T) {
	db := openTestDB(t)
	chain(t, db, 1)
	require.NoError(t, db.PutPost(context.Background(), api.Post{ID: "p2", Title: "other", CreatedAt: 2}))

	tests := []struct {
		name    string
		payload api.CreateCommentPayload
		want    error
	}{
		{"blank", api.CreateCommentPayload{PostID: "p1", Content: "   "}, ErrEmptyContent},
		{"unknown post", api.CreateCommentPayload{PostID: "nope", Content: "x"}, ErrUnknownPost},
		{"unknown parent", api.CreateCommentPayload{PostID: "p1", Content: "x", ReplyTo: "ghost"}, ErrUnknownParent},
		{"parent on other post", api.CreateCommentPayload{PostID: "p2", Content: "x", ReplyTo: "c0"}, ErrUnknownParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.CreateComment(context.Background(), tt.payload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPost(t *testing.T) {
	db := openTestDB(t)
	chain(t, db, 2)

	p, err := db.Post(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Title)
	assert.Equal(t, 3, p.CommentsCount)

	_, err = db.Post(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownPost)
}

func TestSeed(t *testing.T) {
	db := openTestDB(t)
	opts := SeedOptions{Posts: 2, TopLevel: 3, Width: 3, Depth: 9, MaxComments: 60, Seed: 42}

	posts, err := db.Seed(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	listed, err := db.Posts(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	for _, p := range posts {
		comments, err := db.ByPost(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Len(t, comments, p.CommentsCount)
		assert.LessOrEqual(t, len(comments), opts.MaxComments)

		maxDepth := 0
		thread.Walk(thread.Build(comments), func(_ *thread.Node, depth int) bool {
			if depth > maxDepth {
				maxDepth = depth
			}
			return true
		})
		assert.Equal(t, opts.Depth, maxDepth, "every post carries one full-depth chain")
	}
}
