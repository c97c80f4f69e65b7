package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fragmede/threadline/internal/api"
)

var (
	ErrUnknownPost   = errors.New("unknown post")
	ErrUnknownParent = errors.New("unknown parent comment")
	ErrEmptyContent  = errors.New("comment content is empty")
)

const commentColumns = `c.id, c.post_id, c.reply_to, c.content, c.display_name, c.user_handle, c.avatar, c.created_at,
	(SELECT COUNT(*) FROM comments k WHERE k.reply_to = c.id) AS child_count`

// ByPost returns every comment on postID, oldest first.
func (d *DB) ByPost(ctx context.Context, postID string) ([]api.Comment, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+commentColumns+`
		FROM comments c WHERE c.post_id = ? ORDER BY c.created_at, c.rowid`, postID)
	if err != nil {
		return nil, fmt.Errorf("querying comments for post %s: %w", postID, err)
	}
	return scanComments(rows)
}

// RepliesOf returns the descendants of commentID down to the configured
// reply depth, oldest first. Direct replies reference commentID, which is not
// in the result, so they surface as roots.
func (d *DB) RepliesOf(ctx context.Context, commentID string) ([]api.Comment, error) {
	return d.descendants(ctx, commentID, d.replyDepth)
}

// DeepRepliesOf returns every descendant of commentID, oldest first.
func (d *DB) DeepRepliesOf(ctx context.Context, commentID string) ([]api.Comment, error) {
	return d.descendants(ctx, commentID, deepReplyDepth)
}

func (d *DB) descendants(ctx context.Context, commentID string, levels int) ([]api.Comment, error) {
	rows, err := d.db.QueryContext(ctx, `WITH RECURSIVE sub(id, lvl) AS (
			SELECT id, 1 FROM comments WHERE reply_to = ?
			UNION
			SELECT k.id, sub.lvl + 1 FROM comments k JOIN sub ON k.reply_to = sub.id WHERE sub.lvl < ?
		)
		SELECT `+commentColumns+`
		FROM comments c JOIN sub ON sub.id = c.id
		ORDER BY c.created_at, c.rowid`, commentID, levels)
	if err != nil {
		return nil, fmt.Errorf("querying replies of %s: %w", commentID, err)
	}
	return scanComments(rows)
}

func scanComments(rows *sql.Rows) ([]api.Comment, error) {
	defer rows.Close()

	result := []api.Comment{}
	for rows.Next() {
		var c api.Comment
		var replyTo, displayName, handle, avatar sql.NullString
		var childCount int
		if err := rows.Scan(&c.ID, &c.PostID, &replyTo, &c.Content, &displayName, &handle, &avatar,
			&c.CreatedAt, &childCount); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		if replyTo.Valid {
			c.ReplyTo = api.StringPtr(replyTo.String)
		}
		if avatar.Valid {
			c.UserDetails.Avatar = api.StringPtr(avatar.String)
		}
		c.UserDetails.DisplayName = displayName.String
		c.UserDetails.UserHandle = handle.String
		c.ChildCount = api.IntPtr(childCount)
		result = append(result, c)
	}
	return result, rows.Err()
}

// CreateComment stores a new comment by the configured author.
func (d *DB) CreateComment(ctx context.Context, p api.CreateCommentPayload) (*api.Comment, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, ErrEmptyContent
	}

	var exists int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE id = ?`, p.PostID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking post: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPost, p.PostID)
	}

	if p.ReplyTo != "" {
		var parentPost string
		err := d.db.QueryRowContext(ctx, `SELECT post_id FROM comments WHERE id = ?`, p.ReplyTo).Scan(&parentPost)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && parentPost != p.PostID) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, p.ReplyTo)
		}
		if err != nil {
			return nil, fmt.Errorf("checking parent: %w", err)
		}
	}

	c := api.Comment{
		ID:          uuid.NewString(),
		PostID:      p.PostID,
		ReplyTo:     api.StringPtr(p.ReplyTo),
		Content:     p.Content,
		CreatedAt:   time.Now().UnixMilli(),
		UserDetails: d.author,
		ChildCount:  api.IntPtr(0),
	}
	if err := d.putComment(ctx, c); err != nil {
		return nil, err
	}
	d.log.Debug().Str("id", c.ID).Str("post", c.PostID).Str("reply_to", p.ReplyTo).Msg("comment created")
	return &c, nil
}

// putComment inserts or replaces a comment row as-is.
func (d *DB) putComment(ctx context.Context, c api.Comment) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO comments
		(id, post_id, reply_to, content, display_name, user_handle, avatar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, nullStrPtr(c.ReplyTo), c.Content,
		nullStr(c.UserDetails.DisplayName), nullStr(c.UserDetails.UserHandle),
		nullStrPtr(c.UserDetails.Avatar), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing comment %s: %w", c.ID, err)
	}
	return nil
}
