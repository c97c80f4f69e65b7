package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fragmede/threadline/internal/api"
)

// Post returns a stored post.
func (d *DB) Post(ctx context.Context, id string) (*api.Post, error) {
	row := d.db.QueryRowContext(ctx, `SELECT p.id, p.title, p.content, p.community_id, p.community_name,
		p.display_name, p.user_handle, p.avatar, p.created_at,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)
		FROM posts p WHERE p.id = ?`, id)

	var p api.Post
	var content, communityID, communityName, displayName, handle, avatar sql.NullString
	err := row.Scan(&p.ID, &p.Title, &content, &communityID, &communityName,
		&displayName, &handle, &avatar, &p.CreatedAt, &p.CommentsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPost, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading post %s: %w", id, err)
	}

	p.Content = content.String
	p.CommunityDetails = api.CommunityDetails{ID: communityID.String, Name: communityName.String}
	p.UserDetails = api.UserDetails{DisplayName: displayName.String, UserHandle: handle.String}
	if avatar.Valid {
		p.UserDetails.Avatar = api.StringPtr(avatar.String)
	}
	return &p, nil
}

// PutPost stores a post.
func (d *DB) PutPost(ctx context.Context, p api.Post) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO posts
		(id, title, content, community_id, community_name, display_name, user_handle, avatar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, nullStr(p.Content), nullStr(p.CommunityDetails.ID), nullStr(p.CommunityDetails.Name),
		nullStr(p.UserDetails.DisplayName), nullStr(p.UserDetails.UserHandle), nullStrPtr(p.UserDetails.Avatar),
		p.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing post %s: %w", p.ID, err)
	}
	return nil
}

// Posts returns all posts, newest first.
func (d *DB) Posts(ctx context.Context) ([]api.Post, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM posts ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	posts := make([]api.Post, 0, len(ids))
	for _, id := range ids {
		p, err := d.Post(ctx, id)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, nil
}
