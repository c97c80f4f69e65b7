// Package store is a local SQLite comment backend. It implements
// api.CommentSource and api.CommentWriter so threads can be browsed without
// the remote API.
package store

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fragmede/threadline/internal/api"

	_ "modernc.org/sqlite"
)

// defaultReplyDepth is how many levels below a comment RepliesOf returns:
// enough for a reply screen to render to its extended ceiling and still see
// whether the last level has children.
const defaultReplyDepth = 8

// deepReplyDepth bounds the recursive descendant query.
const deepReplyDepth = 1 << 16

// DB wraps the SQLite database holding posts and comments.
type DB struct {
	db         *sql.DB
	author     api.UserDetails
	replyDepth int
	log        zerolog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithAuthor sets the user details stamped on comments created through
// CreateComment.
func WithAuthor(u api.UserDetails) Option {
	return func(d *DB) { d.author = u }
}

// WithReplyDepth sets how many levels RepliesOf returns.
func WithReplyDepth(n int) Option {
	return func(d *DB) { d.replyDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *DB) { d.log = l }
}

// Open creates or opens the SQLite database and runs migrations.
func Open(path string, opts ...Option) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	d := &DB{
		db:         db,
		author:     api.UserDetails{DisplayName: "You", UserHandle: "you"},
		replyDepth: defaultReplyDepth,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT,
			community_id TEXT,
			community_name TEXT,
			display_name TEXT,
			user_handle TEXT,
			avatar TEXT,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			reply_to TEXT REFERENCES comments(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			display_name TEXT,
			user_handle TEXT,
			avatar TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_reply_to ON comments(reply_to)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStrPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullStr(*s)
}
