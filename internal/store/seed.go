package store

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/fragmede/threadline/internal/api"
)

// SeedOptions controls the fake data Seed generates.
type SeedOptions struct {
	Posts       int   // number of posts
	TopLevel    int   // top-level comments per post
	Width       int   // maximum replies per comment
	Depth       int   // maximum reply depth; each post gets one chain this deep
	MaxComments int   // cap on comments per post
	Seed        int64 // 0 picks a random seed
}

// DefaultSeedOptions returns options that produce threads deep enough to
// exercise both escalation tiers.
func DefaultSeedOptions() SeedOptions {
	return SeedOptions{Posts: 3, TopLevel: 6, Width: 5, Depth: 12, MaxComments: 400}
}

// Seed fills the database with fake posts and comment threads and returns
// the created posts.
func (d *DB) Seed(ctx context.Context, opts SeedOptions) ([]api.Post, error) {
	f := gofakeit.New(opts.Seed)
	base := time.Now().Add(-48 * time.Hour)

	var posts []api.Post
	for i := 0; i < opts.Posts; i++ {
		p := api.Post{
			ID:        f.UUID(),
			Title:     f.Sentence(6),
			Content:   "<p>" + f.Paragraph(2, 3, 12, "</p><p>") + "</p>",
			CreatedAt: base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			CommunityDetails: api.CommunityDetails{
				ID:   f.UUID(),
				Name: f.Hobby(),
			},
			UserDetails: fakeUser(f),
		}
		if err := d.PutPost(ctx, p); err != nil {
			return nil, err
		}

		s := seeder{db: d, f: f, opts: opts, post: p.ID, clock: time.UnixMilli(p.CreatedAt)}
		if err := s.run(ctx); err != nil {
			return nil, fmt.Errorf("seeding post %s: %w", p.ID, err)
		}
		p.CommentsCount = s.count
		posts = append(posts, p)
		d.log.Info().Str("post", p.ID).Int("comments", s.count).Msg("seeded post")
	}
	return posts, nil
}

type seeder struct {
	db    *DB
	f     *gofakeit.Faker
	opts  SeedOptions
	post  string
	clock time.Time
	count int
}

func (s *seeder) run(ctx context.Context) error {
	// One guaranteed chain to full depth, then random bushy threads.
	parent := ""
	for lvl := 0; lvl <= s.opts.Depth && s.count < s.opts.MaxComments; lvl++ {
		id, err := s.add(ctx, parent)
		if err != nil {
			return err
		}
		parent = id
	}

	for i := 1; i < s.opts.TopLevel && s.count < s.opts.MaxComments; i++ {
		id, err := s.add(ctx, "")
		if err != nil {
			return err
		}
		if err := s.grow(ctx, id, 1); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) grow(ctx context.Context, parent string, depth int) error {
	if depth > s.opts.Depth {
		return nil
	}
	// Narrow threads as they deepen so the total stays bounded.
	maxKids := s.opts.Width - depth/2
	if maxKids < 1 {
		maxKids = 1
	}
	kids := s.f.IntRange(0, maxKids)
	for i := 0; i < kids && s.count < s.opts.MaxComments; i++ {
		id, err := s.add(ctx, parent)
		if err != nil {
			return err
		}
		if err := s.grow(ctx, id, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) add(ctx context.Context, parent string) (string, error) {
	s.clock = s.clock.Add(time.Duration(s.f.IntRange(1, 600)) * time.Second)
	c := api.Comment{
		ID:          s.f.UUID(),
		PostID:      s.post,
		ReplyTo:     api.StringPtr(parent),
		Content:     s.f.Sentence(s.f.IntRange(4, 24)),
		CreatedAt:   s.clock.UnixMilli(),
		UserDetails: fakeUser(s.f),
	}
	if err := s.db.putComment(ctx, c); err != nil {
		return "", err
	}
	s.count++
	return c.ID, nil
}

func fakeUser(f *gofakeit.Faker) api.UserDetails {
	return api.UserDetails{
		DisplayName: f.Name(),
		UserHandle:  f.Username(),
	}
}
