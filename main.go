package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/fragmede/threadline/internal/api"
	"github.com/fragmede/threadline/internal/config"
	"github.com/fragmede/threadline/internal/dump"
	"github.com/fragmede/threadline/internal/logging"
	"github.com/fragmede/threadline/internal/store"
	"github.com/fragmede/threadline/internal/thread"
	"github.com/fragmede/threadline/internal/ui"
)

// Populated at build-time via -ldflags.
var version = "dev"

func buildVersion() string {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				return mv
			}
		}
	}
	return version
}

type flags struct {
	ConfigPath string
	DataDir    string
	LogLevel   string
	LogFile    string
	DBPath     string
	APIURL     string
	Token      string
	DataSource string
}

func main() {
	var (
		cfg       *config.Config
		logCloser func()
		f         = &flags{}
	)

	app := &cli.Command{
		Name:      "threadline",
		Usage:     "Browse threaded post comments in the terminal",
		UsageText: "threadline [global options] [command] [command options]",
		Version:   buildVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("THREADLINE_CONFIG"),
				Value:       config.DefaultConfigPath(),
				Destination: &f.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("THREADLINE_DATA_DIR"),
				Destination: &f.DataDir,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("THREADLINE_LOG_LEVEL"),
				Destination: &f.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/debug.log)",
				Sources:     cli.EnvVars("THREADLINE_LOG_FILE"),
				Destination: &f.LogFile,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "use a local SQLite comment database instead of the API",
				Sources:     cli.EnvVars("THREADLINE_DB"),
				Destination: &f.DBPath,
			},
			&cli.StringFlag{
				Name:        "api-url",
				Usage:       "comment API base URL",
				Sources:     cli.EnvVars("THREADLINE_API_URL"),
				Destination: &f.APIURL,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "API bearer token",
				Sources:     cli.EnvVars("THREADLINE_TOKEN"),
				Destination: &f.Token,
			},
			&cli.StringFlag{
				Name:        "data-source",
				Usage:       "X-Data-Source header sent to the API",
				Sources:     cli.EnvVars("THREADLINE_DATA_SOURCE"),
				Destination: &f.DataSource,
			},
			&cli.StringFlag{
				Name:  "post",
				Usage: "id of the post whose comments to open",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			loaded, err := config.Load(f.ConfigPath, f.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			applyFlags(cfg, c, f)

			logger, closer, err := logging.New(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer
			log.Debug().Str("version", buildVersion()).Msg("starting")
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runTUI(ctx, cfg, c.String("post"))
		},
		Commands: []*cli.Command{
			dumpCommand(&cfg),
			seedCommand(&cfg),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides config values with flags set on the command line or
// through the environment.
func applyFlags(cfg *config.Config, c *cli.Command, f *flags) {
	if c.IsSet("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if c.IsSet("log-file") {
		cfg.Log.File = f.LogFile
	}
	if c.IsSet("db") {
		cfg.DBPath = f.DBPath
	}
	if c.IsSet("api-url") {
		cfg.API.BaseURL = f.APIURL
	}
	if c.IsSet("token") {
		cfg.API.Token = f.Token
	}
	if c.IsSet("data-source") {
		cfg.API.DataSource = f.DataSource
	}
}

// openBackend picks the local database when one is configured and the
// remote API otherwise.
func openBackend(cfg *config.Config) (ui.Backend, func(), error) {
	if err := cfg.RequireBackend(); err != nil {
		return ui.Backend{}, nil, err
	}

	if cfg.DBPath != "" {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return ui.Backend{}, nil, err
		}
		b := ui.Backend{Name: "local", Source: db, Writer: db, Posts: db}
		return b, func() { _ = db.Close() }, nil
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithToken(cfg.API.Token),
		api.WithDataSource(cfg.API.DataSource),
		api.WithRetryMax(cfg.API.RetryMax),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logging.Component("api")),
	)
	return ui.Backend{Name: "api", Source: client, Writer: client}, func() {}, nil
}

func openStore(path string) (*store.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	db, err := store.Open(path, store.WithLogger(logging.Component("store")))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// resolvePost returns postID, or the newest post when the backend can
// list posts and none was given.
func resolvePost(ctx context.Context, b ui.Backend, postID string) (string, error) {
	if postID != "" {
		return postID, nil
	}
	if db, ok := b.Posts.(*store.DB); ok {
		posts, err := db.Posts(ctx)
		if err != nil {
			return "", err
		}
		if len(posts) > 0 {
			return posts[0].ID, nil
		}
		return "", errors.New("the database has no posts; run 'threadline seed' first")
	}
	return "", errors.New("--post is required")
}

func runTUI(ctx context.Context, cfg *config.Config, postID string) error {
	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	postID, err = resolvePost(ctx, backend, postID)
	if err != nil {
		return err
	}

	app := ui.NewApp(*cfg, backend, postID, logging.Component("ui"))
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

func dumpCommand(cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "print a thread as a tree, following 'view more replies' links",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "post", Usage: "post id"},
			&cli.StringFlag{Name: "comment", Usage: "start at the replies of this comment instead of the post"},
			&cli.BoolFlag{Name: "deep", Usage: "with --comment, fetch deep replies"},
			&cli.IntFlag{Name: "follow", Usage: "escalation levels to follow", Value: dump.DefaultOptions().Follow},
			&cli.IntFlag{Name: "parallel", Usage: "concurrent fetches per level", Value: dump.DefaultOptions().Parallel},
			&cli.BoolFlag{Name: "all", Usage: "show every fetched reply instead of folding"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			backend, closeBackend, err := openBackend(*cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			scope, title, err := dumpScope(ctx, backend, c)
			if err != nil {
				return err
			}

			opts := dump.DefaultOptions()
			opts.Limits = (*cfg).Thread.Limits()
			opts.Follow = c.Int("follow")
			opts.Parallel = c.Int("parallel")
			opts.ExpandAll = c.Bool("all")

			sec, err := dump.Load(ctx, backend.Source, scope, opts, logging.Component("dump"))
			if err != nil {
				return err
			}
			return dump.Print(os.Stdout, title, sec, opts.Preview)
		},
	}
}

func dumpScope(ctx context.Context, b ui.Backend, c *cli.Command) (thread.Scope, string, error) {
	if id := c.String("comment"); id != "" {
		scope := thread.Scope{Kind: thread.KindReplies, ID: id}
		if c.Bool("deep") {
			scope.Kind = thread.KindDeepReplies
		}
		return scope, fmt.Sprintf("%s of %s", scope.Kind, id), nil
	}

	postID, err := resolvePost(ctx, b, c.String("post"))
	if err != nil {
		return thread.Scope{}, "", err
	}
	title := "post " + postID
	if b.Posts != nil {
		if p, err := b.Posts.Post(ctx, postID); err == nil {
			title = p.Title
		}
	}
	return thread.PostScope(postID), title, nil
}

func seedCommand(cfg **config.Config) *cli.Command {
	d := store.DefaultSeedOptions()
	return &cli.Command{
		Name:  "seed",
		Usage: "fill a local database with fake posts and comment threads",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "posts", Usage: "number of posts", Value: d.Posts},
			&cli.IntFlag{Name: "top-level", Usage: "top-level comments per post", Value: d.TopLevel},
			&cli.IntFlag{Name: "width", Usage: "maximum replies per comment", Value: d.Width},
			&cli.IntFlag{Name: "depth", Usage: "maximum reply depth", Value: d.Depth},
			&cli.IntFlag{Name: "max-comments", Usage: "cap on comments per post", Value: d.MaxComments},
			&cli.Int64Flag{Name: "seed", Usage: "random seed (0 for random)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path := (*cfg).DBPath
			if path == "" {
				path = filepath.Join((*cfg).DataDir, "threadline.db")
			}
			db, err := openStore(path)
			if err != nil {
				return err
			}
			defer db.Close()

			posts, err := db.Seed(ctx, store.SeedOptions{
				Posts:       c.Int("posts"),
				TopLevel:    c.Int("top-level"),
				Width:       c.Int("width"),
				Depth:       c.Int("depth"),
				MaxComments: c.Int("max-comments"),
				Seed:        c.Int64("seed"),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Seeded %s\n", path)
			for _, p := range posts {
				fmt.Printf("  %s  %4d comments  %s\n", p.ID, p.CommentsCount, p.Title)
			}
			if len(posts) > 0 {
				fmt.Printf("\nOpen with: threadline --db %s --post %s\n", path, posts[0].ID)
			}
			return nil
		},
	}
}
