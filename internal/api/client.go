package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryMax   = 3
	defaultDataSource = "staging"
	userAgent         = "threadline/1.0"
)

// ErrNotFound is returned when the server answers 404 for a post or comment.
var ErrNotFound = errors.New("not found")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.Code, e.URL, e.Body)
}

// Client talks to the social feed REST API. It implements CommentSource and
// CommentWriter.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	dataSource string
	retryMax   int
	timeout    time.Duration
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithDataSource sets the X-Data-Source header value.
func WithDataSource(source string) Option {
	return func(c *Client) { c.dataSource = source }
}

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.retryMax = n }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request and retry logging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHTTPClient replaces the retrying transport entirely. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a new API client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dataSource: defaultDataSource,
		retryMax:   defaultRetryMax,
		timeout:    defaultTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = c.newRetryingClient()
	}
	return c
}

func (c *Client) newRetryingClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = c.retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(leveledZerolog{c.log})
	rc.CheckRetry = retryPolicy
	// Hand the last response back so non-2xx statuses surface as StatusError.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	hc := rc.StandardClient()
	hc.Timeout = c.timeout
	return hc
}

// retryPolicy leaves 429 to the caller instead of hammering the server.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// ByPost fetches every comment on a post as a flat list.
func (c *Client) ByPost(ctx context.Context, postID string) ([]Comment, error) {
	q := url.Values{"post_id": {postID}}
	var out []Comment
	if err := c.do(ctx, http.MethodGet, "/comments?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RepliesOf fetches the replies of a comment as a flat list.
func (c *Client) RepliesOf(ctx context.Context, commentID string) ([]Comment, error) {
	var out []Comment
	if err := c.do(ctx, http.MethodGet, "/comments/"+url.PathEscape(commentID)+"/replies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeepRepliesOf fetches the full descendant set of a comment as a flat list.
func (c *Client) DeepRepliesOf(ctx context.Context, commentID string) ([]Comment, error) {
	var out []Comment
	if err := c.do(ctx, http.MethodGet, "/comments/"+url.PathEscape(commentID)+"/deep-replies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComment posts a new comment, or a reply when p.ReplyTo is set.
func (c *Client) CreateComment(ctx context.Context, p CreateCommentPayload) (*Comment, error) {
	var out Comment
	if err := c.do(ctx, http.MethodPost, "/comments", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a request and decodes the JSON response into dst.
func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	u := c.baseURL + path

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.dataSource != "" {
		req.Header.Set("X-Data-Source", c.dataSource)
	}

	c.log.Debug().Str("method", method).Str("url", u).Msg("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, u, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, URL: u, Body: strings.TrimSpace(string(b))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", u, err)
	}
	return nil
}

// leveledZerolog adapts zerolog to retryablehttp.LeveledLogger. Errors are
// logged as warnings since the request may still succeed on retry.
type leveledZerolog struct {
	l zerolog.Logger
}

func (z leveledZerolog) Error(msg string, kv ...any) { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledZerolog) Warn(msg string, kv ...any)  { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledZerolog) Info(msg string, kv ...any)  { z.l.Info().Fields(kv).Msg(msg) }
func (z leveledZerolog) Debug(msg string, kv ...any) { z.l.Debug().Fields(kv).Msg(msg) }
