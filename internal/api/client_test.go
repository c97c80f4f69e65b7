package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Paths(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"c1","post_id":"p1","content":"hi","created_at":5,"reply_to":"c0","child_count":2,
			"user_details":{"display_name":"Ann","user_handle":"ann","avatar":null}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithRetryMax(0))
	ctx := context.Background()

	tests := []struct {
		name      string
		call      func() ([]Comment, error)
		wantPath  string
		wantQuery string
	}{
		{"by post", func() ([]Comment, error) { return c.ByPost(ctx, "p1") }, "/comments", "post_id=p1"},
		{"replies", func() ([]Comment, error) { return c.RepliesOf(ctx, "c 1") }, "/comments/c 1/replies", ""},
		{"deep replies", func() ([]Comment, error) { return c.DeepRepliesOf(ctx, "c1") }, "/comments/c1/deep-replies", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call()
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantQuery, gotQuery)

			require.Len(t, got, 1)
			assert.Equal(t, "c0", got[0].Parent())
			n, ok := got[0].Children()
			assert.True(t, ok)
			assert.Equal(t, 2, n)
			assert.Equal(t, "Ann", got[0].UserDetails.DisplayName)
			assert.Nil(t, got[0].UserDetails.Avatar)
		})
	}
}

func TestClient_Headers(t *testing.T) {
	var h http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h = r.Header.Clone()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("secret"), WithRetryMax(0))
	got, err := c.ByPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Equal(t, "Bearer secret", h.Get("Authorization"))
	assert.Equal(t, "staging", h.Get("X-Data-Source"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, userAgent, h.Get("User-Agent"))

	c = NewClient(srv.URL, WithDataSource("production"), WithRetryMax(0))
	_, err = c.ByPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "production", h.Get("X-Data-Source"))
}

func TestClient_CreateComment(t *testing.T) {
	var body CreateCommentPayload
	var method, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, contentType = r.Method, r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":"new","post_id":"p1","content":"hello","reply_to":"c1","created_at":9}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryMax(0))
	got, err := c.CreateComment(context.Background(), CreateCommentPayload{PostID: "p1", Content: "hello", ReplyTo: "c1"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, CreateCommentPayload{PostID: "p1", Content: "hello", ReplyTo: "c1"}, body)
	assert.Equal(t, "new", got.ID)
	assert.Equal(t, "c1", got.Parent())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusInternalServerError, se.Code)
			assert.Equal(t, "boom", se.Body)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, WithRetryMax(0)).ByPost(context.Background(), "p1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_RateLimitNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithRetryMax(3)).RepliesOf(context.Background(), "c1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithRetryMax(0)).ByPost(context.Background(), "p1")
	assert.ErrorContains(t, err, "decoding response")
}
