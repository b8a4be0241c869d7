package httpcache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(logs *bytes.Buffer) *Fetcher {
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewFetcher(time.Hour, logger, WithRetry(3, time.Millisecond))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("ETag", `"clock"`)
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	f := newTestFetcher(&logs)

	asset, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), asset.Data)
	assert.Equal(t, "image/jpeg", asset.ContentType)
	assert.Equal(t, `"clock"`, asset.ETag)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, logs.String(), "retrying asset fetch")
}

func TestFetchServesFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("avatar"))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	f := newTestFetcher(&logs)
	for range 3 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	_, err := newTestFetcher(&logs).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOptionalSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	f := newTestFetcher(&logs)

	_, ok := f.Optional(context.Background(), srv.URL)
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "optional asset unavailable")

	_, ok = f.Optional(context.Background(), "")
	assert.False(t, ok)
}

func TestFetchEmptyURL(t *testing.T) {
	var logs bytes.Buffer
	_, err := newTestFetcher(&logs).Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchRemembersFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := NewFetcher(time.Hour, logger, WithRetry(2, time.Millisecond), WithFailureTTL(time.Hour))

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())

	for range 3 {
		_, err = f.Fetch(context.Background(), srv.URL)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), calls.Load(), "a failed host is not asked again")
	assert.Contains(t, logs.String(), "asset failure cache hit")
}

func TestFetchDoesNotRememberCancellation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("hero"))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	f := newTestFetcher(&logs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, ErrUnavailable)

	asset, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("hero"), asset.Data)
	assert.Equal(t, int32(1), calls.Load())
}

type stubClient struct {
	requests []*http.Request
}

func (c *stubClient) Do(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"image/png"}},
		Body:       io.NopCloser(strings.NewReader("png-bytes")),
	}, nil
}

func TestWithHTTPClient(t *testing.T) {
	client := &stubClient{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	f := NewFetcher(time.Hour, logger, WithHTTPClient(client))

	asset, err := f.Fetch(context.Background(), "https://assets.test/avatar.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), asset.Data)
	assert.Equal(t, "image/png", asset.ContentType)
	require.Len(t, client.requests, 1)
	assert.Equal(t, "worldtz/1.0", client.requests[0].Header.Get("User-Agent"))
}
