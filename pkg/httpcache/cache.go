// Package httpcache fetches optional remote assets, such as the decorative header
// image and the author avatar, through an in-memory cache with retries.
//
// Assets are decoration: Optional never returns an error, it logs and reports
// absence so a page renders without the picture. Failures are remembered for a
// short while so a dead host costs one attempt per failure TTL, not one per page.
package httpcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/maypok86/otter/v2"
)

// maxAssetSize caps downloaded bodies.
const maxAssetSize = 5 << 20

// defaultFailureTTL is how long a failed URL is answered from the failure cache.
const defaultFailureTTL = time.Minute

// ErrUnavailable is returned when an asset cannot be fetched.
var ErrUnavailable = errors.New("asset unavailable")

// Asset is a cached response body.
type Asset struct {
	ExpiresAt   time.Time
	ContentType string
	ETag        string
	Data        []byte
}

// HTTPClient interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client HTTPClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithRetry sets the attempt count and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.attempts = attempts
		f.delay = delay
	}
}

// WithFailureTTL sets how long a failed fetch is remembered.
func WithFailureTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.failureTTL = ttl
	}
}

// Fetcher downloads assets and keeps successful responses for ttl.
type Fetcher struct {
	cache      *otter.Cache[string, Asset]
	failures   *otter.Cache[string, error]
	client     HTTPClient
	logger     *slog.Logger
	ttl        time.Duration
	failureTTL time.Duration
	delay      time.Duration
	attempts   uint
}

// NewFetcher creates a Fetcher whose entries live for ttl.
func NewFetcher(ttl time.Duration, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		cache: otter.Must(&otter.Options[string, Asset]{
			MaximumSize:      256,
			ExpiryCalculator: otter.ExpiryWriting[string, Asset](ttl),
		}),
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		ttl:        ttl,
		failureTTL: defaultFailureTTL,
		attempts:   3,
		delay:      500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.failures = otter.Must(&otter.Options[string, error]{
		MaximumSize:      256,
		ExpiryCalculator: otter.ExpiryWriting[string, error](f.failureTTL),
	})
	return f
}

// Fetch returns the asset at url, from cache when fresh.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Asset, error) {
	if url == "" {
		return Asset{}, fmt.Errorf("%w: no url configured", ErrUnavailable)
	}

	if entry, found := f.cache.GetIfPresent(url); found {
		if time.Now().Before(entry.ExpiresAt) {
			f.logger.Debug("asset cache hit", "url", url)
			return entry, nil
		}
		f.cache.Invalidate(url)
	}
	if err, found := f.failures.GetIfPresent(url); found {
		f.logger.Debug("asset failure cache hit", "url", url)
		return Asset{}, err
	}

	var asset Asset
	err := retry.Do(
		func() error {
			var fetchErr error
			asset, fetchErr = f.fetchOnce(ctx, url)
			return fetchErr
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.retryable()
			}
			return !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("retrying asset fetch", "attempt", n+1, "url", url, "error", err)
		}),
	)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrUnavailable, url, err)
		// A caller that went away says nothing about the host.
		if !errors.Is(ctx.Err(), context.Canceled) {
			f.failures.Set(url, err)
		}
		return Asset{}, err
	}

	asset.ExpiresAt = time.Now().Add(f.ttl)
	f.cache.Set(url, asset)
	f.logger.Debug("asset cached", "url", url, "size", len(asset.Data), "expires_at", asset.ExpiresAt)
	return asset, nil
}

// Optional fetches an asset whose absence must not fail the caller. Errors are
// logged and reported as false.
func (f *Fetcher) Optional(ctx context.Context, url string) (Asset, bool) {
	if url == "" {
		return Asset{}, false
	}
	asset, err := f.Fetch(ctx, url)
	if err != nil {
		f.logger.Warn("optional asset unavailable", "url", url, "error", err)
		return Asset{}, false
	}
	return asset, true
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Asset{}, retry.Unrecoverable(err)
	}
	req.Header.Set("User-Agent", "worldtz/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return Asset{}, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return Asset{}, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return Asset{}, fmt.Errorf("reading body: %w", err)
	}
	if len(body) > maxAssetSize {
		return Asset{}, retry.Unrecoverable(fmt.Errorf("asset exceeds %d bytes", maxAssetSize))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return Asset{
		Data:        body,
		ContentType: contentType,
		ETag:        resp.Header.Get("ETag"),
	}, nil
}
