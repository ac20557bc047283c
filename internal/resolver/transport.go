package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lvcoi/playlistdl/internal/logging"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// maxBackoffSteps caps the doubling of Config.RetryBackoff.
	maxBackoffSteps = 4
)

// newHTTPClient builds the client used by the youtube backend: proxy-aware
// base transport, browser-like default headers, and the retry policy from
// cfg.
func newHTTPClient(cfg Config, logger *slog.Logger) (*http.Client, error) {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", cfg.Proxy)
		}
		base.Proxy = http.ProxyURL(proxyURL)
	}
	var transport http.RoundTripper = &headerTransport{base: base, userAgent: defaultUserAgent}
	if cfg.HTTPRetries > 0 {
		transport = &retryTransport{base: transport, policy: newRetryPolicy(cfg), logger: logger}
	}
	return &http.Client{Transport: transport, Timeout: cfg.HTTPTimeout}, nil
}

// headerTransport fills in default request headers the caller left empty.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	return t.base.RoundTrip(req)
}

// retryPolicy says how often and how long to wait between attempts against
// YouTube. A Retry-After header on a throttled response overrides the
// computed backoff, bounded by ceiling.
type retryPolicy struct {
	retries int
	backoff time.Duration
	ceiling time.Duration
	// jitter returns a value in [0, 1).
	jitter func() float64
}

func newRetryPolicy(cfg Config) retryPolicy {
	return retryPolicy{
		retries: cfg.HTTPRetries,
		backoff: cfg.RetryBackoff,
		ceiling: cfg.RetryBackoff << maxBackoffSteps,
		jitter:  rand.Float64, //nolint:gosec
	}
}

// wait returns the pause before retry number n (1-based). The computed delay
// doubles from backoff and is spread by up to a quarter either way.
func (p retryPolicy) wait(n int, resp *http.Response) time.Duration {
	if d, ok := retryAfter(resp); ok {
		return min(d, p.ceiling)
	}
	steps := min(n-1, maxBackoffSteps)
	delay := p.backoff << steps
	spread := time.Duration((p.jitter()*2 - 1) * 0.25 * float64(delay))
	return delay + spread
}

// retryAfter parses a delta-seconds Retry-After header.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// retryTransport replays idempotent-safe requests on throttling, gateway
// errors, and transient network failures.
type retryTransport struct {
	base   http.RoundTripper
	policy retryPolicy
	logger *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for n := 1; n <= t.policy.retries && shouldRetry(resp, err); n++ {
		next, cloneErr := replayable(req)
		if cloneErr != nil {
			break
		}
		delay := t.policy.wait(n, resp)
		if resp != nil {
			resp.Body.Close()
		}
		t.log().Debug("retrying youtube request",
			slog.String("host", req.URL.Host),
			slog.Int("attempt", n+1),
			slog.Duration("delay", delay),
			attemptOutcome(resp, err),
		)
		if err := pause(req.Context(), delay); err != nil {
			return nil, err
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

func (t *retryTransport) log() *slog.Logger {
	if t.logger == nil {
		return logging.NewNop()
	}
	return t.logger
}

func attemptOutcome(resp *http.Response, err error) slog.Attr {
	if err != nil {
		return logging.Error(err)
	}
	return slog.Int("status", resp.StatusCode)
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return isTransientNetError(err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isTransientNetError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// replayable returns a fresh copy of req whose body can be sent again.
func replayable(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
