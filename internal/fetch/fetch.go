package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vlget/internal/infra/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	Attempts  int           // attempt budget per call, default 3
	BaseDelay time.Duration // first backoff delay, default 2s
	MaxDelay  time.Duration // backoff cap, default 30s
	Timeout   time.Duration // per-request timeout, default none
	UserAgent string
	RateLimit float64 // requests per second across all calls, 0 = unlimited
}

// Client fetches URLs with per-call retry and exponential backoff.
// Transient failures (timeouts, resets, 5xx, short reads) are retried up to
// the attempt budget; permanent failures (403, 404) are not. Each call is
// independent beyond the shared rate limiter.
type Client struct {
	hc        *http.Client
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	ua        string
	limiter   *rate.Limiter
	log       *logger.Logger
}

func New(opts Options, log *logger.Logger) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	c := &Client{
		hc:        &http.Client{Timeout: opts.Timeout},
		attempts:  opts.Attempts,
		baseDelay: opts.BaseDelay,
		maxDelay:  opts.MaxDelay,
		ua:        opts.UserAgent,
		log:       log,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// Fetch retrieves url into memory, verifying the body against the declared
// Content-Length when the server provides one.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, url, func(ctx context.Context) error {
		b, err := c.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// FetchText is Fetch for small text resources such as manifests.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	data, err := c.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FetchJSON retrieves url and decodes the JSON body into v. The extra
// headers ride along on every attempt.
func (c *Client) FetchJSON(ctx context.Context, url string, header map[string]string, v any) error {
	return c.retry(ctx, url, func(ctx context.Context) error {
		resp, err := c.do(ctx, url, header)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(v)
	})
}

// FetchToFile streams url to path, truncating on each retry so a failed
// attempt never leaves partial bytes counted or written. onChunk, when
// non-nil, receives byte deltas and a negative rollback if an attempt dies
// midway.
func (c *Client) FetchToFile(ctx context.Context, url, path string, onChunk func(int64)) (int64, error) {
	var written int64
	err := c.retry(ctx, url, func(ctx context.Context) error {
		n, err := c.downloadOnce(ctx, url, path, onChunk)
		written = n
		return err
	})
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return written, nil
}

// Probe reports the content length of url and whether the server accepts
// range requests. Tries HEAD first, then a one-byte ranged GET.
func (c *Client) Probe(ctx context.Context, url string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.hc.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		return resp.ContentLength, resp.Header.Get("Accept-Ranges") == "bytes", nil
	}
	if resp != nil {
		resp.Body.Close()
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Range", "bytes=0-0")

	resp, err = c.hc.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Content-Range: bytes 0-0/123456
		cr := resp.Header.Get("Content-Range")
		if idx := strings.LastIndex(cr, "/"); idx >= 0 {
			if total, err := strconv.ParseInt(cr[idx+1:], 10, 64); err == nil {
				return total, true, nil
			}
		}
		return 0, true, nil
	case http.StatusOK:
		return resp.ContentLength, false, nil
	default:
		return 0, false, fmt.Errorf("probe failed with status %d", resp.StatusCode)
	}
}

// retry drives op through the attempt budget with backoff between transient
// failures. The returned error is always a *Error (or a context error).
func (c *Client) retry(ctx context.Context, url string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !isTransient(err) {
			return &Error{URL: url, Status: statusOf(err), Attempts: attempt, Transient: false, Err: err}
		}

		if attempt < c.attempts {
			delay := BackoffDelay(c.baseDelay, c.maxDelay, attempt)
			c.log.Warn("[Retry] %s: attempt %d/%d failed: %v (next in %s)", url, attempt, c.attempts, err, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	// Exhausted transient budget surfaces as a permanent failure.
	return &Error{URL: url, Status: statusOf(lastErr), Attempts: c.attempts, Transient: true, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength >= 0 && int64(len(data)) != resp.ContentLength {
		return nil, &shortReadError{got: int64(len(data)), want: resp.ContentLength}
	}
	return data, nil
}

func (c *Client) downloadOnce(ctx context.Context, url, path string, onChunk func(int64)) (int64, error) {
	resp, err := c.do(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	var written int64
	fail := func(err error) (int64, error) {
		out.Close()
		if onChunk != nil && written > 0 {
			onChunk(-written) // roll back this attempt's progress
		}
		return 0, err
	}

	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		default:
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			nw, werr := out.Write(buf[:n])
			if werr != nil {
				return fail(werr)
			}
			if nw != n {
				return fail(io.ErrShortWrite)
			}
			written += int64(n)
			if onChunk != nil {
				onChunk(int64(n))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(rerr)
		}
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fail(&shortReadError{got: written, want: resp.ContentLength})
	}

	if err := out.Sync(); err != nil {
		return fail(err)
	}
	return written, out.Close()
}

// do issues the GET and classifies the response status. The caller owns the
// body on a nil error.
func (c *Client) do(ctx context.Context, url string, header map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return resp, nil
	case resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, transient: true}
	default:
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, transient: false}
	}
}
