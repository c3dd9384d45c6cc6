package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// requester performs GET requests with rate-limit and transient retries.
type requester struct {
	http           *http.Client
	maxRetries     int
	initialBackoff time.Duration
	userAgent      string
	logger         *slog.Logger
}

// get returns the first response that is neither 429 nor a retriable 5xx.
// The caller owns the response body.
func (r *requester) get(ctx context.Context, url string, decorate func(*http.Request)) (*http.Response, error) {
	rateRetries := 0
	attempt := 0
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "source", "build request", url, err)
		}
		if r.userAgent != "" {
			req.Header.Set("User-Agent", r.userAgent)
		}
		if decorate != nil {
			decorate(req)
		}

		resp, err := r.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !IsRetriable(err) || attempt >= r.maxRetries {
				return nil, services.Wrap(services.ErrTransient, "source", "request", redact(url), err)
			}
			wait := backoff(r.initialBackoff, attempt)
			attempt++
			r.logger.Warn("request failed; retrying",
				logging.String("url", redact(url)),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", wait),
				logging.Error(err),
			)
			if err := SleepWithContext(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			if rateRetries >= MaxRateRetries {
				return nil, services.Wrap(services.ErrTransient, "source", "request",
					fmt.Sprintf("rate limited after %d retries", rateRetries), nil)
			}
			rateRetries++
			wait := retryAfter(resp.Header.Get("Retry-After"), time.Now())
			logging.WarnWithContext(r.logger, "rate limited; honouring Retry-After", "rate_limited",
				logging.String("url", redact(url)),
				logging.Duration("retry_after", wait),
				logging.Int("attempt", rateRetries),
				logging.String(logging.FieldErrorHint, "lower source.concurrency to stay under the plan's rate limit"),
			)
			if err := SleepWithContext(ctx, wait); err != nil {
				return nil, err
			}
		case retriableStatus(resp.StatusCode) && attempt < r.maxRetries:
			drain(resp)
			wait := backoff(r.initialBackoff, attempt)
			attempt++
			r.logger.Warn("server error; retrying",
				logging.String("url", redact(url)),
				logging.Int("status", resp.StatusCode),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", wait),
			)
			if err := SleepWithContext(ctx, wait); err != nil {
				return nil, err
			}
		default:
			return resp, nil
		}
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}

func errorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return strings.TrimSpace(string(body))
}

// redact strips the query string, which carries signatures on presigned links.
func redact(url string) string {
	if idx := strings.IndexByte(url, '?'); idx >= 0 {
		return url[:idx]
	}
	return url
}
