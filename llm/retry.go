package llm

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// retryConfig holds exponential-backoff parameters for HTTP requests made by
// the provider clients. Retrying here is purely a transport-layer courtesy
// (connection resets, a stray 5xx on the request that opens the stream) —
// the orchestrator-level retry-once-per-turn policy described in spec §4.2
// is independent of this and lives in the agent package.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{maxRetries: 3, baseDelay: time.Second, maxDelay: 20 * time.Second}
}

// doWithRetry executes doReq, retrying on connection errors and 429/5xx
// responses up to cfg.maxRetries times with jittered exponential backoff,
// honoring a Retry-After header when present. Non-retryable responses (2xx,
// or 4xx other than 429) are returned immediately for the caller to inspect.
func doWithRetry(ctx context.Context, cfg retryConfig, doReq func() (*http.Response, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := doReq()
		if err != nil {
			if attempt >= cfg.maxRetries {
				return nil, err
			}
			if !sleepBackoff(ctx, cfg, attempt, 0) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode < 300 {
			return resp, nil
		}
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			if attempt >= cfg.maxRetries {
				return resp, nil
			}
			retryAfter := parseRetryAfter(resp)
			resp.Body.Close()
			if !sleepBackoff(ctx, cfg, attempt, retryAfter) {
				return nil, ctx.Err()
			}
			continue
		}
		return resp, nil
	}
}

func sleepBackoff(ctx context.Context, cfg retryConfig, attempt int, minDelay time.Duration) bool {
	delay := backoffDelay(attempt, cfg.baseDelay, cfg.maxDelay)
	if minDelay > delay {
		delay = minDelay
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	if delay > max {
		delay = max
	}
	return delay
}

func parseRetryAfter(resp *http.Response) time.Duration {
	val := resp.Header.Get("Retry-After")
	if val == "" {
		return 0
	}
	seconds, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
