package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

func newHTTPClient(proxy string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// getWithRetry issues a rate-limited GET. Network errors, 429 and 5xx are
// retried with exponential backoff; other statuses fail at once.
func getWithRetry(ctx context.Context, client *http.Client, limiter *rate.Limiter, maxRetries uint64, source, u string) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s fetch: %w", source, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s read body: %w", source, err)
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			body = b
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%s: status %d", source, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%s: status %d, body: %.200s", source, resp.StatusCode, string(b)))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
