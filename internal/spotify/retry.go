package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"listentier/internal/models"
	"listentier/internal/providers"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	maxRetryAfter     = time.Minute
)

// doRequestWithRetry retries transport errors, 429 and 5xx with exponential backoff. A 401 or a
// rejected token refresh is returned at once as an AuthError.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseBackoff := c.baseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBackoff
	}

	ctx := req.Context()
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil && isAuthFailure(err) {
			return nil, models.NewAuthError("token refresh rejected, re-authorization required", err)
		}
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, models.NewAuthError("provider rejected the access token, re-authorization required", nil)
		}

		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			c.logger.Warnf(providers.TypeSync, "Retry attempt %d/%d after error: %v", attempt+1, maxRetries, err)
		} else {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.logger.Warnf(providers.TypeSync, "Retry attempt %d/%d after status %d", attempt+1, maxRetries, resp.StatusCode)
			resp.Body.Close()
		}

		if attempt == maxRetries-1 {
			break
		}

		backoff := baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, models.NewTransientError(fmt.Sprintf("request failed after %d attempts", maxRetries), lastErr)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	var d time.Duration
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		d = time.Duration(seconds) * time.Second
	} else if when, err := http.ParseTime(retryAfter); err == nil {
		d = time.Until(when)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

func isAuthFailure(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		return false
	}
	code := retrieveErr.Response.StatusCode
	return code == http.StatusBadRequest || code == http.StatusUnauthorized
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
