package llm

import (
	"context"
	"net/http"
	"time"
)

const maxRetries = 3

var retryBaseDelay = 500 * time.Millisecond

// doWithRetry sends a request with a small retry budget for transient
// failures (429, 408, 5xx and network errors). The request is rebuilt per
// attempt so the body can be re-read.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		lastErr = &StatusError{Status: resp.Status, Code: resp.StatusCode}
		_ = resp.Body.Close()
	}
	return nil, lastErr
}

func isRetryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests:
		return true
	case code == http.StatusRequestTimeout:
		return true
	case code >= http.StatusInternalServerError:
		return true
	}
	return false
}

// StatusError carries an HTTP status through the retry loop.
type StatusError struct {
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return "llm: upstream returned " + e.Status
}
