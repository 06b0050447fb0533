// Package checks provides health-check adapters for common service
// transports. Each adapter implements domain.HealthChecker so it can be
// registered as (or embedded in) a monitored service.
package checks

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPCheck probes a service over HTTP. Any response below 400 is healthy.
type HTTPCheck struct {
	url    string
	client *http.Client
}

// NewHTTPCheck creates a checker for the given URL.
func NewHTTPCheck(url string, timeout time.Duration) *HTTPCheck {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPCheck{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// CheckHealth implements domain.HealthChecker.
func (c *HTTPCheck) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, c.url)
	}
	return nil
}
