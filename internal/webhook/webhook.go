// Package webhook delivers completed scoring results to caller-supplied
// callback URLs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// Sender POSTs JSON payloads to callback URLs, retrying failed deliveries.
type Sender struct {
	client  *http.Client
	backoff time.Duration
}

// NewSender creates a sender whose individual requests give up after timeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		client:  &http.Client{Timeout: timeout},
		backoff: baseBackoff,
	}
}

// Send POSTs the payload to url as JSON. Each failed attempt doubles the
// wait before the next one. A callback failure never affects the stored
// job result; the caller just logs the returned error.
func (s *Sender) Send(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	backoff := s.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.post(ctx, url, body)
		if lastErr == nil {
			slog.Info("callback delivered", "url", url, "attempt", attempt)
			return nil
		}

		slog.Warn("callback attempt failed", "url", url, "attempt", attempt, "error", lastErr)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("callback to %s failed after %d attempts: %w", url, maxAttempts, lastErr)
}

func (s *Sender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	}
	return nil
}
