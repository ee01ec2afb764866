package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

const (
	CodeRetryAfter = "retry-after"
	CodeRejected   = "rejected"
	CodeUnknown    = "unknown"

	defaultSendTimeout = 5 * time.Second
	defaultRetryAfter  = 60 * time.Second
)

type SendError struct {
	Code string

	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("code: %s, retry_after: %s, error: %v", e.Code, e.RetryAfter, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Body posted to mail gateway
type gatewayMessage struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Params   map[string]string `json:"params"`
}

// HTTPSender renders messages and posts them to mail gateway
type HTTPSender struct {
	GatewayURL string

	client *http.Client
	logger logger.Logger
}

func NewHTTPSender(gatewayURL string, l logger.Logger) *HTTPSender {
	return &HTTPSender{
		GatewayURL: gatewayURL,
		client:     &http.Client{Timeout: defaultSendTimeout},
		logger:     l.With("component", "notify"),
	}
}

func (s *HTTPSender) Send(ctx context.Context, address string, templateID string, params map[string]string) error {
	msg, err := Render(templateID, params)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(gatewayMessage{
		To:       address,
		Template: templateID,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Params:   params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return &SendError{Code: CodeUnknown, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SendError{Code: CodeUnknown, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.logger.Debug("Message sent", "to", address, "template", templateID)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		s.logger.Warn("Mail gateway throttled", "retry_after", retryAfter)
		return &SendError{Code: CodeRetryAfter, RetryAfter: retryAfter, Err: fmt.Errorf("retry after %s", retryAfter)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &SendError{Code: CodeRejected, Err: fmt.Errorf("gateway rejected message with status %d", resp.StatusCode)}
	default:
		s.logger.Warn("Failed to send message", "status_code", resp.StatusCode, "template", templateID)
		return &SendError{Code: CodeUnknown, Err: fmt.Errorf("unknown status code %d", resp.StatusCode)}
	}
}

func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
