package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Content types accepted by robots for POST /.
const (
	ContentTypeText   = "text/plain"
	ContentTypeBinary = "application/octet-stream"
)

// maxReplySize bounds how much of a reply body is read.
const maxReplySize = 64 << 10

// StatusError is returned when the robot answers with a non-2xx status.
// Its message is the response body, as shown to the operator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("robot returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return body
}

// RobotClient talks to a robot (or relay) over plain HTTP.
type RobotClient struct {
	BaseURL     string
	ContentType string
	HTTP        *http.Client
}

// NewRobotClient builds a client for addr, adding http:// when no scheme is given.
func NewRobotClient(addr string, timeout time.Duration, contentType string) *RobotClient {
	if contentType == "" {
		contentType = ContentTypeText
	}
	return &RobotClient{
		BaseURL:     BaseURL(addr),
		ContentType: contentType,
		HTTP:        &http.Client{Timeout: timeout},
	}
}

// BaseURL normalizes a host:port or URL into the robot root URL.
func BaseURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + "/"
}

// Ping issues GET / as a liveness probe.
func (c *RobotClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("build ping: %w", err)
	}
	_, err = c.do(req)
	return err
}

// Send posts frame to the robot and returns the reply body.
func (c *RobotClient) Send(ctx context.Context, frame string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("build dispatch: %w", err)
	}
	req.Header.Set("Content-Type", c.ContentType)
	return c.do(req)
}

func (c *RobotClient) do(req *http.Request) (string, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", req.Method, c.BaseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
