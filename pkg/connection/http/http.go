package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofrs/uuid"

	"github.com/st9db/st9.go/pkg/connection"
	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/logger"
)

// HTTPConnection talks to ST9 over plain HTTP with JSON bodies.
type HTTPConnection struct {
	BaseURL string
	Logger  logger.Logger
	Retryer connection.Retryer

	httpClient *http.Client
}

func New(p *connection.Config) *HTTPConnection {
	con := HTTPConnection{
		BaseURL: p.BaseURL,
		Logger:  p.Logger,
		Retryer: p.Retryer,
	}
	if con.Logger == nil {
		con.Logger = logger.Nop()
	}
	if con.Retryer == nil {
		con.Retryer = connection.NoRetry{}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	con.httpClient = &http.Client{
		Timeout: timeout, // Set a default timeout to avoid hanging requests
	}

	return &con
}

func (h *HTTPConnection) SetTimeout(timeout time.Duration) *HTTPConnection {
	h.httpClient.Timeout = timeout
	return h
}

func (h *HTTPConnection) SetHTTPClient(client *http.Client) *HTTPConnection {
	h.httpClient = client
	return h
}

// Do sends one request. GETs that fail in transport or hit a gateway error
// are retried according to the Retryer; writes are sent exactly once.
func (h *HTTPConnection) Do(ctx context.Context, method, path string, body []byte) (*connection.Response, error) {
	if h.BaseURL == "" {
		return nil, constants.ErrNoBaseURL
	}

	for attempt := 0; ; attempt++ {
		req, err := h.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := h.MakeRequest(req)
		if method != http.MethodGet || !retryable(resp, err) {
			return resp, err
		}

		lastErr := err
		if lastErr == nil {
			lastErr = fmt.Errorf("status %d", resp.Status)
		}
		delay, ok := h.Retryer.NextDelay(attempt, lastErr)
		if !ok {
			return resp, err
		}
		h.Logger.Warn("retrying request", "method", method, "path", path, "attempt", attempt+1, "delay", delay.String(), "error", lastErr.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (h *HTTPConnection) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(connection.HeaderContentType, connection.ContentTypeJSON)
	req.Header.Set(connection.HeaderConnection, "close")

	info, _ := connection.RequestInfoFrom(ctx)
	for k, v := range info.Headers() {
		req.Header.Set(k, v)
	}
	if req.Header.Get(connection.HeaderRequestID) == "" {
		if id, err := uuid.NewV4(); err == nil {
			req.Header.Set(connection.HeaderRequestID, id.String())
		}
	}
	return req, nil
}

// MakeRequest executes req and reads the whole body.
func (h *HTTPConnection) MakeRequest(req *http.Request) (*connection.Response, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	h.Logger.Debug("st9 request", "method", req.Method, "path", req.URL.RequestURI(), "status", resp.StatusCode)
	return &connection.Response{Status: resp.StatusCode, Body: respBytes, Header: resp.Header}, nil
}

func retryable(resp *connection.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	switch resp.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
