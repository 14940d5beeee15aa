// Package gateway is the HTTP client for the social-network API. Every call
// is one round trip; payloads are decoded into domain types at this
// boundary and nowhere else.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"NeuralClient/internal/domain"
)

const maxResponseBytes = 4 << 20

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	AuthScheme string
	Logger     *slog.Logger
}

type Client struct {
	base       *url.URL
	http       *http.Client
	authScheme string
	logger     *slog.Logger
	requestID  func() string
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("gateway: base url required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, errors.New("gateway: base url must be absolute")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:       base,
		http:       hc,
		authScheme: strings.TrimSpace(opts.AuthScheme),
		logger:     logger,
		requestID:  uuid.NewString,
	}, nil
}

type call struct {
	method string
	path   string
	query  url.Values
	token  string
	body   any
	// login marks the credential exchange, where 401 means bad credentials
	// rather than an expired session.
	login bool
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	u := *c.base
	u.Path = c.base.Path + in.path
	if len(in.query) > 0 {
		u.RawQuery = in.query.Encode()
	}

	var body io.Reader
	if in.body != nil {
		raw, err := json.Marshal(in.body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", in.method, in.path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", in.method, in.path, err)
	}
	reqID := c.requestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if in.token != "" {
		if c.authScheme != "" {
			req.Header.Set("Authorization", c.authScheme+" "+in.token)
		} else {
			req.Header.Set("Authorization", in.token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", in.method, in.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", in.method, in.path, err)
	}
	c.logger.Debug("gateway request",
		"method", in.method,
		"path", in.path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, errorMessage(raw), in.login)
	}
	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrMalformedResponse, in.method, in.path, err)
	}
	return nil
}

func statusError(code int, message string, login bool) error {
	switch code {
	case http.StatusUnauthorized:
		if login {
			return domain.ErrInvalidCredentials
		}
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrNameTaken
	case http.StatusBadRequest:
		if message == "" {
			message = "invalid request"
		}
		return domain.NewValidationError(map[string]string{"request": message})
	default:
		return &domain.StatusError{Code: code, Message: message}
	}
}

func errorMessage(raw []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		return env.Error
	}
	return ""
}
