// Package upstream reads the catalog API. Every call resolves to a Result;
// transport, status and envelope failures are folded into Result.Err and
// logged, never returned as errors.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"komikverse/internal/logging"
	"komikverse/internal/metrics"
	"komikverse/pkg/models"
)

const DefaultTimeout = 15 * time.Second

// Result is the outcome of one catalog call. When OK is false, Data holds
// its zero value, Pagination is nil and Err is non-empty.
type Result[T any] struct {
	OK         bool
	Data       T
	Pagination *models.Pagination
	Err        string
}

func failed[T any](msg string) Result[T] {
	if msg == "" {
		msg = "API Error"
	}
	return Result[T]{Err: msg}
}

// Client talks to the catalog API rooted at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

// New targets the catalog API directly, as server-side rendering does.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logging.OrNop(logger),
	}
}

// NewViaProxy targets the catalog through a komikverse origin's /api/proxy,
// as out-of-process clients must.
func NewViaProxy(origin string, timeout time.Duration, logger *zap.Logger) *Client {
	return New(strings.TrimRight(origin, "/")+"/api/proxy", timeout, logger)
}

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Message    string             `json:"message"`
}

func fetch[T any](ctx context.Context, c *Client, op, endpoint string) Result[T] {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	res, err := c.do(ctx, endpoint)
	if err == nil {
		var data T
		if len(res.Data) > 0 && string(res.Data) != "null" {
			if derr := json.Unmarshal(res.Data, &data); derr != nil {
				err = fmt.Errorf("decode data: %w", derr)
			}
		}
		if err == nil {
			metrics.ObserveUpstream(op, "ok")
			return Result[T]{OK: true, Data: data, Pagination: res.Pagination}
		}
	}

	metrics.ObserveUpstream(op, "error")
	c.Logger.Warn("upstream request failed",
		zap.String("endpoint", endpoint),
		zap.String("error", err.Error()),
	)
	return failed[T](err.Error())
}

func (c *Client) do(ctx context.Context, endpoint string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		if env.Message == "" {
			return nil, errors.New("API Error")
		}
		return nil, errors.New(env.Message)
	}
	return &env, nil
}
