// Package proxy relays browser catalog requests to the upstream API so the
// browser never calls it cross-origin.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"komikverse/internal/logging"
	"komikverse/internal/metrics"
)

const (
	UserAgent    = "Mozilla/5.0 (compatible; KomikVerse/1.0)"
	CacheControl = "public, max-age=60, stale-while-revalidate=300"

	// MountPath is where RegisterRoutes expects to be mounted.
	MountPath = "/api/proxy"
)

var errNotJSON = errors.New("upstream response is not valid JSON")

type Forwarder struct {
	Base   string
	Client *http.Client
	Logger *zap.Logger
}

func NewForwarder(base string, timeout time.Duration, logger *zap.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Forwarder{
		Base:   strings.TrimRight(base, "/"),
		Client: &http.Client{Timeout: timeout},
		Logger: logging.OrNop(logger),
	}
}

func (f *Forwarder) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/*path", f.forward)
	rg.OPTIONS("/*path", f.preflight)
}

// Target maps the path below the mount point and the raw query onto the
// upstream base. The empty path maps to the base with a trailing slash.
func (f *Forwarder) Target(path, rawQuery string) string {
	target := f.Base + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

func (f *Forwarder) forward(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.EscapedPath(), MountPath)
	target := f.Target(path, c.Request.URL.RawQuery)

	status, body, err := f.fetch(c, target)
	if err != nil {
		f.Logger.Warn("proxy forward failed", zap.String("target", target), zap.Error(err))
		metrics.ObserveProxy(http.StatusInternalServerError)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	f.Logger.Debug("proxy forward", zap.String("target", target), zap.Int("status", status))
	metrics.ObserveProxy(status)
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Cache-Control", CacheControl)
	c.Data(status, "application/json", body)
}

func (f *Forwarder) fetch(c *gin.Context, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-store")
	if cookie := c.GetHeader("Cookie"); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(body) {
		return 0, nil, errNotJSON
	}
	return resp.StatusCode, body, nil
}

func (f *Forwarder) preflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Status(http.StatusNoContent)
}
