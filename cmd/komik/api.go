package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"komikverse/internal/auth"
	"komikverse/pkg/models"
)

var errNotLoggedIn = errors.New("not logged in; run `komik auth login` first")

// apiClient calls the bookmark API of a komikverse server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *apiClient) doJSON(ctx context.Context, method, path, token string, payload, out any) error {
	if token == "" {
		return errNotLoggedIn
	}
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var eb struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.Unmarshal(data, &eb)
		if eb.Code != "" {
			return &auth.Error{Code: eb.Code}
		}
		if eb.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, eb.Error)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

type bookmarkList struct {
	Total int               `json:"total"`
	Items []models.Bookmark `json:"items"`
}

type savedResp struct {
	Saved bool `json:"saved"`
}

func (c *apiClient) ListBookmarks(ctx context.Context, token string) ([]models.Bookmark, error) {
	var resp bookmarkList
	if err := c.doJSON(ctx, http.MethodGet, "/api/bookmarks", token, nil, &resp); err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return resp.Items, nil
}

func (c *apiClient) AddBookmark(ctx context.Context, token string, m models.MangaSummary) error {
	if err := c.doJSON(ctx, http.MethodPost, "/api/bookmarks", token, m, nil); err != nil {
		return fmt.Errorf("add bookmark: %w", err)
	}
	return nil
}

func (c *apiClient) RemoveBookmark(ctx context.Context, token, slug string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(slug), token, nil, nil); err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	return nil
}

func (c *apiClient) ToggleBookmark(ctx context.Context, token string, m models.MangaSummary) (bool, error) {
	var resp savedResp
	if err := c.doJSON(ctx, http.MethodPost, "/api/bookmarks/toggle", token, m, &resp); err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	return resp.Saved, nil
}

func (c *apiClient) IsBookmarked(ctx context.Context, token, slug string) (bool, error) {
	var resp savedResp
	if err := c.doJSON(ctx, http.MethodGet, "/api/bookmarks/"+url.PathEscape(slug), token, nil, &resp); err != nil {
		return false, fmt.Errorf("check bookmark: %w", err)
	}
	return resp.Saved, nil
}

// describe prefers the user-facing message for coded identity errors.
func describe(err error) string {
	var ae *auth.Error
	if errors.As(err, &ae) {
		return auth.Message(ae.Code)
	}
	return err.Error()
}
