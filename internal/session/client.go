package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"komikverse/internal/auth"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// doJSON calls the identity API. Coded failures come back as *auth.Error;
// transport failures as auth.CodeNetworkRequestFailed.
func (s *Context) doJSON(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+authPrefix+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.Logger.Sugar().Debugw("auth request failed", "path", path, "error", err)
		return &auth.Error{Code: auth.CodeNetworkRequestFailed}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &auth.Error{Code: auth.CodeNetworkRequestFailed}
	}
	if resp.StatusCode >= 300 {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Code != "" {
			return &auth.Error{Code: eb.Code}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return &auth.Error{Code: auth.CodeInvalidCredential}
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
