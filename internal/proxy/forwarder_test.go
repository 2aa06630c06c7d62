package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(f *Forwarder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	f.RegisterRoutes(r.Group(MountPath))
	return r
}

func TestForwardRelaysStatusAndBody(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery, gotUA, gotCookie, gotCT string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		gotUA, gotCookie, gotCT = r.UserAgent(), r.Header.Get("Cookie"), r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
	}))
	defer upstream.Close()

	r := newRouter(NewForwarder(upstream.URL+"/api//", time.Second, nil))
	req := httptest.NewRequest(http.MethodGet, "/api/proxy/manga/one-piece?x=1&y=2", nil)
	req.Header.Set("Cookie", "session=abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "/api/manga/one-piece", gotPath)
	require.Equal(t, "x=1&y=2", gotQuery)
	require.Equal(t, UserAgent, gotUA)
	require.Equal(t, "session=abc", gotCookie)
	require.Equal(t, "application/json", gotCT)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"not found"}`, rec.Body.String())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, CacheControl, rec.Header().Get("Cache-Control"))
}

func TestForwardWithoutCookieSendsNone(t *testing.T) {
	t.Parallel()

	var hadCookie bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadCookie = r.Header["Cookie"]
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	newRouter(NewForwarder(upstream.URL, time.Second, nil)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/genres", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, hadCookie)
}

func TestForwardNonJSONIs500(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<!doctype html><p>gateway</p>`))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	newRouter(NewForwarder(upstream.URL, time.Second, nil)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/home", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotEmpty(t, body.Message)
}

func TestForwardUnreachableIs500(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newRouter(NewForwarder("http://127.0.0.1:1/api", 200*time.Millisecond, nil)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proxy/home", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestPreflight(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newRouter(NewForwarder("http://unused", time.Second, nil)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/proxy/anything/here", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.Bytes())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	require.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestTarget(t *testing.T) {
	t.Parallel()

	f := NewForwarder("http://backend/api/", time.Second, nil)
	require.Equal(t, "http://backend/api/", f.Target("", ""))
	require.Equal(t, "http://backend/api/", f.Target("/", ""))
	require.Equal(t, "http://backend/api/manga?page=2", f.Target("/manga", "page=2"))
}
