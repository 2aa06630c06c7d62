// Package session is the client-side authentication context: it holds the
// signed-in user, notifies subscribers on change, and wraps the identity API.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"komikverse/internal/auth"
	"komikverse/internal/logging"
	"komikverse/pkg/models"
)

const authPrefix = "/api/auth"

// Listener receives the current user (nil when signed out).
type Listener func(user *models.User)

type sessionResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// Context is created per client and passed to whatever needs identity.
// Loading stays true until Init has resolved the stored token.
type Context struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenStore
	Logger  *zap.Logger

	mu      sync.Mutex
	user    *models.User
	token   string
	loading bool
	subs    map[int]Listener
	nextID  int
}

func New(baseURL string, tokens TokenStore, logger *zap.Logger) *Context {
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	return &Context{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Tokens:  tokens,
		Logger:  logging.OrNop(logger),
		loading: true,
		subs:    make(map[int]Listener),
	}
}

// Init resolves the stored token against /me and fires the first
// notification. A rejected token is cleared; a network failure keeps it
// for the next run.
func (s *Context) Init(ctx context.Context) error {
	token, err := s.Tokens.Load()
	if err != nil {
		s.Logger.Warn("load token failed", zap.Error(err))
	}

	var user *models.User
	if token != "" {
		var u models.User
		err = s.doJSON(ctx, http.MethodGet, "/me", token, nil, &u)
		switch {
		case err == nil:
			user = &u
		case auth.CodeOf(err) == auth.CodeNetworkRequestFailed:
			s.Logger.Warn("could not verify stored session", zap.Error(err))
			token = ""
		default:
			if cerr := s.Tokens.Clear(); cerr != nil {
				s.Logger.Warn("clear token failed", zap.Error(cerr))
			}
			token = ""
		}
	}

	s.mu.Lock()
	s.user, s.token, s.loading = user, token, false
	s.mu.Unlock()
	s.notify()
	return nil
}

// Teardown drops every subscriber.
func (s *Context) Teardown() {
	s.mu.Lock()
	s.subs = make(map[int]Listener)
	s.mu.Unlock()
}

func (s *Context) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token is the bearer token for the current session, or "".
func (s *Context) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Context) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe registers fn and returns its unsubscribe func. fn is called
// immediately when Init has already completed.
func (s *Context) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	ready := !s.loading
	s.mu.Unlock()

	if ready {
		fn(s.User())
	}
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Context) notify() {
	s.mu.Lock()
	subs := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	user := s.User()
	for _, fn := range subs {
		fn(user)
	}
}

func (s *Context) establish(user models.User, token string) (*models.User, error) {
	if err := s.Tokens.Save(token); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user, s.token = &user, token
	s.mu.Unlock()
	s.notify()
	return s.User(), nil
}

func (s *Context) LoginWithEmail(ctx context.Context, email, password string) (*models.User, error) {
	var resp sessionResponse
	err := s.doJSON(ctx, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return s.establish(resp.User, resp.Token)
}

// RegisterWithEmail creates the account with its display name set.
func (s *Context) RegisterWithEmail(ctx context.Context, email, password, displayName string) (*models.User, error) {
	var resp sessionResponse
	payload := map[string]string{"email": email, "password": password, "displayName": displayName}
	if err := s.doJSON(ctx, http.MethodPost, "/register", "", payload, &resp); err != nil {
		return nil, err
	}
	return s.establish(resp.User, resp.Token)
}

// GoogleStartURL is where a browser begins the Google consent flow.
func (s *Context) GoogleStartURL() string {
	return s.BaseURL + authPrefix + "/google/start"
}

// LoginWithGoogle hands the start URL to prompt, which returns the token
// shown by the callback page. An empty token means the user gave up.
func (s *Context) LoginWithGoogle(ctx context.Context, prompt func(startURL string) (string, error)) (*models.User, error) {
	token, err := prompt(s.GoogleStartURL())
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &auth.Error{Code: auth.CodePopupClosedByUser}
	}
	var u models.User
	if err := s.doJSON(ctx, http.MethodGet, "/me", token, nil, &u); err != nil {
		return nil, err
	}
	return s.establish(u, token)
}

func (s *Context) ResetPassword(ctx context.Context, email string) error {
	return s.doJSON(ctx, http.MethodPost, "/reset", "", map[string]string{"email": email}, nil)
}

// Logout revokes the session server-side and always clears it locally.
func (s *Context) Logout(ctx context.Context) error {
	token := s.Token()
	var remote error
	if token != "" {
		remote = s.doJSON(ctx, http.MethodPost, "/logout", token, nil, nil)
	}

	s.mu.Lock()
	s.user, s.token = nil, ""
	s.mu.Unlock()
	local := s.Tokens.Clear()
	s.notify()

	// already revoked
	if code := auth.CodeOf(remote); code == auth.CodePermissionDenied || code == auth.CodeInvalidCredential {
		remote = nil
	}
	return errors.Join(remote, local)
}
