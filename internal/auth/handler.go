package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"komikverse/internal/analytics"
	"komikverse/internal/logging"
)

const (
	MinPasswordLen = 6
	maxPasswordLen = 72
	resetTTL       = time.Hour
	stateCookie    = "komik_oauth_state"
)

type Handler struct {
	Repo    *Repo
	Tokens  TokenService
	Google  *GoogleProvider
	Mailer  Mailer
	Tracker *analytics.Tracker
	Limiter *FailureLimiter
	SiteURL string
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewHandler(repo *Repo, tokens TokenService, tracker *analytics.Tracker, logger *zap.Logger) *Handler {
	logger = logging.OrNop(logger)
	return &Handler{
		Repo:    repo,
		Tokens:  tokens,
		Mailer:  LogMailer{Logger: logger},
		Tracker: tracker,
		Limiter: NewFailureLimiter(5, 15*time.Minute),
		Logger:  logger,
		Now:     time.Now,
	}
}

func (h *Handler) Verifier() Verifier {
	return Verifier{Tokens: h.Tokens, Repo: h.Repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/reset", h.requestReset)
	rg.POST("/reset/confirm", h.confirmReset)
	rg.GET("/google/start", h.googleStart)
	rg.GET("/google/callback", h.googleCallback)

	protected := rg.Group("", Middleware(h.Verifier()))
	protected.GET("/me", h.me)
	protected.POST("/logout", h.logout)
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func abortCode(c *gin.Context, code string) {
	c.JSON(statusFor(code), gin.H{"error": Message(code), "code": code})
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func validEmail(email string) bool {
	if len(email) > 255 || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func (h *Handler) session(c *gin.Context, status int, u *User) {
	token, exp, err := h.Tokens.Sign(u)
	if err != nil {
		h.Logger.Error("sign token failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	}
	c.JSON(status, gin.H{
		"user":       u.Public(),
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Email = normalizeEmail(req.Email)

	switch {
	case req.DisplayName == "":
		abortCode(c, CodeMissingDisplayName)
		return
	case !validEmail(req.Email):
		abortCode(c, CodeInvalidEmail)
		return
	case len(req.Password) < MinPasswordLen || len(req.Password) > maxPasswordLen:
		abortCode(c, CodeWeakPassword)
		return
	}

	ctx := c.Request.Context()
	if u, err := h.Repo.GetByEmail(ctx, req.Email); err != nil {
		h.Logger.Error("lookup email failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	} else if u != nil {
		abortCode(c, CodeEmailAlreadyInUse)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		abortCode(c, CodeInternal)
		return
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	}
	if err := h.Repo.CreateUser(ctx, u); err != nil {
		// unique constraint races land here
		if existing, _ := h.Repo.GetByEmail(ctx, req.Email); existing != nil {
			abortCode(c, CodeEmailAlreadyInUse)
			return
		}
		h.Logger.Error("create user failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	}

	h.Tracker.SignUp(ctx, u.ID, "email")
	h.session(c, http.StatusCreated, &u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		abortCode(c, CodeInvalidEmail)
		return
	}
	if h.Limiter.Blocked(email) {
		abortCode(c, CodeTooManyRequests)
		return
	}

	ctx := c.Request.Context()
	u, err := h.Repo.GetByEmail(ctx, email)
	if err != nil {
		h.Logger.Error("lookup email failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	}
	// one code for both unknown email and bad password
	if u == nil || u.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		h.Limiter.Fail(email)
		abortCode(c, CodeInvalidCredential)
		return
	}

	h.Limiter.Reset(email)
	h.Tracker.Login(ctx, u.ID, "email")
	h.session(c, http.StatusOK, u)
}

type resetReq struct {
	Email string `json:"email"`
}

func (h *Handler) requestReset(c *gin.Context) {
	var req resetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		abortCode(c, CodeInvalidEmail)
		return
	}

	ctx := c.Request.Context()
	u, err := h.Repo.GetByEmail(ctx, email)
	if err != nil {
		h.Logger.Error("lookup email failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	}
	if u != nil {
		token := uuid.NewString()
		if err := h.Repo.CreateReset(ctx, token, u.ID, h.now().Add(resetTTL)); err != nil {
			h.Logger.Error("create reset failed", zap.Error(err))
			abortCode(c, CodeInternal)
			return
		}
		link := h.SiteURL + "/login?mode=resetPassword&oobCode=" + url.QueryEscape(token)
		if err := h.Mailer.SendPasswordReset(ctx, email, link); err != nil {
			h.Logger.Error("send reset failed", zap.Error(err))
			abortCode(c, CodeNetworkRequestFailed)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": ResetSentMessage})
}

type confirmResetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) confirmReset(c *gin.Context) {
	var req confirmResetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(req.Password) < MinPasswordLen || len(req.Password) > maxPasswordLen {
		abortCode(c, CodeWeakPassword)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		abortCode(c, CodeInternal)
		return
	}
	if err := h.Repo.ConsumeReset(c.Request.Context(), strings.TrimSpace(req.Token), string(hash), h.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			abortCode(c, CodeInvalidActionCode)
			return
		}
		h.Logger.Error("consume reset failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *Handler) me(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	u, err := h.Repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		abortCode(c, CodeInternal)
		return
	}
	if u == nil {
		abortCode(c, CodeUserNotFound)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if err := h.Repo.BumpTokenVersion(c.Request.Context(), claims.UserID); err != nil {
		h.Logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) googleStart(c *gin.Context) {
	if h.Google == nil {
		abortCode(c, CodeOperationNotAllowed)
		return
	}
	state, err := randomState()
	if err != nil {
		abortCode(c, CodeInternal)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/api/auth/google", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.Google.AuthCodeURL(state))
}

func (h *Handler) googleCallback(c *gin.Context) {
	if h.Google == nil {
		abortCode(c, CodeOperationNotAllowed)
		return
	}
	if c.Query("error") != "" {
		abortCode(c, CodePopupClosedByUser)
		return
	}
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		abortCode(c, CodeInvalidCredential)
		return
	}
	c.SetCookie(stateCookie, "", -1, "/api/auth/google", "", c.Request.TLS != nil, true)

	ctx := c.Request.Context()
	profile, err := h.Google.Profile(ctx, c.Query("code"))
	if err != nil {
		h.Logger.Warn("google profile failed", zap.Error(err))
		abortCode(c, CodeNetworkRequestFailed)
		return
	}
	// Accounts are linked by email, so an unverified address must never sign in.
	if !profile.EmailVerified {
		h.Logger.Warn("google email not verified", zap.String("sub", profile.Sub))
		abortCode(c, CodeInvalidCredential)
		return
	}

	u, err := h.upsertGoogleUser(c, profile)
	if err != nil {
		h.Logger.Error("google user upsert failed", zap.Error(err))
		abortCode(c, CodeInternal)
		return
	}
	h.Tracker.Login(ctx, u.ID, "google")
	h.session(c, http.StatusOK, u)
}

func (h *Handler) upsertGoogleUser(c *gin.Context, p *GoogleProfile) (*User, error) {
	ctx := c.Request.Context()
	if u, err := h.Repo.GetByGoogleSub(ctx, p.Sub); err != nil || u != nil {
		return u, err
	}
	email := normalizeEmail(p.Email)
	existing, err := h.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := h.Repo.LinkGoogle(ctx, existing.ID, p.Sub, p.Name, p.Picture); err != nil {
			return nil, err
		}
		return h.Repo.GetByID(ctx, existing.ID)
	}
	u := User{ID: uuid.NewString(), Email: email, DisplayName: p.Name, PhotoURL: p.Picture, GoogleSub: p.Sub}
	if err := h.Repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}
