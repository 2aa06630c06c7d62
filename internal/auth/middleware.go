package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

var errNoToken = errors.New("missing bearer token")

// Verifier checks a raw token against the signing key and the user's current
// token version, so logged-out tokens stop working immediately.
type Verifier struct {
	Tokens TokenService
	Repo   *Repo
}

func (v Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := v.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if v.Repo != nil {
		current, err := v.Repo.GetTokenVersion(ctx, claims.UserID)
		if err != nil {
			return nil, err
		}
		if current != claims.TokenVersion {
			return nil, errors.New("token revoked")
		}
	}
	return claims, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > len("Bearer ") && strings.EqualFold(h[:len("Bearer ")], "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

// Authenticate resolves the user id from a bearer header or, for websocket
// upgrades that cannot set headers, a token query parameter.
func (v Verifier) Authenticate(r *http.Request) (string, error) {
	raw := bearer(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return "", errNoToken
	}
	claims, err := v.Verify(r.Context(), raw)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func Middleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNoToken.Error(), "code": CodePermissionDenied})
			return
		}
		claims, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": CodePermissionDenied})
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
