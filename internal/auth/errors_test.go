package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Email tidak terdaftar.", Message(CodeUserNotFound))
	require.Equal(t, "Password salah.", Message(CodeWrongPassword))
	require.Equal(t, "Login dibatalkan.", Message(CodePopupClosedByUser))
	require.Equal(t, "Tidak ada koneksi internet.", Message(CodeNetworkRequestFailed))
	require.Equal(t, "Email atau password salah.", Message(CodeInvalidCredential))
	require.Equal(t, FallbackMessage, Message("auth/something-new"))
	require.Equal(t, FallbackMessage, Message(""))
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("login: %w", newError(CodeWeakPassword))
	require.Equal(t, CodeWeakPassword, CodeOf(wrapped))
	require.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestTokenRoundTripAndTamper(t *testing.T) {
	t.Parallel()

	ts := TokenService{Secret: []byte("k"), Issuer: "komikverse", Duration: time.Hour}
	tok, _, err := ts.Sign(&User{ID: "u1", Email: "a@b.co", TokenVersion: 3})
	require.NoError(t, err)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, 3, claims.TokenVersion)

	_, err = TokenService{Secret: []byte("other"), Issuer: "komikverse"}.Parse(tok)
	require.Error(t, err)
	_, err = TokenService{Secret: []byte("k"), Issuer: "someone-else"}.Parse(tok)
	require.Error(t, err)
}

func TestFailureLimiterRefills(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewFailureLimiter(2, 10*time.Minute)
	l.Now = func() time.Time { return now }

	l.Fail("A@x.io")
	require.False(t, l.Blocked("a@x.io"))
	l.Fail("a@x.io")
	require.True(t, l.Blocked("a@x.io"))

	now = now.Add(5 * time.Minute)
	require.False(t, l.Blocked("a@x.io"))

	l.Fail("a@x.io")
	l.Reset("a@x.io")
	require.False(t, l.Blocked("a@x.io"))
}
