package auth

import (
	"errors"
	"net/http"
)

// Error codes shared by the identity API and its clients.
const (
	CodeUserNotFound         = "auth/user-not-found"
	CodeWrongPassword        = "auth/wrong-password"
	CodeEmailAlreadyInUse    = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeTooManyRequests      = "auth/too-many-requests"
	CodePopupClosedByUser    = "auth/popup-closed-by-user"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
	CodeMissingDisplayName   = "auth/missing-display-name"
	CodeInvalidActionCode    = "auth/invalid-action-code"
	CodeInternal             = "auth/internal-error"

	// CodePermissionDenied is returned for missing or revoked sessions.
	CodePermissionDenied = "permission-denied"
)

const FallbackMessage = "Terjadi kesalahan. Silakan coba lagi."

var messages = map[string]string{
	CodeUserNotFound:         "Email tidak terdaftar.",
	CodeWrongPassword:        "Password salah.",
	CodeEmailAlreadyInUse:    "Email sudah digunakan.",
	CodeWeakPassword:         "Password minimal 6 karakter.",
	CodeInvalidEmail:         "Format email tidak valid.",
	CodeTooManyRequests:      "Terlalu banyak percobaan. Coba lagi nanti.",
	CodePopupClosedByUser:    "Login dibatalkan.",
	CodeNetworkRequestFailed: "Tidak ada koneksi internet.",
	CodeInvalidCredential:    "Email atau password salah.",
	CodeMissingDisplayName:   "Nama tidak boleh kosong",
}

// Message maps an error code to the text shown on the login screen.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return FallbackMessage
}

// ResetSentMessage confirms a password reset request.
const ResetSentMessage = "Link reset password telah dikirim ke email kamu!"

// Error is a coded identity failure.
type Error struct {
	Code string
}

func (e *Error) Error() string { return e.Code }

func newError(code string) *Error { return &Error{Code: code} }

// CodeOf extracts the code from err, or CodeInternal.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func statusFor(code string) int {
	switch code {
	case CodeEmailAlreadyInUse:
		return http.StatusConflict
	case CodeInvalidCredential, CodeWrongPassword, CodeUserNotFound, CodePermissionDenied:
		return http.StatusUnauthorized
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeOperationNotAllowed:
		return http.StatusNotFound
	case CodeInternal, CodeNetworkRequestFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
