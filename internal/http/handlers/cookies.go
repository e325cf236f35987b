package handlers

import (
	"net/http"
	"strings"

	"github.com/pribylovaa/shop-auth/internal/http/middleware"
	"github.com/pribylovaa/shop-auth/internal/models"
)

// Имена cookie с токенами.
const (
	CookieAccessToken  = middleware.CookieAccessToken
	CookieRefreshToken = "refreshToken"
)

// setTokenCookies выставляет обе cookie. HttpOnly всегда;
// Secure и SameSite только если заданы в конфиге (по умолчанию выключены).
func (h *Handlers) setTokenCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, h.cookie(CookieAccessToken, pair.AccessToken, 0))
	http.SetCookie(w, h.cookie(CookieRefreshToken, pair.RefreshToken, 0))
}

func (h *Handlers) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(CookieAccessToken, "", -1))
	http.SetCookie(w, h.cookie(CookieRefreshToken, "", -1))
}

func (h *Handlers) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: sameSite(h.Cookie.SameSite),
	}
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return 0
	}
}
