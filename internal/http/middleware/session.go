package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/shop-auth/internal/errors"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/pkg/log"
	"github.com/pribylovaa/shop-auth/internal/service"
)

// CookieAccessToken — имя cookie с access-токеном.
const CookieAccessToken = "accessToken"

// Authenticator — операции сервиса, нужные SessionGuard.
type Authenticator interface {
	VerifyAccessToken(token string) (*models.Claims, error)
	Principal(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error)
}

// AuthResult — итог авторизации запроса.
// Ровно одно из полей заполнено: Principal при успехе, Err при отказе.
type AuthResult struct {
	Principal *models.PublicUser
	Err       error
}

// OK сообщает, что запрос авторизован.
func (a AuthResult) OK() bool { return a.Err == nil && a.Principal != nil }

type principalKey struct{}

// Authorize проверяет access-токен запроса и загружает принципала.
// Источник токена: заголовок "Authorization: Bearer <token>", затем cookie accessToken.
// Отсутствие, битый формат, чужая подпись и истёкший срок дают один и тот же
// service.ErrUnauthorized.
func Authorize(r *http.Request, auth Authenticator) AuthResult {
	token := extractToken(r)
	if token == "" {
		return AuthResult{Err: service.ErrUnauthorized}
	}

	claims, err := auth.VerifyAccessToken(token)
	if err != nil {
		return AuthResult{Err: err}
	}

	principal, err := auth.Principal(r.Context(), claims.UserID)
	if err != nil {
		return AuthResult{Err: err}
	}

	return AuthResult{Principal: principal}
}

// SessionGuard пропускает к хендлеру только авторизованные запросы
// и кладёт принципала в контекст. Отказ отвечает до вызова хендлера.
func SessionGuard(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := Authorize(r, auth)
			if !res.OK() {
				log.From(r.Context()).Debug("session_rejected",
					slog.String("path", r.URL.Path),
				)
				apierrors.WriteError(w, r, res.Err)
				return
			}

			ctx := WithPrincipal(r.Context(), res.Principal)
			ctx = log.With(ctx, slog.String("user_id", res.Principal.ID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal кладёт принципала в контекст.
func WithPrincipal(ctx context.Context, p *models.PublicUser) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достаёт принципала, положенного SessionGuard.
func PrincipalFrom(ctx context.Context) (*models.PublicUser, bool) {
	p, ok := ctx.Value(principalKey{}).(*models.PublicUser)
	return p, ok && p != nil
}

// extractToken: Bearer-заголовок приоритетнее cookie.
func extractToken(r *http.Request) string {
	const prefix = "Bearer "

	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		if token := strings.TrimSpace(h[len(prefix):]); token != "" {
			return token
		}
	}

	if c, err := r.Cookie(CookieAccessToken); err == nil {
		return strings.TrimSpace(c.Value)
	}

	return ""
}
