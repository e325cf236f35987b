package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/shop-auth/internal/pkg/log"
)

// Logging кладёт request-scoped логгер в контекст и пишет строку на каждый запрос.
// Тело, query и cookie не логируются: в них бывают пароли и токены.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()

			lg := base
			if id := RequestIDFrom(r.Context()); id != "" {
				lg = base.With(slog.String("request_id", id))
			}

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(log.Into(r.Context(), lg)))

			status := sw.Status()
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			lg.LogAttrs(r.Context(), level, "http_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", sw.count),
				slog.Duration("took", time.Since(began)),
			)
		})
	}
}
