package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/pribylovaa/shop-auth/internal/errors"
	"github.com/pribylovaa/shop-auth/internal/pkg/log"
)

// Recover превращает panic хендлера в 500 с нейтральным сообщением;
// значение паники и стек остаются только в логе.
// http.ErrAbortHandler пробрасывается дальше: так net/http обрывает ответ.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).Error("handler_panic",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, fmt.Errorf("recovered panic: %v", rec))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
