// middleware — net/http мидлвары API: Recover, RequestID, Logging,
// Timeout, Metrics и SessionGuard для защищённых маршрутов.
package middleware

import (
	"net/http"
)

// Middleware оборачивает http.Handler. Совместим с chi.Router.Use.
type Middleware func(http.Handler) http.Handler

// Chain собирает обработчик: первый мидлвар в списке выполняется первым.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := range mws {
		h = mws[len(mws)-1-i](h)
	}
	return h
}

// statusWriter запоминает код ответа и число записанных байт
// для логов и метрик.
type statusWriter struct {
	http.ResponseWriter
	status int
	count  int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

// WriteHeader фиксирует первый записанный код.
func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.count += n
	return n, err
}

// Status — записанный код; 200, если хендлер не вызывал WriteHeader.
func (sw *statusWriter) Status() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}
