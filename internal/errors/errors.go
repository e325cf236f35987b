// errors стандартизирует ответы HTTP-слоя.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - HTTP-статус;
//   - конверт {statusCode, message, success:false} с безопасным message.
//
// Внутренние детали (SQL, ответы хранилища медиа) наружу не попадают:
// для 5xx сообщение нейтральное, сама ошибка пишется в лог.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/shop-auth/internal/pkg/log"
	"github.com/pribylovaa/shop-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrorResponse — конверт ошибки.
// Errors перечисляет поля, не прошедшие валидацию.
type ErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
	RequestID  string   `json:"requestId,omitempty"`
}

// Response — конверт успешного ответа.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ToHTTP сопоставляет ошибку сервисного слоя со статусом и конвертом.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500, чтобы не замаскировать баг;
//   - ValidationError -> 400 с перечнем полей;
//   - Unauthorized -> 401 (любая причина, одно и то же сообщение);
//   - Conflict -> 401 (контракт регистрации), без данных существующей записи;
//   - NotFound -> 404;
//   - UpstreamTimeout -> 504, Upstream -> 502;
//   - отмена клиентом -> 499, истёкший дедлайн запроса -> 504;
//   - прочее -> 500.
func ToHTTP(err error) (int, ErrorResponse) {
	status, msg := http.StatusInternalServerError, "something went wrong"
	var fields []string

	var verr *service.ValidationError

	switch {
	case err == nil:
	case errors.As(err, &verr):
		status, msg, fields = http.StatusBadRequest, verr.Error(), verr.Fields
	case errors.Is(err, service.ErrValidation):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized request"
	case errors.Is(err, service.ErrConflict):
		status, msg = http.StatusUnauthorized, "user with username or email already exists"
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrUpstreamTimeout):
		status, msg = http.StatusGatewayTimeout, "media store timed out"
	case errors.Is(err, service.ErrUpstream):
		status, msg = http.StatusBadGateway, "media upload failed"
	case errors.Is(err, context.Canceled):
		status, msg = StatusClientClosedRequest, "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "request timed out"
	}

	return status, ErrorResponse{
		StatusCode: status,
		Message:    msg,
		Success:    false,
		Errors:     fields,
	}
}

// WriteError пишет конверт ошибки; request_id берётся из X-Request-Id.
// Ошибки 5xx логируются целиком.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.RequestID = rid
	}

	if status >= http.StatusInternalServerError {
		log.From(r.Context()).Error("request_failed",
			slog.Int("status", status),
			slog.Any("err", err),
		)
	}

	writeJSON(w, status, resp)
}

// WriteJSON пишет конверт успешного ответа.
func WriteJSON(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
