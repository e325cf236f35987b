// handlers — REST-эндпойнты /api/v1/users.
// Хендлеры разбирают запрос, вызывают сервис и пишут единый конверт;
// ошибки сопоставляются со статусами в internal/errors.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/shop-auth/internal/config"
	apierrors "github.com/pribylovaa/shop-auth/internal/errors"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/service"
)

// maxJSONBody — лимит тела для JSON-эндпойнтов.
const maxJSONBody = 16 << 10

// Users — операции сервиса, которые вызывают хендлеры.
type Users interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, username, email, password string) (*models.PublicUser, *models.TokenPair, error)
	RotateRefreshToken(ctx context.Context, presented string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	UserByID(ctx context.Context, rawID string) (*models.PublicUser, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	Users          Users
	Cookie         config.CookieConfig
	MaxUploadBytes int64
}

func New(users Users, cookie config.CookieConfig, maxUploadBytes int64) *Handlers {
	return &Handlers{Users: users, Cookie: cookie, MaxUploadBytes: maxUploadBytes}
}

// HealthCheck — liveness API-сервера.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "OK")
}

// decodeStrict — строгий JSON-декодер с лимитом тела: неизвестные поля запрещены.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

func invalidBody() error {
	return &service.ValidationError{Reason: "invalid request body"}
}
