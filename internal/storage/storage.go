// storage содержит контракты слоя хранилищ:
//   - Users — учётные записи в реляционной БД;
//   - Media — загрузка и удаление изображений во внешнем blob-хранилище.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pribylovaa/shop-auth/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/email).
	ErrAlreadyExists = errors.New("already exists")
)

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

// Users выполняет операции над учётными записями.
type Users interface {
	// CreateUser создаёт пользователя. Конфликт уникальности — ErrAlreadyExists.
	CreateUser(ctx context.Context, user *models.User) error
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByUsernameOrEmail находит пользователя по username ИЛИ email.
	UserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	// ExistsByUsernameOrEmail сообщает, занят ли username или email.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	// SetRefreshToken перезаписывает refresh-токен пользователя ("" — очистить).
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	// SwapRefreshToken атомарно заменяет old на new, только если текущее значение равно old.
	// Возвращает false, если значение уже другое.
	SwapRefreshToken(ctx context.Context, id uuid.UUID, old, new string) (bool, error)
	// DeleteUser удаляет пользователя.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Media — внешнее хранилище изображений.
type Media interface {
	// Upload сохраняет файл и возвращает его URL и ключ.
	Upload(ctx context.Context, file models.MediaFile) (models.MediaAsset, error)
	// Delete удаляет объект по ключу.
	Delete(ctx context.Context, publicID string) error
}

// UsersStorage — верхнеуровневый интерфейс хранилища учётных записей.
type UsersStorage interface {
	Users
	Close()
}
