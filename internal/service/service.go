// service содержит бизнес-логику сервиса учётных записей:
// выпуск, проверку и ротацию пар токенов, вход/выход,
// регистрацию пользователя сагой с компенсациями.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования, если переданные хранилища потокобезопасны.
//   - Ошибки возвращаются как обёртки над сентинелами ниже;
//     транспорт сопоставляет их с HTTP-статусами (internal/errors).
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pribylovaa/shop-auth/internal/cache"
	"github.com/pribylovaa/shop-auth/internal/config"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

var (
	// ErrValidation — некорректный или неполный ввод. HTTP 400.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound — запрошенная сущность не существует. HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict — username или email уже заняты. HTTP 401 (контракт регистрации).
	ErrConflict = errors.New("user with username or email already exists")

	// ErrUnauthorized — любая ошибка аутентификации: неверные учётные данные,
	// битый/просроченный/чужой токен, устаревший refresh-токен. HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream — хранилище медиа отклонило операцию. HTTP 502.
	ErrUpstream = errors.New("media store failure")

	// ErrUpstreamTimeout — хранилище медиа не ответило вовремя;
	// результат операции на удалённой стороне неизвестен. HTTP 504.
	ErrUpstreamTimeout = fmt.Errorf("%w: timeout", ErrUpstream)

	// ErrInternal — непредвиденная ошибка. HTTP 500.
	ErrInternal = errors.New("internal error")
)

// ValidationError перечисляет поля, не прошедшие проверку.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}

	return e.Reason + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Service описывает бизнес-логику сервиса.
type Service struct {
	users  storage.Users
	media  storage.Media
	cfg    config.AuthConfig
	mcfg   config.MediaConfig
	pcache cache.PrincipalCache // может быть nil, если кэш не сконфигурирован
	pttl   time.Duration
	now    func() time.Time
}

// New создаёт новый экземпляр Service.
func New(users storage.Users, media storage.Media, cfg config.AuthConfig, mcfg config.MediaConfig) *Service {
	return &Service{
		users: users,
		media: media,
		cfg:   cfg,
		mcfg:  mcfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetPrincipalCache устанавливает кэш принципалов (опционально).
func (s *Service) SetPrincipalCache(c cache.PrincipalCache, ttl time.Duration) {
	s.pcache = c
	s.pttl = ttl
}
