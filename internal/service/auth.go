package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/pkg/log"
	"github.com/pribylovaa/shop-auth/internal/pkg/redact"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

// Login выполняет вход по username или email и паролю.
// Неизвестный пользователь и неверный пароль неразличимы: ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, email, password string) (*models.PublicUser, *models.TokenPair, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	username = normalizeUsername(username)
	email = normalizeEmail(email)

	if username == "" && email == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, &ValidationError{
			Fields: []string{"username", "email"},
			Reason: "username or email is required",
		})
	}

	user, err := s.users.UserByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("login_unknown_user",
				slog.String("op", op),
				slog.String("login", redact.Login(firstNonEmpty(username, email))),
			)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Info("login_bad_password",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	pair, err := s.IssueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_logged_in",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return user.Public(), pair, nil
}

// Logout очищает сохранённый refresh-токен: дальнейшие ротации невозможны.
// Выданные access-токены остаются действительны до истечения срока.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.auth.Logout"

	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if s.pcache != nil {
		if err := s.pcache.Delete(ctx, userID); err != nil {
			log.From(ctx).Warn("principal_cache_delete_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	log.From(ctx).Info("user_logged_out",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	return nil
}

// UserByID возвращает публичный профиль. Некорректный id — ErrNotFound.
func (s *Service) UserByID(ctx context.Context, rawID string) (*models.PublicUser, error) {
	const op = "service.auth.UserByID"

	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

// Principal возвращает публичную проекцию владельца проверенного токена.
// При сконфигурированном кэше сначала читает Redis; ошибки кэша не фатальны.
// Пользователь, удалённый после выдачи токена, — ErrUnauthorized.
func (s *Service) Principal(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	const op = "service.auth.Principal"

	lg := log.From(ctx)

	if s.pcache != nil {
		pu, ok, err := s.pcache.Get(ctx, userID)
		if err != nil {
			lg.Warn("principal_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if ok {
			return pu, nil
		}
	}

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pu := user.Public()

	if s.pcache != nil {
		if err := s.pcache.Set(ctx, pu, s.pttl); err != nil {
			lg.Warn("principal_cache_set_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	return pu, nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string, cost int) (string, error) {
	const op = "service.auth.hashPassword"

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func normalizeEmail(s string) string    { return strings.ToLower(strings.TrimSpace(s)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
