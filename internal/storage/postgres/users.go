package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

const userColumns = `
	id, username, email, password_hash, full_name,
	avatar_url, avatar_public_id, cover_url, cover_public_id,
	COALESCE(refresh_token, ''), created_at, updated_at
`

// CreateUser создает нового пользователя в БД.
// Уникальные индексы по username/email — окончательный арбитр конкурентных регистраций.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.CreateUser"

	query := `
		INSERT INTO users(
			id, username, email, password_hash, full_name,
			avatar_url, avatar_public_id, cover_url, cover_public_id,
			refresh_token, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
	`

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Avatar.URL,
		user.Avatar.PublicID,
		user.CoverImage.URL,
		user.CoverImage.PublicID,
		user.RefreshToken,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByUsernameOrEmail находит пользователя по username или email.
// Пустые значения в поиске не участвуют.
func (s *Storage) UserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	const op = "storage.postgres.UserByUsernameOrEmail"

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		ORDER BY created_at
		LIMIT 1
	`

	user, err := scanUser(s.db.QueryRow(ctx, query, username, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ExistsByUsernameOrEmail сообщает, занят ли username или email.
func (s *Storage) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const op = "storage.postgres.ExistsByUsernameOrEmail"

	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		)
	`

	var exists bool
	if err := s.db.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// SetRefreshToken перезаписывает refresh-токен пользователя; "" сохраняется как NULL.
func (s *Storage) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage.postgres.SetRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = NULLIF($2, ''), updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SwapRefreshToken заменяет refresh-токен на new, только если текущее значение равно old.
// Сравнение и запись выполняются одним UPDATE, поэтому из двух конкурентных
// ротаций одного и того же токена успешна ровно одна.
func (s *Storage) SwapRefreshToken(ctx context.Context, id uuid.UUID, old, new string) (bool, error) {
	const op = "storage.postgres.SwapRefreshToken"

	query := `
		UPDATE users
		SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
	`

	cmdTag, err := s.db.Exec(ctx, query, id, old, new)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// DeleteUser удаляет пользователя по ID.
func (s *Storage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteUser"

	cmdTag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Avatar.URL,
		&user.Avatar.PublicID,
		&user.CoverImage.URL,
		&user.CoverImage.PublicID,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return &user, nil
}
