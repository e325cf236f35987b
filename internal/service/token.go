package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/shop-auth/internal/metrics"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/pkg/log"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

// IssueTokenPair выпускает новую пару токенов и перезаписывает
// сохранённый refresh-токен пользователя.
func (s *Service) IssueTokenPair(ctx context.Context, userID uuid.UUID) (*models.TokenPair, error) {
	const op = "service.token.IssueTokenPair"

	lg := log.From(ctx)

	if _, err := s.users.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.mintPair(userID)
	if err != nil {
		lg.Error("token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.SetRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("save_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// VerifyAccessToken проверяет подпись и срок access-токена без обращения к хранилищу.
// Любая причина отказа даёт ErrUnauthorized.
func (s *Service) VerifyAccessToken(token string) (*models.Claims, error) {
	const op = "service.token.VerifyAccessToken"

	claims, err := s.parseToken(token, s.cfg.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// RotateRefreshToken обменивает действующий refresh-токен на новую пару.
//
// Предъявленный токен должен совпадать с сохранённым у пользователя.
// Замена выполняется через SwapRefreshToken: из конкурентных ротаций
// одного токена успешна ровно одна, остальные получают ErrUnauthorized.
// Повторное предъявление заменённого токена только логируется:
// остальные сессии пользователя не отзываются.
func (s *Service) RotateRefreshToken(ctx context.Context, presented string) (*models.TokenPair, error) {
	const op = "service.token.RotateRefreshToken"

	lg := log.From(ctx)

	claims, err := s.parseToken(presented, s.cfg.RefreshTokenSecret)
	if err != nil {
		metrics.TokenRotations.WithLabelValues(metrics.RotationInvalid).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.TokenRotations.WithLabelValues(metrics.RotationInvalid).Inc()
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		metrics.TokenRotations.WithLabelValues(metrics.RotationError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshToken)) != 1 {
		lg.Warn("refresh_token_reuse_detected",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		metrics.TokenRotations.WithLabelValues(metrics.RotationStale).Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	pair, err := s.mintPair(user.ID)
	if err != nil {
		metrics.TokenRotations.WithLabelValues(metrics.RotationError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	swapped, err := s.users.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		lg.Error("swap_refresh_token_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		metrics.TokenRotations.WithLabelValues(metrics.RotationError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !swapped {
		lg.Warn("refresh_token_rotation_lost",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		metrics.TokenRotations.WithLabelValues(metrics.RotationStale).Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	metrics.TokenRotations.WithLabelValues(metrics.RotationOK).Inc()
	lg.Info("refresh_token_rotated",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return pair, nil
}

// mintPair подписывает access и refresh токены для пользователя.
// Каждый токен несёт уникальный jti, поэтому две пары одного пользователя
// никогда не совпадают, даже если выпущены в одну секунду.
func (s *Service) mintPair(userID uuid.UUID) (*models.TokenPair, error) {
	now := s.now()

	access, accessExp, err := s.signToken(userID, s.cfg.AccessTokenSecret, s.cfg.AccessTokenTTL, now)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.signToken(userID, s.cfg.RefreshTokenSecret, s.cfg.RefreshTokenTTL, now)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) signToken(userID uuid.UUID, secret string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp, nil
}

// parseToken проверяет токен секретом secret.
// Неверная подпись, формат, issuer или истёкший срок — ErrUnauthorized.
func (s *Service) parseToken(token, secret string) (*models.Claims, error) {
	var claims jwt.RegisteredClaims

	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &models.Claims{UserID: uid, ExpiresAt: claims.ExpiresAt.Time.UTC()}, nil
}
