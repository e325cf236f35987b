package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair — пара токенов, выдаваемая при входе и ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT, проверяется без обращения к хранилищу;
//   - RefreshToken — долгоживущий JWT, его значение дополнительно хранится
//     в записи пользователя и сверяется при ротации;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Claims — проверенные утверждения access/refresh-токена.
type Claims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}
