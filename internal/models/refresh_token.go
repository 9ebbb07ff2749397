package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — данные refresh-токена для управления сессиями.
//
// В БД хранится только sha256-хэш секрета (base64url); сам секрет
// отдаётся клиенту один раз при выпуске. Инварианты:
//   - токен пригоден к использованию только при !Revoked и до ExpiresAt;
//   - однажды употреблённый токен (Used) всегда отозван — ротация
//     одноразовая, второго успешного refresh по тому же секрету не бывает.
type RefreshToken struct {
	TokenHash  string
	UserID     uuid.UUID
	ClientInfo string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Revoked    bool
	Used       bool
}

// Valid сообщает, пригоден ли токен к обмену в момент now.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Expired сообщает, истёк ли токен к моменту now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Consume возвращает копию в терминальном состоянии «употреблён»:
// Used и Revoked выставлены одновременно.
func (t RefreshToken) Consume() RefreshToken {
	t.Used = true
	t.Revoked = true

	return t
}

// Revoke возвращает отозванную копию. Идемпотентно.
func (t RefreshToken) Revoke() RefreshToken {
	t.Revoked = true

	return t
}
