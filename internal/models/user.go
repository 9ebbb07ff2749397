package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
//
// Флаги состояния:
//   - Active — учётка не деактивирована администратором;
//   - Locked — учётка заблокирована после серии неудачных входов;
//   - Enabled — учётка включена (подтверждена);
//   - CredentialsExpired — пароль устарел и требует смены.
//
// FailedAttempts — счётчик неудачных попыток входа подряд; сбрасывается
// при успешном входе.
type User struct {
	ID                 uuid.UUID
	Username           string
	Email              string
	PasswordHash       string
	FirstName          string
	LastName           string
	Active             bool
	Locked             bool
	Enabled            bool
	CredentialsExpired bool
	Roles              []Role
	FailedAttempts     int
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Principal — минимальное представление аутентифицированной стороны,
// не привязанное к конкретному фреймворку безопасности.
type Principal interface {
	// Subject возвращает уникальный идентификатор стороны (username).
	Subject() string
	// Authorities возвращает имена ролей.
	Authorities() []string
	// IsUsable сообщает, допускается ли вход.
	IsUsable() bool
}

// CanLogin сообщает, допускается ли вход для этой учётки.
func (u *User) CanLogin() bool {
	return u.Active && !u.Locked && u.Enabled && !u.CredentialsExpired
}

// Subject возвращает username — субъект для access-токена.
func (u *User) Subject() string { return u.Username }

// Authorities возвращает имена ролей пользователя.
func (u *User) Authorities() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}

	return names
}

// IsUsable — алиас CanLogin для интерфейса Principal.
func (u *User) IsUsable() bool { return u.CanLogin() }

// FullName возвращает полное имя пользователя.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAdmin сообщает, есть ли у пользователя роль ADMIN.
func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r.Name == RoleAdmin {
			return true
		}
	}

	return false
}

// WithFailedAttempt возвращает копию с инкрементированным счётчиком
// неудачных входов. Решение о блокировке (locked) принимает вызывающая
// сторона — политика порога не живёт в модели.
func (u User) WithFailedAttempt(locked bool, now time.Time) User {
	u.FailedAttempts++
	if locked {
		u.Locked = true
	}
	u.UpdatedAt = now

	return u
}

// WithSuccessfulLogin возвращает копию со сброшенным счётчиком
// неудачных входов и обновлённой отметкой последнего входа.
func (u User) WithSuccessfulLogin(now time.Time) User {
	u.FailedAttempts = 0
	u.LastLoginAt = &now
	u.UpdatedAt = now

	return u
}

// WithPasswordHash возвращает копию с заменённым хэшем пароля.
// Флаг устаревших кредов снимается: пароль только что сменили.
func (u User) WithPasswordHash(hash string, now time.Time) User {
	u.PasswordHash = hash
	u.CredentialsExpired = false
	u.UpdatedAt = now

	return u
}
