package storage

import (
	"context"
	"errors"
	"time"

	"authcore/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/роль/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/email/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя вместе со связями ролей.
	SaveUser(ctx context.Context, user *models.User) error
	// UpdateUser сохраняет изменяемые поля существующего пользователя
	// (хэш пароля, флаги состояния, счётчик неудачных входов, last_login).
	UpdateUser(ctx context.Context, user *models.User) error
	// UserByID находит пользователя по ID (вместе с ролями).
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByLogin находит пользователя по username или email.
	UserByLogin(ctx context.Context, login string) (*models.User, error)
	// UsernameExists проверяет занятость username.
	UsernameExists(ctx context.Context, username string) (bool, error)
	// EmailExists проверяет занятость email.
	EmailExists(ctx context.Context, email string) (bool, error)
}

// RoleStorage выполняет операции над ролями.
// Роли создаются миграциями; здесь только чтение.
type RoleStorage interface {
	// RoleByName находит роль по имени.
	RoleByName(ctx context.Context, name string) (*models.Role, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// ConsumeRefreshToken атомарно переводит токен в терминальное состояние
	// used+revoked, если тот ещё не отозван. Возвращает:
	//   (true, nil)  — токен был активен и употреблён сейчас;
	//   (false, nil) — токен существует, но уже отозван;
	//   (false, ErrNotFound) — токен не найден.
	// Из N конкурентных вызовов по одному хэшу побеждает ровно один.
	ConsumeRefreshToken(ctx context.Context, hash string) (bool, error)
	// RevokeRefreshToken пытается отозвать токен, если тот ещё активен.
	// Семантика возвращаемых значений — как у ConsumeRefreshToken.
	RevokeRefreshToken(ctx context.Context, hash string) (bool, error)
	// RevokeAllForUser отзывает все активные токены пользователя,
	// возвращает число отозванных.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteRefreshToken удаляет один токен по хэшу.
	DeleteRefreshToken(ctx context.Context, hash string) error
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	RoleStorage
	RefreshTokenStorage
	Close()
}
