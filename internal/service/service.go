// service содержит бизнес-логику ядра аутентификации:
// регистрацию/вход пользователей, выпуск/проверку/ротацию токенов,
// блокировку учётных записей и смену пароля. Работа с БД идёт через
// интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ошибки возвращаются типизированными sentinel-значениями; вызывающая
//     сторона маппит их на свои коды (HTTP/gRPC) сама.
package service

import (
	"errors"
	"strings"

	"authcore/internal/cache"
	"authcore/internal/config"
	"authcore/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Намеренно неинформативна: существование учётки не раскрывается.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked — учётка заблокирована после серии неудачных входов.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountDisabled — учётка деактивирована/выключена или пароль устарел.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrAlreadyExists — username или email уже заняты другим пользователем.
	ErrAlreadyExists = errors.New("username or email already taken")

	// ErrNotFound — пользователь не найден (операции по известному ID).
	ErrNotFound = errors.New("user not found")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи
	// или отсутствует в хранилище.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван (logout/ротация/компрометация) и недействителен
	// независимо от срока.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrValidation — входные данные не прошли валидацию; детали — в *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrRoleNotConfigured — роль по умолчанию отсутствует в хранилище.
	// Это фатальная ошибка конфигурации, а не ошибка пользователя.
	ErrRoleNotConfigured = errors.New("default role not configured")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный refresh-токен
	// (редкий случай коллизий при сохранении хэша в БД после нескольких ретраев).
	ErrRefreshTokenCollision = errors.New("refresh token collision")
)

// ValidationError агрегирует все нарушенные правила валидации, а не только первое.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// Is позволяет проверять ValidationError через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Service описывает бизнес-логику ядра аутентификации.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
