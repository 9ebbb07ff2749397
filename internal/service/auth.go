package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"authcore/internal/models"
	"authcore/internal/pkg/log"
	"authcore/internal/pkg/redact"
	"authcore/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterUser регистрирует нового пользователя и выпускает пару токенов.
// Валидация агрегирует все нарушения разом (*ValidationError), занятость
// username/email проверяется по нормализованным значениям.
func (s *Service) RegisterUser(ctx context.Context, params RegisterParams) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.RegisterUser"

	params, verr := validateRegistration(params)
	if verr != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, verr)
	}

	taken, err := s.storage.UsernameExists(ctx, params.Username)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}

	taken, err = s.storage.EmailExists(ctx, params.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}

	role, err := s.storage.RoleByName(ctx, s.cfg.DefaultRole)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w: %q", op, ErrRoleNotConfigured, s.cfg.DefaultRole)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(params.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hashedPassword,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Active:       true,
		Enabled:      true,
		Roles:        []models.Role{*role},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return s.issueTokenPair(ctx, user, "", "")
}

// LoginUser выполняет вход по username-или-email + пароль.
//
// Отсутствующая учётка и неверный пароль неразличимы снаружи
// (ErrInvalidCredentials), но инкремент счётчика неудачных входов
// происходит только для реально существующих учёток. Блокировка и
// выключенность различаются явно — это осознанная утечка существования
// учётки, унаследованная от исходного дизайна.
func (s *Service) LoginUser(ctx context.Context, login, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.LoginUser"

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if strings.ContainsRune(login, '@') {
		login = strings.ToLower(login)
	}

	user, err := s.storage.UserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.Locked {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAccountLocked)
	}
	if !user.CanLogin() {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrAccountDisabled)
	}

	if !checkPassword(user.PasswordHash, password) {
		s.handleFailedLogin(ctx, user)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user = s.updateSuccessfulLogin(ctx, user)

	return s.issueTokenPair(ctx, user, "", "")
}

// RefreshToken обменивает refresh-токен на новую пару токенов (ротация).
// Старый токен употребляется атомарно: из конкурентных запросов по одному
// секрету выигрывает ровно один, остальные получают ErrTokenRevoked.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.RefreshToken"

	token, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Новый токен наследует client-info употребляемого.
	return s.issueTokenPair(ctx, user, hashRefreshSecret(refreshToken), token.ClientInfo)
}

// RevokeToken отзывает refresh-токен (logout). Best-effort по контракту:
//   - активный токен отзывается -> true;
//   - уже отозванный -> true (отзыв идемпотентен);
//   - не найден -> false без ошибки;
//   - только неожиданные сбои хранилища возвращают ошибку.
func (s *Service) RevokeToken(ctx context.Context, refreshToken string) (bool, error) {
	const op = "service.auth.RevokeToken"

	lg := log.From(ctx)
	hash := hashRefreshSecret(refreshToken)

	revoked, err := s.storage.RevokeRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("logout_token_not_found", slog.String("op", op))
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if revoked {
		s.cacheMarkRevoked(ctx, hash)
	}

	return true, nil
}

// RevokeAllTokens отзывает все активные refresh-токены пользователя
// (logout со всех устройств). Ошибки глотаются и логируются: это
// вспомогательная операция очистки, возвращается 0.
func (s *Service) RevokeAllTokens(ctx context.Context, userID uuid.UUID) int {
	const op = "service.auth.RevokeAllTokens"

	count, err := s.storage.RevokeAllForUser(ctx, userID)
	if err != nil {
		log.From(ctx).Error("revoke_all_failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
		return 0
	}

	return int(count)
}

// ChangePassword меняет пароль пользователя. Жёсткий инвариант: успешная
// смена пароля отзывает все невыданные заново refresh-токены пользователя
// до возврата успеха — сбой отзыва проваливает операцию целиком.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	const op = "service.auth.ChangePassword"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, currentPassword) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if msgs := passwordViolations(newPassword); len(msgs) > 0 {
		return fmt.Errorf("%s: %w", op, &ValidationError{Violations: msgs})
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	next := user.WithPasswordHash(hash, time.Now().UTC())
	if err := s.storage.UpdateUser(ctx, &next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	count, err := s.storage.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: revoke sessions: %w", op, err)
	}

	log.From(ctx).Info("password_changed",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
		slog.Int64("sessions_revoked", count),
	)

	return nil
}

// ValidateToken проверяет access-токен полностью (подпись, сроки, субъект)
// и возвращает его claims. Пустой expectedSubject отключает проверку субъекта.
func (s *Service) ValidateToken(ctx context.Context, accessToken, expectedSubject string) (*Claims, error) {
	const op = "service.auth.ValidateToken"

	claims, err := s.validateAccessToken(accessToken, expectedSubject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// InspectToken извлекает claims из корректно подписанного access-токена,
// не проверяя сроки. Нужен внутренним и админским путям, которым важны
// claims и просроченного токена.
func (s *Service) InspectToken(ctx context.Context, accessToken string) (*Claims, error) {
	const op = "service.auth.InspectToken"

	claims, err := s.verifyAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// handleFailedLogin инкрементирует счётчик неудачных входов и выставляет
// блокировку по порогу. Путь best-effort: ошибка хранилища логируется и
// глотается, до вызывающей стороны не доходит. Потерянный под конкуренцией
// инкремент — известный допустимый риск этой схемы.
func (s *Service) handleFailedLogin(ctx context.Context, user *models.User) {
	const op = "service.auth.handleFailedLogin"

	lg := log.From(ctx)

	locked := shouldLock(user.FailedAttempts+1, s.cfg.LockoutThreshold)
	next := user.WithFailedAttempt(locked, time.Now().UTC())

	if err := s.storage.UpdateUser(ctx, &next); err != nil {
		lg.Error("failed_login_update_failed",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)
		return
	}

	if locked {
		lg.Warn("account_locked",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.Int("failed_attempts", next.FailedAttempts),
		)
	}
}

// updateSuccessfulLogin сбрасывает счётчик неудачных входов и обновляет
// отметку последнего входа. Тоже best-effort: вход не проваливается из-за
// сбоя бухгалтерии.
func (s *Service) updateSuccessfulLogin(ctx context.Context, user *models.User) *models.User {
	const op = "service.auth.updateSuccessfulLogin"

	next := user.WithSuccessfulLogin(time.Now().UTC())
	if err := s.storage.UpdateUser(ctx, &next); err != nil {
		log.From(ctx).Error("successful_login_update_failed",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)
		return user
	}

	return &next
}

// issueTokenPair выпускает новую пару access+refresh токенов.
// Если oldRefreshHash != "", сначала атомарно употребляет старый refresh-токен.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User, oldRefreshHash, clientInfo string) (*models.TokenPair, *models.User, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if oldRefreshHash != "" {
		consumed, err := s.storage.ConsumeRefreshToken(ctx, oldRefreshHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		if !consumed {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}

		s.cacheMarkRevoked(ctx, oldRefreshHash)
	}

	plain, err := s.generateRefreshToken(ctx, user, clientInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    plain,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, user, nil
}
