package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authcore/internal/cache"
	"authcore/internal/models"
	"authcore/internal/pkg/log"
	"authcore/internal/storage"

	"github.com/golang-jwt/jwt/v5"
)

// Claims — данные идентичности, зашитые в access-токен.
// Subject зарегистрированных claims — username владельца.
type Claims struct {
	UserID   string   `json:"uid"`
	Email    string   `json:"email"`
	FullName string   `json:"name"`
	Roles    []string `json:"roles"`
	Admin    bool     `json:"adm"`
	jwt.RegisteredClaims
}

// generateAccessToken генерирует access-токен.
func (s *Service) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, error) {
	const op = "service.token.generateAccessToken"

	lg := log.From(ctx)

	claims := Claims{
		UserID:   user.ID.String(),
		Email:    user.Email,
		FullName: user.FullName(),
		Roles:    user.Authorities(),
		Admin:    user.IsAdmin(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   user.Username,
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// verifyAccessToken проверяет подпись и структуру access-токена, НЕ проверяя
// сроки: claims просроченного, но корректно подписанного токена остаются
// извлекаемыми (путь инспекции/внутреннего учёта). Для полной проверки
// см. validateAccessToken.
func (s *Service) verifyAccessToken(tokenStr string) (*Claims, error) {
	const op = "service.token.verifyAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// validateAccessToken валидирует access-токен полностью: подпись, сроки,
// issuer/audience и соответствие субъекта.
func (s *Service) validateAccessToken(tokenStr, expectedSubject string) (*Claims, error) {
	const op = "service.token.validateAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if expectedSubject != "" && claims.Subject != expectedSubject {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// hashRefreshSecret — sha256 от секрета в base64url; в БД и кэше живут только хэши.
func hashRefreshSecret(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// generateRefreshToken создает новый refresh-токен.
func (s *Service) generateRefreshToken(ctx context.Context, user *models.User, clientInfo string) (string, error) {
	const (
		op          = "service.token.generateRefreshToken"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}
		plain := base64.RawURLEncoding.EncodeToString(b)
		hash := hashRefreshSecret(plain)

		now := time.Now().UTC()
		token := &models.RefreshToken{
			TokenHash:  hash,
			UserID:     user.ID,
			ClientInfo: clientInfo,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.RefreshTokenTTL),
			Revoked:    false,
			Used:       false,
		}

		if err := s.storage.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}

		s.cacheSet(ctx, hash, token)

		return plain, nil
	}

	lg.Error("refresh_collision_exceeded",
		slog.String("op", op),
	)

	return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// validateRefreshToken валидирует refresh-токен по его секрету.
// Просроченный токен удаляется из хранилища как побочный эффект.
func (s *Service) validateRefreshToken(ctx context.Context, plain string) (*models.RefreshToken, error) {
	const op = "service.token.validateRefreshToken"

	lg := log.From(ctx)

	hash := hashRefreshSecret(plain)

	// Быстрый путь: кэш знает про отзыв раньше БД.
	if entry, ok := s.cacheGet(ctx, hash); ok && entry.Revoked {
		lg.Warn("refresh_revoked_cached",
			slog.String("op", op),
			slog.String("user_id", entry.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	token, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.Revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if token.Expired(time.Now().UTC()) {
		// Просроченную запись сразу убираем; janitor подчистит то,
		// до чего здесь не дотянулись.
		if derr := s.storage.DeleteRefreshToken(ctx, hash); derr != nil {
			lg.Error("refresh_expired_delete_failed",
				slog.String("op", op),
				slog.String("err", derr.Error()),
			)
		}

		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	return token, nil
}

// cacheGet — best-effort чтение кэша; ошибки только логируются.
func (s *Service) cacheGet(ctx context.Context, hash string) (*cache.RefreshEntry, bool) {
	if s.rcache == nil {
		return nil, false
	}

	entry, ok, err := s.rcache.Get(ctx, hash)
	if err != nil {
		log.From(ctx).Warn("refresh_cache_get_failed", slog.String("err", err.Error()))
		return nil, false
	}

	return entry, ok
}

// cacheSet — best-effort запись кэша; ошибки только логируются.
func (s *Service) cacheSet(ctx context.Context, hash string, token *models.RefreshToken) {
	if s.rcache == nil {
		return
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return
	}

	entry := &cache.RefreshEntry{
		UserID:    token.UserID,
		Revoked:   token.Revoked,
		Used:      token.Used,
		ExpiresAt: token.ExpiresAt,
	}
	if err := s.rcache.Set(ctx, hash, entry, ttl); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}
}

// cacheMarkRevoked — best-effort пометка отзыва в кэше.
func (s *Service) cacheMarkRevoked(ctx context.Context, hash string) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkRevoked(ctx, hash); err != nil {
		log.From(ctx).Warn("refresh_cache_revoke_failed", slog.String("err", err.Error()))
	}
}
