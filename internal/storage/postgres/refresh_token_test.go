package postgres

import (
	"context"
	"testing"
	"time"

	"authcore/internal/models"
	"authcore/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Файл интеграционных тестов для репозитория refresh_token.go:
// - сохранение/поиск токена по хэшу и конфликт по первичному ключу;
// - семантика ConsumeRefreshToken/RevokeRefreshToken (условный UPDATE,
//   ровно один победитель, различение «уже отозван» и «не найден»);
// - массовый отзыв RevokeAllForUser с подсчётом затронутых строк;
// - удаление по хэшу и чистка просроченных DeleteExpiredTokens.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// seedTokenOwner — сохраняет пользователя-владельца токенов.
func seedTokenOwner(t *testing.T, st *Storage) *models.User {
	t.Helper()
	u := newTestUser(t, st, "owner_01", "owner@example.com")
	require.NoError(t, st.SaveUser(context.Background(), u))
	return u
}

// newToken — активный refresh-токен с заданным хэшем и TTL.
func newToken(userID uuid.UUID, hash string, ttl time.Duration) *models.RefreshToken {
	now := time.Now().UTC()
	return &models.RefreshToken{
		TokenHash:  hash,
		UserID:     userID,
		ClientInfo: "integration-test",
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// TestIntegration_SaveRefreshToken_And_ByHash_OK — happy-path: сохранение и чтение.
func TestIntegration_SaveRefreshToken_And_ByHash_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)

	tok := newToken(owner.ID, "hash-1", time.Hour)
	require.NoError(t, st.SaveRefreshToken(ctx, tok))

	got, err := st.RefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, owner.ID, got.UserID)
	require.Equal(t, "integration-test", got.ClientInfo)
	require.False(t, got.Revoked)
	require.False(t, got.Used)
	require.WithinDuration(t, tok.ExpiresAt, got.ExpiresAt, time.Second)
}

// TestIntegration_SaveRefreshToken_DuplicateHash — повторная вставка того же
// хэша даёт storage.ErrAlreadyExists (коллизия, которую сервис ретраит).
func TestIntegration_SaveRefreshToken_DuplicateHash(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)

	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "hash-dup", time.Hour)))

	err := st.SaveRefreshToken(ctx, newToken(owner.ID, "hash-dup", time.Hour))
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

// TestIntegration_RefreshTokenByHash_NotFound — отсутствующий хэш.
func TestIntegration_RefreshTokenByHash_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.RefreshTokenByHash(context.Background(), "absent")
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_ConsumeRefreshToken_Semantics — ровно один победитель:
// первый Consume возвращает true и выставляет used+revoked, повторный — false
// без ошибки, отсутствующий хэш — (false, ErrNotFound).
func TestIntegration_ConsumeRefreshToken_Semantics(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)
	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "hash-c", time.Hour)))

	ok, err := st.ConsumeRefreshToken(ctx, "hash-c")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := st.RefreshTokenByHash(ctx, "hash-c")
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.True(t, got.Used)

	ok, err = st.ConsumeRefreshToken(ctx, "hash-c")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = st.ConsumeRefreshToken(ctx, "absent")
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.False(t, ok)
}

// TestIntegration_RevokeRefreshToken_Semantics — отзыв без пометки used:
// revoked = TRUE, used остаётся FALSE; повторный отзыв — false без ошибки.
func TestIntegration_RevokeRefreshToken_Semantics(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)
	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "hash-r", time.Hour)))

	ok, err := st.RevokeRefreshToken(ctx, "hash-r")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := st.RefreshTokenByHash(ctx, "hash-r")
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.False(t, got.Used)

	ok, err = st.RevokeRefreshToken(ctx, "hash-r")
	require.NoError(t, err)
	require.False(t, ok)
}

// TestIntegration_RevokeAllForUser — массовый отзыв считает только активные
// токены своего пользователя; чужие не трогает, повторный вызов даёт 0.
func TestIntegration_RevokeAllForUser(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)

	other := newTestUser(t, st, "other_02", "other@example.com")
	require.NoError(t, st.SaveUser(ctx, other))

	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "own-1", time.Hour)))
	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "own-2", time.Hour)))
	require.NoError(t, st.SaveRefreshToken(ctx, newToken(other.ID, "their-1", time.Hour)))

	// Один токен владельца уже отозван — в счёт не попадает.
	ok, err := st.RevokeRefreshToken(ctx, "own-1")
	require.NoError(t, err)
	require.True(t, ok)

	count, err := st.RevokeAllForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	// Чужой токен остался активным.
	got, err := st.RefreshTokenByHash(ctx, "their-1")
	require.NoError(t, err)
	require.False(t, got.Revoked)

	count, err = st.RevokeAllForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

// TestIntegration_DeleteRefreshToken — удаление по хэшу; повторное удаление
// отсутствующего хэша не является ошибкой.
func TestIntegration_DeleteRefreshToken(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)
	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "hash-d", time.Hour)))

	require.NoError(t, st.DeleteRefreshToken(ctx, "hash-d"))

	_, err := st.RefreshTokenByHash(ctx, "hash-d")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, st.DeleteRefreshToken(ctx, "hash-d"))
}

// TestIntegration_DeleteExpiredTokens — чистка удаляет только токены
// с expires_at не позже отметки now.
func TestIntegration_DeleteExpiredTokens(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	owner := seedTokenOwner(t, st)

	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "expired", -time.Minute)))
	require.NoError(t, st.SaveRefreshToken(ctx, newToken(owner.ID, "live", time.Hour)))

	require.NoError(t, st.DeleteExpiredTokens(ctx, time.Now().UTC()))

	_, err := st.RefreshTokenByHash(ctx, "expired")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.RefreshTokenByHash(ctx, "live")
	require.NoError(t, err)
}
