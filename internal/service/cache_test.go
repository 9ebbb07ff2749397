package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"authcore/internal/cache"
	"authcore/internal/models"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeCache — in-memory реализация cache.RefreshCache для unit-тестов сервиса.
type fakeCache struct {
	entries map[string]*cache.RefreshEntry
	failAll bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*cache.RefreshEntry)}
}

func (f *fakeCache) Get(_ context.Context, hash string) (*cache.RefreshEntry, bool, error) {
	if f.failAll {
		return nil, false, errors.New("cache down")
	}

	entry, ok := f.entries[hash]
	return entry, ok, nil
}

func (f *fakeCache) Set(_ context.Context, hash string, entry *cache.RefreshEntry, _ time.Duration) error {
	if f.failAll {
		return errors.New("cache down")
	}

	f.entries[hash] = entry
	return nil
}

func (f *fakeCache) MarkRevoked(_ context.Context, hash string) error {
	if f.failAll {
		return errors.New("cache down")
	}

	if entry, ok := f.entries[hash]; ok {
		entry.Revoked = true
	}
	return nil
}

func (f *fakeCache) Close() error { return nil }

// TestRefreshToken_CacheFastPath — отзыв, известный кэшу, отклоняет refresh
// без обращения к хранилищу (на моке не заведено ни одного ожидания).
func TestRefreshToken_CacheFastPath(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	fc := newFakeCache()
	svc.SetRefreshCache(fc)

	plain := "cached-revoked"
	fc.entries[hashRefreshSecret(plain)] = &cache.RefreshEntry{
		UserID:    uuid.New(),
		Revoked:   true,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	_, _, err := svc.RefreshToken(context.Background(), plain)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

// TestRevokeToken_UpdatesCache — успешный отзыв помечает запись в кэше.
func TestRevokeToken_UpdatesCache(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	fc := newFakeCache()
	svc.SetRefreshCache(fc)

	plain := "to-revoke"
	hash := hashRefreshSecret(plain)
	fc.entries[hash] = &cache.RefreshEntry{UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}

	st.EXPECT().RevokeRefreshToken(gomock.Any(), hash).Return(true, nil)

	ok, err := svc.RevokeToken(context.Background(), plain)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, fc.entries[hash].Revoked)
}

// TestRefreshToken_CacheFailureIsSwallowed — недоступный кэш не ломает refresh:
// сервис падает обратно на хранилище.
func TestRefreshToken_CacheFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	fc := newFakeCache()
	fc.failAll = true
	svc.SetRefreshCache(fc)

	user := activeUser(t, "Abcdef1!")
	plain := "cache-down"
	hash := hashRefreshSecret(plain)

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		TokenHash: hash, UserID: user.ID,
		CreatedAt: time.Now().Add(-time.Hour), ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)
	st.EXPECT().ConsumeRefreshToken(gomock.Any(), hash).Return(true, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	_, _, err := svc.RefreshToken(context.Background(), plain)
	require.NoError(t, err)
}
