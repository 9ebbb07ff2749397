package service

import (
	"context"
	"testing"
	"time"

	"authcore/internal/models"
	"authcore/internal/storage"
	"authcore/mocks"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_ClaimsContent(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser(t, "Abcdef1!")
	user.Roles = append(user.Roles, models.Role{Name: models.RoleAdmin})

	now := time.Now().UTC()
	signed, err := svc.generateAccessToken(context.Background(), user, now)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), signed, user.Username)
	require.NoError(t, err)

	require.Equal(t, user.ID.String(), claims.UserID)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, "Alice Liddell", claims.FullName)
	require.ElementsMatch(t, []string{models.RoleUser, models.RoleAdmin}, claims.Roles)
	require.True(t, claims.Admin)

	require.Equal(t, user.Username, claims.Subject)
	require.Equal(t, svc.cfg.Issuer, claims.Issuer)
	require.Equal(t, jwt.ClaimStrings(svc.cfg.Audience), claims.Audience)
	require.WithinDuration(t, now.Add(svc.cfg.AccessTokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestValidateToken_SubjectMismatch(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser(t, "Abcdef1!")
	signed, err := svc.generateAccessToken(context.Background(), user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), signed, "someone_else")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Пустой ожидаемый субъект отключает проверку.
	_, err = svc.ValidateToken(context.Background(), signed, "")
	require.NoError(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.ValidateToken(context.Background(), "not-a-jwt", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongKeyRejected(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	other := testCfg()
	other.JWTSecret = "another-secret"
	otherSvc := New(mocks.NewMockStorage(ctrl), other)

	user := activeUser(t, "Abcdef1!")
	signed, err := otherSvc.generateAccessToken(context.Background(), user, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), signed, "")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.InspectToken(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken_InspectableButNotValid(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser(t, "Abcdef1!")

	// Выпускаем токен «в прошлом», чтобы он уже истёк.
	issuedAt := time.Now().UTC().Add(-svc.cfg.AccessTokenTTL - time.Minute)
	signed, err := svc.generateAccessToken(context.Background(), user, issuedAt)
	require.NoError(t, err)

	// Полная проверка отвергает по сроку.
	_, err = svc.ValidateToken(context.Background(), signed, user.Username)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenExpired)

	// Инспекция всё ещё читает claims подписанного токена.
	claims, err := svc.InspectToken(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, user.Username, claims.Subject)
	require.Equal(t, user.ID.String(), claims.UserID)
}

func TestHashRefreshSecret(t *testing.T) {
	t.Parallel()

	h1 := hashRefreshSecret("secret-a")
	h2 := hashRefreshSecret("secret-a")
	h3 := hashRefreshSecret("secret-b")

	require.Equal(t, h1, h2)
	require.NotEqual(t, h1, h3)
	require.NotContains(t, h1, "secret-a")
	// sha256 в base64url без паддинга: 43 символа.
	require.Len(t, h1, 43)
}

func TestGenerateRefreshToken_RetriesOnCollision(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser(t, "Abcdef1!")

	// Две коллизии подряд, третья попытка проходит.
	gomock.InOrder(
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists),
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists),
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
	)

	plain, err := svc.generateRefreshToken(context.Background(), user, "cli")
	require.NoError(t, err)
	require.NotEmpty(t, plain)
}

func TestGenerateRefreshToken_CollisionBudgetExhausted(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser(t, "Abcdef1!")

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists).Times(5)

	_, err := svc.generateRefreshToken(context.Background(), user, "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRefreshTokenCollision)
}
