package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRegistration_NormalizesAndPasses(t *testing.T) {
	t.Parallel()

	got, verr := validateRegistration(RegisterParams{
		Username:  "  alice_01  ",
		Email:     " Alice@Example.COM ",
		Password:  "Abcdef1!",
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	require.Nil(t, verr)
	require.Equal(t, "alice_01", got.Username)
	require.Equal(t, "alice@example.com", got.Email)
}

func TestValidateRegistration_CollectsEverything(t *testing.T) {
	t.Parallel()

	_, verr := validateRegistration(RegisterParams{
		Username:  "a!",
		Email:     "not-an-email",
		Password:  "short",
		FirstName: "  ",
		LastName:  "",
	})
	require.NotNil(t, verr)

	// username: длина + недопустимый символ; email: формат;
	// password: длина + нет заглавной/цифры/спецсимвола; имена: два blank.
	require.Len(t, verr.Violations, 9)
}

func TestUsernameViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		want     int
	}{
		{name: "ok_simple", username: "bob", want: 0},
		{name: "ok_underscore_digits", username: "bob_42", want: 0},
		{name: "blank", username: "", want: 1},
		{name: "too_short", username: "ab", want: 1},
		{name: "too_long", username: strings.Repeat("a", 51), want: 1},
		{name: "bad_chars", username: "bob-42", want: 1},
		{name: "short_and_bad", username: "a!", want: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Len(t, usernameViolations(tc.username), tc.want)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	got, msgs := normalizeEmail("  Bob@Example.COM ")
	require.Empty(t, msgs)
	require.Equal(t, "bob@example.com", got)

	_, msgs = normalizeEmail("")
	require.Len(t, msgs, 1)

	_, msgs = normalizeEmail("no-at-sign")
	require.Len(t, msgs, 1)
}

func TestPasswordViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pw   string
		want []string
	}{
		{name: "ok_minimal", pw: "Short1A!", want: nil},
		{name: "blank", pw: "", want: []string{"password must not be blank"}},
		{
			name: "no_upper",
			pw:   "alllowercase1!",
			want: []string{"password must contain an uppercase letter"},
		},
		{
			name: "no_digit",
			pw:   "NoDigitsHere!",
			want: []string{"password must contain a digit"},
		},
		{
			name: "no_special",
			pw:   "NoSpecial123",
			want: []string{"password must contain a special character"},
		},
		{
			name: "short_collects_all",
			pw:   "abc",
			want: []string{
				"password must be at least 8 characters",
				"password must contain an uppercase letter",
				"password must contain a digit",
				"password must contain a special character",
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, passwordViolations(tc.pw))
		})
	}
}

func TestShouldLock(t *testing.T) {
	t.Parallel()

	// Порог 5: блокировка строго на пятой неудаче и дальше.
	require.False(t, shouldLock(4, 5))
	require.True(t, shouldLock(5, 5))
	require.True(t, shouldLock(6, 5))

	// Неположительный порог выключает блокировку совсем.
	require.False(t, shouldLock(100, 0))
	require.False(t, shouldLock(100, -1))
}
