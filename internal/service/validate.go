package service

import (
	"net/mail"
	"strings"
	"unicode"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 50
	passwordMinLen = 8
)

// RegisterParams — входные данные регистрации.
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// validateRegistration проверяет все поля регистрации разом и возвращает
// нормализованные значения (username/email обрезаны, email в нижнем регистре).
// Нарушения не прерывают проверку: собираются все сообщения сразу.
func validateRegistration(p RegisterParams) (RegisterParams, *ValidationError) {
	var violations []string

	p.Username = strings.TrimSpace(p.Username)
	if msgs := usernameViolations(p.Username); len(msgs) > 0 {
		violations = append(violations, msgs...)
	}

	norm, msgs := normalizeEmail(p.Email)
	if len(msgs) > 0 {
		violations = append(violations, msgs...)
	} else {
		p.Email = norm
	}

	violations = append(violations, passwordViolations(p.Password)...)

	if strings.TrimSpace(p.FirstName) == "" {
		violations = append(violations, "first name must not be blank")
	}
	if strings.TrimSpace(p.LastName) == "" {
		violations = append(violations, "last name must not be blank")
	}

	if len(violations) > 0 {
		return p, &ValidationError{Violations: violations}
	}

	return p, nil
}

// usernameViolations — username непустой, 3–50 символов, только [a-zA-Z0-9_].
func usernameViolations(username string) []string {
	if username == "" {
		return []string{"username must not be blank"}
	}

	var msgs []string
	runes := []rune(username)
	if len(runes) < usernameMinLen || len(runes) > usernameMaxLen {
		msgs = append(msgs, "username must be between 3 and 50 characters")
	}

	for _, r := range runes {
		if !isUsernameRune(r) {
			msgs = append(msgs, "username may contain only letters, digits and underscore")
			break
		}
	}

	return msgs
}

func isUsernameRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// normalizeEmail проверяет базовый формат email, обрезает пробелы снаружи
// и приводит адрес к нижнему регистру.
func normalizeEmail(raw string) (string, []string) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", []string{"email must not be blank"}
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", []string{"email format is invalid"}
	}

	return strings.ToLower(email), nil
}

// passwordViolations проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная,
// цифра и спецсимвол. Каждое нарушение — отдельным сообщением.
func passwordViolations(pw string) []string {
	if len(pw) == 0 {
		return []string{"password must not be blank"}
	}

	var msgs []string
	if len([]rune(pw)) < passwordMinLen {
		msgs = append(msgs, "password must be at least 8 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasLower {
		msgs = append(msgs, "password must contain a lowercase letter")
	}
	if !hasUpper {
		msgs = append(msgs, "password must contain an uppercase letter")
	}
	if !hasDigit {
		msgs = append(msgs, "password must contain a digit")
	}
	if !hasSpecial {
		msgs = append(msgs, "password must contain a special character")
	}

	return msgs
}
