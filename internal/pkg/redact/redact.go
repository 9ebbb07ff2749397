// redact — помощники для безопасного вывода чувствительных значений в логи.
package redact

import "strings"

// Email маскирует локальную часть адреса: "alice@example.com" -> "al***@example.com".
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	return mask(local) + "@" + domain
}

// Username маскирует имя пользователя, оставляя первые два символа.
func Username(s string) string {
	return mask(s)
}

// mask оставляет первые две руны и заменяет остальное на "***".
func mask(s string) string {
	runes := []rune(s)
	if len(runes) > 2 {
		return string(runes[:2]) + "***"
	}

	return "***"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
