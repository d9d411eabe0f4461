// Package redact masks personal data before it reaches a log line.
package redact

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const empty = "[EMPTY]"

// Mobile keeps only the last four characters: "+911234567890" -> "*********7890".
func Mobile(mobile string) string {
	n := utf8.RuneCountInString(mobile)
	if n < 4 {
		return "****"
	}
	r := []rune(mobile)
	return strings.Repeat("*", n-4) + string(r[n-4:])
}

// Message hides a message body, keeping its length.
func Message(message string) string {
	if message == "" {
		return empty
	}
	return fmt.Sprintf("[REDACTED CONTENT: %d chars]", utf8.RuneCountInString(message))
}

// Email masks the user part: "user@example.com" -> "u***@example.com".
func Email(email string) string {
	if email == "" {
		return empty
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[INVALID EMAIL]"
	}
	user, domain := parts[0], parts[1]
	if utf8.RuneCountInString(user) <= 1 {
		return "*@" + domain
	}
	first, _ := utf8.DecodeRuneInString(user)
	return string(first) + "***@" + domain
}

// Token shows the first two characters of a device token or key.
func Token(token string) string {
	if token == "" {
		return empty
	}
	n := utf8.RuneCountInString(token)
	if n <= 4 {
		return "***"
	}
	return fmt.Sprintf("%s...[%d chars]", string([]rune(token)[:2]), n)
}
