package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMobile(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+911234567890", "*********7890"},
		{"1234567890", "******7890"},
		{"1234", "1234"},
		{"123", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mobile(tt.in))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "[EMPTY]", Message(""))
	assert.Equal(t, "[REDACTED CONTENT: 11 chars]", Message("hello world"))
	assert.NotContains(t, Message("call 9876543210 now"), "9876543210")
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "u***@example.com", Email("user@example.com"))
	assert.Equal(t, "*@example.com", Email("u@example.com"))
	assert.Equal(t, "[INVALID EMAIL]", Email("no-at-sign"))
	assert.Equal(t, "[INVALID EMAIL]", Email("a@b@c"))
	assert.Equal(t, "[EMPTY]", Email(""))
}

func TestToken(t *testing.T) {
	assert.Equal(t, "ab...[12 chars]", Token("abcdef123456"))
	assert.Equal(t, "***", Token("abcd"))
	assert.Equal(t, "[EMPTY]", Token(""))
}
