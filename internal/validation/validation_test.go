package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"teamchat-core/server/internal/errors"
)

func TestValidateMessageContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "empty", content: "", wantErr: true},
		{name: "normal", content: "hello team", wantErr: false},
		{name: "at limit", content: strings.Repeat("a", 4096), wantErr: false},
		{name: "over limit", content: strings.Repeat("a", 4097), wantErr: true},
		{name: "multibyte under limit", content: strings.Repeat("🙂", 100), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageContent(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				appErr, ok := errors.IsAppError(err)
				assert.True(t, ok)
				assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChatName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "engineering", wantErr: false},
		{name: "with spaces and hyphens", input: "eng-team standup", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 81), wantErr: true},
		{name: "disallowed punctuation", input: "eng/team", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePagination(t *testing.T) {
	assert.NoError(t, ValidatePagination(50, 0))
	assert.NoError(t, ValidatePagination(0, 0))
	assert.NoError(t, ValidatePagination(100, 200))
	assert.Error(t, ValidatePagination(101, 0))
	assert.Error(t, ValidatePagination(-1, 0))
	assert.Error(t, ValidatePagination(10, -1))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("person@example.com"))
	assert.NoError(t, ValidateEmail("  person@example.com  "))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("has space@example.com"))
}

func TestValidateEmoji(t *testing.T) {
	assert.NoError(t, ValidateEmoji("👍"))
	assert.NoError(t, ValidateEmoji(":+1:"))
	assert.Error(t, ValidateEmoji(""))
	assert.Error(t, ValidateEmoji(strings.Repeat("a", 9)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  "))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
	assert.Equal(t, "ab", SanitizeString("a\x00b"))
}
