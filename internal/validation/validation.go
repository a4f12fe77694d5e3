package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"teamchat-core/server/internal/errors"
)

var chatNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\s]{1,80}$`)

// ValidateMessageContent enforces the codepoint bounds message content is
// held to.
func ValidateMessageContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return errors.New(errors.ErrInvalidInput, "content is required")
	}
	if n > 4096 {
		return errors.NewWithDetails(errors.ErrInvalidInput, "content exceeds maximum length",
			map[string]interface{}{"max_length": 4096, "actual": n})
	}
	return nil
}

// ValidateChatName rejects empty names and names carrying characters that
// would collide with cache-key and URL-path encoding elsewhere.
func ValidateChatName(name string) error {
	if !chatNamePattern.MatchString(name) {
		return errors.New(errors.ErrInvalidInput, "name must be 1-80 characters of letters, digits, spaces, hyphens, or underscores")
	}
	return nil
}

// ValidatePagination bounds limit/offset for the offset-paginated list
// endpoints (chat listing); message listing uses keyset pagination
// instead and is bounded directly in the chat package.
func ValidatePagination(limit, offset int) error {
	if limit < 0 || limit > 100 {
		return errors.NewWithDetails(errors.ErrInvalidInput, "limit must be between 0 and 100",
			map[string]interface{}{"limit": limit})
	}
	if offset < 0 {
		return errors.New(errors.ErrInvalidInput, "offset must be non-negative")
	}
	return nil
}

// ValidateEmail is a pragmatic shape check; delivery is someone else's problem.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") || strings.Contains(email, " ") {
		return errors.New(errors.ErrInvalidInput, "a valid email is required")
	}
	return nil
}

// ValidateEmoji rejects reaction payloads that aren't a short string, a
// cheap guard against reactions carrying arbitrary text.
func ValidateEmoji(emoji string) error {
	n := utf8.RuneCountInString(emoji)
	if n == 0 || n > 8 {
		return errors.New(errors.ErrInvalidInput, "emoji must be a short non-empty string")
	}
	return nil
}

// SanitizeString trims whitespace and strips control characters from
// free-text input before it reaches storage or search indexing.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, input)
}
