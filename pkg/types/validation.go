package types

import (
	"regexp"
	"strings"
)

// FUNCTIONAL DISCOVERY: compiled once at package init, matching the
// teacher's approach for hot-path validation.
var languageRegex = regexp.MustCompile(`^[a-zA-Z]{2}(-[a-zA-Z]{2,4})?$`)

const maxMessageContentBytes = 65536

// IsValidRole reports whether role is one of the two recognized roles.
func IsValidRole(role string) bool {
	switch Role(role) {
	case RolePatient, RoleDoctor:
		return true
	default:
		return false
	}
}

// IsValidLanguage reports whether lang looks like a BCP-47-ish short code
// ("en", "en-US", "es"). Anything else is rejected rather than guessed at.
func IsValidLanguage(lang string) bool {
	if lang == "" {
		return false
	}
	return languageRegex.MatchString(lang)
}

// IsNonEmptyContent rejects empty and whitespace-only content before any
// downstream encryption or persistence work happens.
func IsNonEmptyContent(content string) bool {
	return len(strings.TrimSpace(content)) > 0
}

// IsContentWithinLimit guards the same 64KB ceiling the teacher's message
// validation used, applied here to raw UTF-8 content rather than a
// marshaled JSON envelope.
func IsContentWithinLimit(content string) bool {
	return len(content) <= maxMessageContentBytes
}

// ValidateSendMessage centralizes the argument checks a send_message event
// must pass before any store or gateway call is attempted.
func ValidateSendMessage(content, language string) error {
	if !IsNonEmptyContent(content) {
		return NewError(KindInvalidArgument, "content must not be empty")
	}
	if !IsContentWithinLimit(content) {
		return NewError(KindInvalidArgument, "content exceeds maximum size")
	}
	if language != "" && !IsValidLanguage(language) {
		return NewError(KindInvalidArgument, "language is not a recognized code")
	}
	return nil
}

// ValidatePagination guards page() arguments per the boundary cases in
// the testable-properties section: limit must be in [1,100], offset >= 0.
func ValidatePagination(limit, offset int) error {
	if limit < 1 || limit > 100 {
		return NewError(KindInvalidArgument, "limit must be between 1 and 100")
	}
	if offset < 0 {
		return NewError(KindInvalidArgument, "offset must not be negative")
	}
	return nil
}
