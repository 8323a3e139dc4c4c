// internal/conversation/validate.go
package conversation

import (
	"strconv"
	"strings"

	"loanbot/internal/common/errors"
)

// Answer is the tagged classification of a closed yes/no reply,
// decoupled from the literal wording the user typed.
type Answer int

const (
	AnswerUnrecognized Answer = iota
	AnswerAffirmative
	AnswerNegative
)

var affirmativeTokens = map[string]bool{
	"بله": true, "بلی": true, "آره": true, "اره": true, "تایید": true,
	"yes": true, "y": true, "ok": true,
}

var negativeTokens = map[string]bool{
	"خیر": true, "نه": true, "انصراف": true,
	"no": true, "n": true,
}

// ClassifyAnswer maps free text to an affirmative/negative/unrecognized tag.
func ClassifyAnswer(text string) Answer {
	token := strings.ToLower(strings.TrimSpace(text))
	if affirmativeTokens[token] {
		return AnswerAffirmative
	}
	if negativeTokens[token] {
		return AnswerNegative
	}
	return AnswerUnrecognized
}

// normalizeDigits maps Persian (۰-۹) and Arabic-Indic (٠-٩) digits to
// ASCII so numeric rules accept what Persian keyboards actually produce.
func normalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// diagnostics per rule, shown above the re-issued prompt.
const (
	diagNationalCode = "کد ملی باید دقیقا ۱۰ رقم باشد."
	diagPhone        = "شماره موبایل باید ۱۱ رقم و با ۰۹ شروع شود."
	diagOrdinal      = "لطفا یک عدد بین ۱ تا ۱۰ وارد کنید."
	diagYesNo        = "لطفا با «بله» یا «خیر» پاسخ دهید."
	diagEmpty        = "پاسخ نمی‌تواند خالی باشد."
)

// Validate checks raw input against the rule for the given step and
// returns the canonical value to store. A non-nil error means the step
// must not advance and the session must stay untouched.
func Validate(step Step, raw string) (string, *errors.StandardError) {
	trimmed := strings.TrimSpace(raw)

	switch step {
	case StepFatherNationalCode, StepMotherNationalCode, StepChildNationalCode:
		code := normalizeDigits(trimmed)
		if len(code) != 10 || !allDigits(code) {
			return "", errors.NewValidationFailedError(string(step), diagNationalCode)
		}
		return code, nil

	case StepFatherPhone, StepMotherPhone:
		phone := normalizeDigits(trimmed)
		if len(phone) != 11 || !allDigits(phone) || !strings.HasPrefix(phone, "09") {
			return "", errors.NewValidationFailedError(string(step), diagPhone)
		}
		return phone, nil

	case StepChildOrdinal:
		n, err := strconv.Atoi(normalizeDigits(trimmed))
		if err != nil || n < 1 || n > 10 {
			return "", errors.NewValidationFailedError(string(step), diagOrdinal)
		}
		return strconv.Itoa(n), nil

	case StepParentsStatus, StepConfirmation:
		switch ClassifyAnswer(trimmed) {
		case AnswerAffirmative:
			return "yes", nil
		case AnswerNegative:
			return "no", nil
		default:
			return "", errors.NewValidationFailedError(string(step), diagYesNo)
		}

	default:
		// Dates, province/city and bank names are accepted verbatim;
		// the downstream portal is the authority on their format.
		if trimmed == "" {
			return "", errors.NewValidationFailedError(string(step), diagEmpty)
		}
		return trimmed, nil
	}
}

// Diagnostic extracts the user-facing reason from a validation error.
func Diagnostic(err *errors.StandardError) string {
	if err == nil {
		return ""
	}
	if idx := strings.Index(err.Details, "reason: "); idx >= 0 {
		return err.Details[idx+len("reason: "):]
	}
	return err.Details
}
