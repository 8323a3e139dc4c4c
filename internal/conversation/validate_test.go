package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Step Sequence Tests
// ==========================

func TestNext_WithoutSeparation(t *testing.T) {
	// Mother steps must be skipped entirely when the parents are together.
	expected := []Step{
		StepFatherNationalCode,
		StepFatherBirthDate,
		StepFatherProvince,
		StepFatherCity,
		StepFatherPhone,
		StepParentsStatus,
		StepChildNationalCode,
		StepChildBirthDate,
		StepChildProvince,
		StepChildCity,
		StepChildOrdinal,
		StepBankPreference,
		StepConfirmation,
	}

	current := InitialStep
	for i := 1; i < len(expected); i++ {
		current = Next(current, false)
		assert.Equal(t, expected[i], current, "step %d", i)
	}
}

func TestNext_WithSeparation(t *testing.T) {
	expected := []Step{
		StepFatherNationalCode,
		StepFatherBirthDate,
		StepFatherProvince,
		StepFatherCity,
		StepFatherPhone,
		StepParentsStatus,
		StepMotherNationalCode,
		StepMotherBirthDate,
		StepMotherPhone,
		StepChildNationalCode,
		StepChildBirthDate,
		StepChildProvince,
		StepChildCity,
		StepChildOrdinal,
		StepBankPreference,
		StepConfirmation,
	}

	current := InitialStep
	for i := 1; i < len(expected); i++ {
		current = Next(current, true)
		assert.Equal(t, expected[i], current, "step %d", i)
	}
}

func TestNext_BranchOnlyAtParentsStatus(t *testing.T) {
	// The separated flag must be irrelevant everywhere except parents_status.
	steps := []Step{
		StepFatherNationalCode, StepFatherBirthDate, StepFatherProvince,
		StepFatherCity, StepFatherPhone,
		StepMotherNationalCode, StepMotherBirthDate, StepMotherPhone,
		StepChildNationalCode, StepChildBirthDate, StepChildProvince,
		StepChildCity, StepChildOrdinal, StepBankPreference, StepConfirmation,
	}

	for _, step := range steps {
		assert.Equal(t, Next(step, false), Next(step, true), "step %s", step)
	}

	assert.Equal(t, StepMotherNationalCode, Next(StepParentsStatus, true))
	assert.Equal(t, StepChildNationalCode, Next(StepParentsStatus, false))
}

func TestPrompt_EveryStepHasOne(t *testing.T) {
	current := InitialStep
	for current != StepConfirmation {
		assert.NotEmpty(t, Prompt(current), "step %s", current)
		current = Next(current, true)
	}
	assert.NotEmpty(t, Prompt(StepConfirmation))
}

// ==========================
// Answer Classification Tests
// ==========================

func TestClassifyAnswer(t *testing.T) {
	tests := []struct {
		input    string
		expected Answer
	}{
		{"بله", AnswerAffirmative},
		{"بلی", AnswerAffirmative},
		{"آره", AnswerAffirmative},
		{"تایید", AnswerAffirmative},
		{"yes", AnswerAffirmative},
		{"  Yes  ", AnswerAffirmative},
		{"ok", AnswerAffirmative},
		{"خیر", AnswerNegative},
		{"نه", AnswerNegative},
		{"انصراف", AnswerNegative},
		{"no", AnswerNegative},
		{"شاید", AnswerUnrecognized},
		{"maybe", AnswerUnrecognized},
		{"", AnswerUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyAnswer(tt.input))
		})
	}
}

// ==========================
// Validation Rule Tests
// ==========================

func TestValidate_NationalCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		value   string
		wantErr bool
	}{
		{"valid ascii", "1234567890", "1234567890", false},
		{"valid persian digits", "۱۲۳۴۵۶۷۸۹۰", "1234567890", false},
		{"valid arabic-indic digits", "١٢٣٤٥٦٧٨٩٠", "1234567890", false},
		{"surrounding whitespace", "  1234567890  ", "1234567890", false},
		{"too short", "123456789", "", true},
		{"too long", "12345678901", "", true},
		{"letters mixed in", "12345abcde", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := Validate(StepFatherNationalCode, tt.input)
			if tt.wantErr {
				require.NotNil(t, err)
				assert.NotEmpty(t, Diagnostic(err))
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestValidate_Phone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		value   string
		wantErr bool
	}{
		{"valid", "09123456789", "09123456789", false},
		{"valid persian digits", "۰۹۱۲۳۴۵۶۷۸۹", "09123456789", false},
		{"wrong prefix", "08123456789", "", true},
		{"too short", "0912345678", "", true},
		{"too long", "091234567890", "", true},
		{"not digits", "0912345678x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := Validate(StepMotherPhone, tt.input)
			if tt.wantErr {
				require.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestValidate_ChildOrdinal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		value   string
		wantErr bool
	}{
		{"minimum", "1", "1", false},
		{"maximum", "10", "10", false},
		{"persian digit", "۳", "3", false},
		{"zero", "0", "", true},
		{"eleven", "11", "", true},
		{"negative", "-1", "", true},
		{"word", "دو", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := Validate(StepChildOrdinal, tt.input)
			if tt.wantErr {
				require.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestValidate_YesNoSteps(t *testing.T) {
	for _, step := range []Step{StepParentsStatus, StepConfirmation} {
		value, err := Validate(step, "بله")
		require.Nil(t, err)
		assert.Equal(t, "yes", value)

		value, err = Validate(step, "خیر")
		require.Nil(t, err)
		assert.Equal(t, "no", value)

		_, err = Validate(step, "نمیدانم")
		require.NotNil(t, err)
	}
}

func TestValidate_FreeTextSteps(t *testing.T) {
	value, err := Validate(StepFatherProvince, "  تهران ")
	require.Nil(t, err)
	assert.Equal(t, "تهران", value)

	_, err = Validate(StepFatherProvince, "   ")
	require.NotNil(t, err)
}
