package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusSuccess, true},
		{StatusNeedsVerification, true},
		{StatusPermanentError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"processing back to pending", StatusProcessing, StatusPending, true},
		{"processing to success", StatusProcessing, StatusSuccess, true},
		{"processing to needs_verification", StatusProcessing, StatusNeedsVerification, true},
		{"processing to permanent_error", StatusProcessing, StatusPermanentError, true},
		{"pending straight to success", StatusPending, StatusSuccess, false},
		{"pending to permanent_error", StatusPending, StatusPermanentError, false},
		{"success is terminal", StatusSuccess, StatusPending, false},
		{"needs_verification is terminal", StatusNeedsVerification, StatusProcessing, false},
		{"permanent_error is terminal", StatusPermanentError, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusSuccess, StatusNeedsVerification, StatusPermanentError}

	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.Falsef(t, CanTransition(from, to), "terminal status %s must not transition to %s", from, to)
		}
	}
}
