// internal/executor/executor.go
package executor

import (
	"context"

	"loanbot/internal/models"
)

// Kind classifies one submission attempt. Outcomes travel as values;
// the scheduler turns them into status transitions.
type Kind int

const (
	KindSuccess Kind = iota
	KindNeedsVerification
	KindTransientError
	KindPermanentError
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNeedsVerification:
		return "needs_verification"
	case KindTransientError:
		return "transient_error"
	case KindPermanentError:
		return "permanent_error"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Result is the bounded outcome of one Submit call.
type Result struct {
	Kind             Kind
	TrackingRef      string
	VerificationCode string
	Message          string
}

// Executor submits one application to the external portal. The call must
// return within the caller's context deadline; its internal mechanics
// are out of the core's scope.
type Executor interface {
	Submit(ctx context.Context, rec *models.ApplicationRecord) Result
}
