// internal/models/application.go
package models

import "time"

// Status is the lifecycle state of a stored application.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusSuccess           Status = "success"
	StatusNeedsVerification Status = "needs_verification"
	StatusPermanentError    Status = "permanent_error"
)

// IsTerminal reports whether no further automatic transition exists.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusNeedsVerification, StatusPermanentError:
		return true
	}
	return false
}

// allowedTransitions is the scheduler's status state machine. The engine
// only ever creates records as pending; everything else goes through here.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusPending, StatusSuccess, StatusNeedsVerification, StatusPermanentError},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApplicationRecord is one persisted benefit application. Created once by
// the conversation engine; status, attempt and response fields are mutated
// only by the submission scheduler afterwards.
type ApplicationRecord struct {
	ID string `json:"id" db:"id"`

	FatherNationalCode string `json:"fatherNationalCode" db:"father_national_code"`
	FatherBirthDate    string `json:"fatherBirthDate" db:"father_birth_date"`
	FatherProvince     string `json:"fatherProvince" db:"father_province"`
	FatherCity         string `json:"fatherCity" db:"father_city"`
	FatherPhone        string `json:"fatherPhone" db:"father_phone"`

	// Mother fields are present only when the parents-separated branch
	// was taken during intake.
	ParentsSeparated   bool   `json:"parentsSeparated" db:"parents_separated"`
	MotherNationalCode string `json:"motherNationalCode,omitempty" db:"mother_national_code"`
	MotherBirthDate    string `json:"motherBirthDate,omitempty" db:"mother_birth_date"`
	MotherPhone        string `json:"motherPhone,omitempty" db:"mother_phone"`

	ChildNationalCode string `json:"childNationalCode" db:"child_national_code"`
	ChildBirthDate    string `json:"childBirthDate" db:"child_birth_date"`
	ChildProvince     string `json:"childProvince" db:"child_province"`
	ChildCity         string `json:"childCity" db:"child_city"`
	ChildOrdinal      int    `json:"childOrdinal" db:"child_ordinal"`

	BankPreference string `json:"bankPreference" db:"bank_preference"`

	Status           Status `json:"status" db:"status"`
	AttemptCount     int    `json:"attemptCount" db:"attempt_count"`
	LastResponse     string `json:"lastResponse,omitempty" db:"last_response"`
	VerificationCode string `json:"verificationCode,omitempty" db:"verification_code"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
