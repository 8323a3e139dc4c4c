// internal/store/applications.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loanbot/internal/common/logger"
	"loanbot/internal/models"

	"github.com/lib/pq"
)

var (
	ErrDuplicateApplication = errors.New("DUPLICATE_APPLICATION")
	ErrStorage              = errors.New("STORAGE_ERROR")
)

// uniqueViolation is the Postgres error code raised when the unique
// index on father_national_code rejects an insert.
const uniqueViolation = "23505"

// ApplicationStore persists applications in Postgres. The schema (see
// migrations/001_applications.sql) enforces the father national code
// uniqueness, which makes Insert atomic under concurrent callers.
type ApplicationStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewApplicationStore(db *sql.DB, log logger.Logger) *ApplicationStore {
	return &ApplicationStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// Insert writes one completed application with status pending. It fails
// with ErrDuplicateApplication when a record with the same father
// national code already exists, and ErrStorage on any I/O fault; in both
// cases nothing is written.
func (s *ApplicationStore) Insert(ctx context.Context, rec *models.ApplicationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, father_national_code, father_birth_date, father_province, father_city, father_phone,
			parents_separated, mother_national_code, mother_birth_date, mother_phone,
			child_national_code, child_birth_date, child_province, child_city, child_ordinal,
			bank_preference, status, attempt_count, last_response, verification_code,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 0, '', '', $18, $18)`,
		rec.ID,
		rec.FatherNationalCode, rec.FatherBirthDate, rec.FatherProvince, rec.FatherCity, rec.FatherPhone,
		rec.ParentsSeparated, rec.MotherNationalCode, rec.MotherBirthDate, rec.MotherPhone,
		rec.ChildNationalCode, rec.ChildBirthDate, rec.ChildProvince, rec.ChildCity, rec.ChildOrdinal,
		rec.BankPreference, string(rec.Status),
		rec.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: father national code %s", ErrDuplicateApplication, rec.FatherNationalCode)
		}
		return fmt.Errorf("%w: insert failed: %v", ErrStorage, err)
	}
	return nil
}

const recordColumns = `
	id, father_national_code, father_birth_date, father_province, father_city, father_phone,
	parents_separated, mother_national_code, mother_birth_date, mother_phone,
	child_national_code, child_birth_date, child_province, child_city, child_ordinal,
	bank_preference, status, attempt_count, last_response, verification_code,
	created_at, updated_at`

func scanRecord(rows *sql.Rows) (*models.ApplicationRecord, error) {
	var rec models.ApplicationRecord
	var status string
	err := rows.Scan(
		&rec.ID,
		&rec.FatherNationalCode, &rec.FatherBirthDate, &rec.FatherProvince, &rec.FatherCity, &rec.FatherPhone,
		&rec.ParentsSeparated, &rec.MotherNationalCode, &rec.MotherBirthDate, &rec.MotherPhone,
		&rec.ChildNationalCode, &rec.ChildBirthDate, &rec.ChildProvince, &rec.ChildCity, &rec.ChildOrdinal,
		&rec.BankPreference, &status, &rec.AttemptCount, &rec.LastResponse, &rec.VerificationCode,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = models.Status(status)
	return &rec, nil
}

// FetchPending returns up to limit pending records, oldest first so every
// record gets a fair chance each cycle. Each call is an independent
// snapshot, not a live cursor.
func (s *ApplicationStore) FetchPending(ctx context.Context, limit int) ([]*models.ApplicationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+recordColumns+`
		FROM applications
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch pending: %v", ErrStorage, err)
	}
	defer rows.Close()

	var records []*models.ApplicationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan pending: %v", ErrStorage, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pending: %v", ErrStorage, err)
	}
	return records, nil
}

// ClaimProcessing moves one pending record to processing. It returns
// false when the record was not pending anymore, so no two attempts can
// ever run on the same record at once.
func (s *ApplicationStore) ClaimProcessing(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = 'processing', updated_at = $2
		WHERE id = $1 AND status = 'pending'`,
		id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: claim: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: claim rows: %v", ErrStorage, err)
	}
	return n == 1, nil
}

// ApplyOutcome finishes one attempt: it moves a processing record to
// newStatus, bumps the attempt counter and stores the executor response.
// A zero row count means the record was not in processing, which should
// not happen with a single status writer; it is logged and ignored.
func (s *ApplicationStore) ApplyOutcome(ctx context.Context, id string, newStatus models.Status, attemptDelta int, responseText, verificationCode string) error {
	if !models.CanTransition(models.StatusProcessing, newStatus) {
		return fmt.Errorf("%w: transition processing -> %s not allowed", ErrStorage, newStatus)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = $2,
		    attempt_count = attempt_count + $3,
		    last_response = $4,
		    verification_code = CASE WHEN $5 <> '' THEN $5 ELSE verification_code END,
		    updated_at = $6
		WHERE id = $1 AND status = 'processing'`,
		id, string(newStatus), attemptDelta, responseText, verificationCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: apply outcome: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: outcome rows: %v", ErrStorage, err)
	}
	if n == 0 {
		s.logger.Warn("outcome for record not in processing", map[string]interface{}{
			"applicationId": id,
			"newStatus":     string(newStatus),
		})
	}
	return nil
}

// RequeueStale returns records stuck in processing (a crash mid-attempt)
// back to pending once their claim is older than maxAge.
func (s *ApplicationStore) RequeueStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = 'pending', updated_at = $2
		WHERE status = 'processing' AND updated_at < $1`,
		cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: requeue stale: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: requeue rows: %v", ErrStorage, err)
	}
	if n > 0 {
		s.logger.Warn("requeued stale processing records", map[string]interface{}{
			"count": n,
		})
	}
	return n, nil
}
