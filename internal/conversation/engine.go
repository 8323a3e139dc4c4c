// internal/conversation/engine.go
package conversation

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"loanbot/internal/common/errors"
	"loanbot/internal/common/logger"
	"loanbot/internal/common/metrics"
	"loanbot/internal/models"
	"loanbot/internal/session"
	"loanbot/internal/store"

	"github.com/google/uuid"
)

// ApplicationStore is the slice of the store the engine needs: one
// atomic insert at the end of a completed intake.
type ApplicationStore interface {
	Insert(ctx context.Context, rec *models.ApplicationRecord) error
}

// Reply is what the engine wants said back to the user.
type Reply struct {
	Text         string
	QuickReplies []string
	TrackingRef  string
}

const (
	msgSubmitted    = "✅ درخواست شما با موفقیت ثبت شد.\nکد پیگیری: %s\nنتیجه ثبت‌نام در سامانه به صورت خودکار پیگیری می‌شود."
	msgDuplicate    = "⚠️ برای این کد ملی پدر قبلا درخواستی ثبت شده است. امکان ثبت درخواست تکراری وجود ندارد."
	msgStorageRetry = "خطایی در ثبت درخواست رخ داد. اطلاعات شما حفظ شده است؛ لطفا چند لحظه بعد دوباره «بله» را ارسال کنید."
	msgCancelled    = "درخواست شما لغو شد. برای شروع دوباره /start را ارسال کنید."
)

// Engine drives the intake conversation. Operations for one user are
// serialized with a per-user lock; different users proceed in parallel.
type Engine struct {
	sessions session.Store
	apps     ApplicationStore
	logger   logger.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock is reference-counted so its map entry can be pruned once the
// last holder releases; the map stays bounded by concurrent users, not
// by the total user population.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewEngine(sessions session.Store, apps ApplicationStore, log logger.Logger) *Engine {
	return &Engine{
		sessions: sessions,
		apps:     apps,
		logger:   log.WithFields(map[string]interface{}{"component": "conversation"}),
		locks:    make(map[string]*userLock),
	}
}

// lockUser acquires the mutex serializing operations for one user.
func (e *Engine) lockUser(userID string) *userLock {
	e.mu.Lock()
	l, ok := e.locks[userID]
	if !ok {
		l = &userLock{}
		e.locks[userID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return l
}

func (e *Engine) unlockUser(userID string, l *userLock) {
	l.mu.Unlock()

	e.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, userID)
	}
	e.mu.Unlock()
}

// StartSession creates a fresh session at the initial step, overwriting
// any prior session for that user, and returns the initial prompt.
func (e *Engine) StartSession(ctx context.Context, userID string) (*Reply, error) {
	l := e.lockUser(userID)
	defer e.unlockUser(userID, l)

	sess := session.New(userID, string(InitialStep))
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, errors.NewSessionStoreFailedError(err)
	}

	e.logger.Info("session started", map[string]interface{}{"userId": userID})
	return &Reply{
		Text:         Prompt(InitialStep),
		QuickReplies: QuickReplies(InitialStep),
	}, nil
}

// SubmitInput validates one answer against the current step. On failure
// the step is re-prompted with a diagnostic and nothing is mutated; on
// success the session advances, and at the confirmation step the
// completed record is inserted into the application store.
func (e *Engine) SubmitInput(ctx context.Context, userID, raw string) (*Reply, error) {
	l := e.lockUser(userID)
	defer e.unlockUser(userID, l)

	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		if stderrors.Is(err, session.ErrNotFound) {
			return nil, errors.NewSessionNotFoundError(userID)
		}
		return nil, errors.NewSessionStoreFailedError(err)
	}

	step := Step(sess.Step)
	value, verr := Validate(step, raw)
	if verr != nil {
		metrics.ValidationFailures.WithLabelValues(string(step)).Inc()
		e.logger.Debug("input rejected", map[string]interface{}{
			"userId": userID,
			"step":   string(step),
		})
		return &Reply{
			Text:         Diagnostic(verr) + "\n\n" + Prompt(step),
			QuickReplies: QuickReplies(step),
		}, nil
	}

	if step == StepConfirmation {
		return e.finishIntake(ctx, sess, value)
	}

	sess.Fields[string(step)] = value
	separated := sess.Fields[string(StepParentsStatus)] == "yes"
	next := Next(step, separated)
	sess.Step = string(next)
	sess.Touch()

	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, errors.NewSessionStoreFailedError(err)
	}

	text := Prompt(next)
	if next == StepConfirmation {
		text = renderSummary(sess.Fields) + "\n\n" + text
	}
	return &Reply{Text: text, QuickReplies: QuickReplies(next)}, nil
}

// finishIntake handles the confirmation answer: affirmative inserts the
// record, negative cancels. The session survives only a storage fault,
// so the user can retry the confirmation.
func (e *Engine) finishIntake(ctx context.Context, sess *session.Session, answer string) (*Reply, error) {
	if answer == "no" {
		if err := e.sessions.Delete(ctx, sess.UserID); err != nil {
			e.logger.Warn("session delete failed after cancellation", map[string]interface{}{
				"userId": sess.UserID,
				"error":  err,
			})
		}
		return &Reply{Text: msgCancelled}, nil
	}

	rec := buildRecord(sess.Fields)
	err := e.apps.Insert(ctx, rec)
	switch {
	case err == nil:
		if derr := e.sessions.Delete(ctx, sess.UserID); derr != nil {
			e.logger.Warn("session delete failed after insert", map[string]interface{}{
				"userId": sess.UserID,
				"error":  derr,
			})
		}
		metrics.ApplicationsCreated.Inc()
		e.logger.Info("application created", map[string]interface{}{
			"userId":        sess.UserID,
			"applicationId": rec.ID,
		})
		return &Reply{
			Text:        fmt.Sprintf(msgSubmitted, rec.ID),
			TrackingRef: rec.ID,
		}, nil

	case stderrors.Is(err, store.ErrDuplicateApplication):
		if derr := e.sessions.Delete(ctx, sess.UserID); derr != nil {
			e.logger.Warn("session delete failed after duplicate", map[string]interface{}{
				"userId": sess.UserID,
				"error":  derr,
			})
		}
		e.logger.Info("duplicate application rejected", map[string]interface{}{
			"userId": sess.UserID,
		})
		return &Reply{Text: msgDuplicate}, nil

	default:
		// Storage fault: keep the session alive so the user can
		// confirm again once the store recovers.
		sess.Touch()
		if serr := e.sessions.Save(ctx, sess); serr != nil {
			e.logger.Error("session refresh failed after storage error", map[string]interface{}{
				"userId": sess.UserID,
				"error":  serr,
			})
		}
		e.logger.Error("application insert failed", map[string]interface{}{
			"userId": sess.UserID,
			"error":  err,
		})
		return &Reply{Text: msgStorageRetry, QuickReplies: QuickReplies(StepConfirmation)}, nil
	}
}

// Cancel destroys the session unconditionally; it is idempotent when no
// session exists.
func (e *Engine) Cancel(ctx context.Context, userID string) (*Reply, error) {
	l := e.lockUser(userID)
	defer e.unlockUser(userID, l)

	if err := e.sessions.Delete(ctx, userID); err != nil {
		return nil, errors.NewSessionStoreFailedError(err)
	}
	e.logger.Info("session cancelled", map[string]interface{}{"userId": userID})
	return &Reply{Text: msgCancelled}, nil
}

// buildRecord assembles the persisted application from the collected
// field map. Validation already guaranteed the field formats.
func buildRecord(fields map[string]string) *models.ApplicationRecord {
	ordinal, _ := strconv.Atoi(fields[string(StepChildOrdinal)])
	now := time.Now().UTC()

	rec := &models.ApplicationRecord{
		ID:                 uuid.New().String(),
		FatherNationalCode: fields[string(StepFatherNationalCode)],
		FatherBirthDate:    fields[string(StepFatherBirthDate)],
		FatherProvince:     fields[string(StepFatherProvince)],
		FatherCity:         fields[string(StepFatherCity)],
		FatherPhone:        fields[string(StepFatherPhone)],
		ChildNationalCode:  fields[string(StepChildNationalCode)],
		ChildBirthDate:     fields[string(StepChildBirthDate)],
		ChildProvince:      fields[string(StepChildProvince)],
		ChildCity:          fields[string(StepChildCity)],
		ChildOrdinal:       ordinal,
		BankPreference:     fields[string(StepBankPreference)],
		Status:             models.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if fields[string(StepParentsStatus)] == "yes" {
		rec.ParentsSeparated = true
		rec.MotherNationalCode = fields[string(StepMotherNationalCode)]
		rec.MotherBirthDate = fields[string(StepMotherBirthDate)]
		rec.MotherPhone = fields[string(StepMotherPhone)]
	}

	return rec
}

// summary labels, in display order.
var summaryOrder = []struct {
	step  Step
	label string
}{
	{StepFatherNationalCode, "کد ملی پدر"},
	{StepFatherBirthDate, "تاریخ تولد پدر"},
	{StepFatherProvince, "استان پدر"},
	{StepFatherCity, "شهر پدر"},
	{StepFatherPhone, "موبایل پدر"},
	{StepMotherNationalCode, "کد ملی مادر"},
	{StepMotherBirthDate, "تاریخ تولد مادر"},
	{StepMotherPhone, "موبایل مادر"},
	{StepChildNationalCode, "کد ملی فرزند"},
	{StepChildBirthDate, "تاریخ تولد فرزند"},
	{StepChildProvince, "استان فرزند"},
	{StepChildCity, "شهر فرزند"},
	{StepChildOrdinal, "فرزند چندم"},
	{StepBankPreference, "بانک"},
}

func renderSummary(fields map[string]string) string {
	var b strings.Builder
	b.WriteString("📋 خلاصه اطلاعات:")
	for _, item := range summaryOrder {
		if v, ok := fields[string(item.step)]; ok {
			b.WriteString(fmt.Sprintf("\n%s: %s", item.label, v))
		}
	}
	return b.String()
}
